package dto

// ClassSetting is the runtime configuration of one detection class.
type ClassSetting struct {
	Class         string  `json:"class"`
	Label         string  `json:"label"`
	Enabled       bool    `json:"enabled"`
	MinConfidence float64 `json:"minConfidence"`
	AlertSound    string  `json:"alertSound,omitempty"`
}

type SettingsData struct {
	MinArea int            `json:"minArea"`
	Classes []ClassSetting `json:"classes"`
}

// SettingsUpdate changes one class and/or the minimum area. Unset fields keep
// their value; unknown classes are added.
type SettingsUpdate struct {
	Class         string   `json:"class"`
	Enabled       *bool    `json:"enabled"`
	MinConfidence *float64 `json:"minConfidence"`
	MinArea       *int     `json:"minArea"`
}
