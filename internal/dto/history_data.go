// HistoryData is a paginated response payload for the detection history.
package dto

type HistoryData struct {
	Entries     []HistoryInfo `json:"entries"`
	Length      int           `json:"length"`
	Max         int           `json:"max"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"pageSize"`
}
