package dto

import (
	"strings"
	"testing"
	"time"

	"camwatch/internal/model"
)

func TestHistoryFilters_Match(t *testing.T) {
	entry := model.HistoryEntry{
		StreamID:  "cam1",
		Class:     "person",
		Timestamp: time.Date(2025, 6, 15, 23, 30, 0, 0, time.Local),
	}

	tests := []struct {
		name    string
		filters HistoryFilters
		want    bool
	}{
		{"empty", HistoryFilters{}, true},
		{"stream", HistoryFilters{Stream: "cam1"}, true},
		{"other stream", HistoryFilters{Stream: "cam2"}, false},
		{"other class", HistoryFilters{Class: "cat"}, false},
		{"after", HistoryFilters{DateAfter: time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local)}, true},
		{"too early", HistoryFilters{DateAfter: time.Date(2025, 6, 16, 0, 0, 0, 0, time.Local)}, false},
		{"before same day", HistoryFilters{DateBefore: time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local)}, true},
		{"too late", HistoryFilters{DateBefore: time.Date(2025, 6, 14, 0, 0, 0, 0, time.Local)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Match(entry); got != tt.want {
				t.Errorf("Match() = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestHistoryInfo_MarshalJSON(t *testing.T) {
	info := HistoryInfo{
		HistoryEntry: model.HistoryEntry{
			ID:        "e1",
			StreamID:  "cam1",
			Class:     "person",
			Timestamp: time.Date(2025, 6, 15, 14, 30, 5, 0, time.UTC),
		},
		StreamLabel: "Front door",
	}

	data, err := info.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	jsonStr := string(data)

	for _, want := range []string{`"date":"15-06-2025"`, `"timeOfDay":"14:30:05"`, `"id":"e1"`, `"streamLabel":"Front door"`} {
		if !strings.Contains(jsonStr, want) {
			t.Errorf("Expected %s in %s", want, jsonStr)
		}
	}
}
