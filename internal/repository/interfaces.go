package repository

import (
	"camwatch/internal/model"
)

// HistoryRepository persists the detection history index.
type HistoryRepository interface {
	// Create operations
	Insert(entry *model.HistoryEntry) error

	// Read operations
	GetByID(id string) (*model.HistoryEntry, error)
	GetAll() ([]model.HistoryEntry, error) // oldest first
	Count() (int, error)

	// Delete operations
	Delete(id string) error
	DeleteAll() error
}

// IgnoreRepository persists the user's ignore entries.
type IgnoreRepository interface {
	Insert(entry *model.IgnoreEntry) error
	GetAll() ([]model.IgnoreEntry, error) // oldest first
	Delete(id string) error
}
