package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"camwatch/internal/model"
)

// HistoryRepository implements repository.HistoryRepository for SQLite.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new SQLite history repository.
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, stream_id, class, confidence, x, y, width, height,
	frame_width, frame_height, timestamp, image_path, replaces`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (model.HistoryEntry, error) {
	var e model.HistoryEntry
	err := row.Scan(&e.ID, &e.StreamID, &e.Class, &e.Confidence,
		&e.Region.X, &e.Region.Y, &e.Region.Width, &e.Region.Height,
		&e.FrameWidth, &e.FrameHeight, &e.Timestamp, &e.ImagePath, &e.Replaces)
	return e, err
}

// Insert adds a history entry. Inserting an existing id replaces it.
func (r *HistoryRepository) Insert(e *model.HistoryEntry) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT OR REPLACE INTO history_entries (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.StreamID, e.Class, e.Confidence,
		e.Region.X, e.Region.Y, e.Region.Width, e.Region.Height,
		e.FrameWidth, e.FrameHeight, e.Timestamp.UTC(), e.ImagePath, e.Replaces)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// GetByID returns the entry with id, or nil when there is none.
func (r *HistoryRepository) GetByID(id string) (*model.HistoryEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	e, err := scanHistory(r.db.Conn().QueryRow(`
		SELECT `+historyColumns+` FROM history_entries WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	return &e, nil
}

// GetAll returns every entry, oldest first.
func (r *HistoryRepository) GetAll() ([]model.HistoryEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT ` + historyColumns + ` FROM history_entries ORDER BY timestamp ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (r *HistoryRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var n int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM history_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// Delete removes an entry. Deleting a missing id is not an error.
func (r *HistoryRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM history_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return nil
}

// DeleteAll removes every entry.
func (r *HistoryRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM history_entries`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
