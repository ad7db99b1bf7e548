package sqlite

import (
	"fmt"

	"camwatch/internal/model"
)

// IgnoreRepository implements repository.IgnoreRepository for SQLite.
type IgnoreRepository struct {
	db *DB
}

// NewIgnoreRepository creates a new SQLite ignore repository.
func NewIgnoreRepository(db *DB) *IgnoreRepository {
	return &IgnoreRepository{db: db}
}

// Insert stores an ignore entry.
func (r *IgnoreRepository) Insert(e *model.IgnoreEntry) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO ignore_entries (id, stream_id, class, x, y, width, height, created_at, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.StreamID, e.Class, e.Region.X, e.Region.Y, e.Region.Width, e.Region.Height,
		e.CreatedAt.UTC(), e.SourceID)
	if err != nil {
		return fmt.Errorf("failed to insert ignore entry: %w", err)
	}
	return nil
}

// GetAll returns every ignore entry, oldest first.
func (r *IgnoreRepository) GetAll() ([]model.IgnoreEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, stream_id, class, x, y, width, height, created_at, source_id
		FROM ignore_entries ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ignore entries: %w", err)
	}
	defer rows.Close()

	var entries []model.IgnoreEntry
	for rows.Next() {
		var e model.IgnoreEntry
		if err := rows.Scan(&e.ID, &e.StreamID, &e.Class,
			&e.Region.X, &e.Region.Y, &e.Region.Width, &e.Region.Height,
			&e.CreatedAt, &e.SourceID); err != nil {
			return nil, fmt.Errorf("failed to scan ignore entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an ignore entry. Deleting a missing id is not an error.
func (r *IgnoreRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM ignore_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete ignore entry: %w", err)
	}
	return nil
}
