package history

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/repository"
)

// ErrEntryNotFound is returned for an unknown history entry id.
var ErrEntryNotFound = errors.New("history entry not found")

// ArtifactStore keeps the image of each entry.
type ArtifactStore interface {
	Save(e model.HistoryEntry, data []byte) (string, error)
	Delete(name string) error
}

// Store is the bounded archive of emitted detections. It holds at most max
// entries; recording one more evicts the oldest entry and its image.
type Store struct {
	max       int
	repo      repository.HistoryRepository
	artifacts ArtifactStore
	logger    *logger.Logger

	mu      sync.RWMutex
	entries []model.HistoryEntry // ordered by Timestamp, oldest first
}

func NewStore(max int, repo repository.HistoryRepository, artifacts ArtifactStore, logger *logger.Logger) *Store {
	return &Store{
		max:       max,
		repo:      repo,
		artifacts: artifacts,
		logger:    logger.With("history"),
	}
}

// Load reads the persisted entries and trims them to capacity.
func (s *Store) Load() error {
	entries, err := s.repo.GetAll()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	var evicted []model.HistoryEntry
	if excess := len(entries) - s.max; excess > 0 {
		evicted = slices.Clone(entries[:excess])
		entries = entries[excess:]
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info("Loaded %d history entries", len(entries))
	return s.purge(evicted)
}

// Record archives an emitted detection with its image. It returns the stored
// entry and the entries evicted to stay within capacity. A nil image stores
// no artifact.
func (s *Store) Record(e model.HistoryEntry, image []byte) (model.HistoryEntry, []model.HistoryEntry, error) {
	if image != nil {
		name, err := s.artifacts.Save(e, image)
		if err != nil {
			return e, nil, err
		}
		e.ImagePath = name
	}

	// The index row and the in-memory entry change under one lock so Clear
	// never sees one without the other.
	s.mu.Lock()
	if err := s.repo.Insert(&e); err != nil {
		s.mu.Unlock()
		if e.ImagePath != "" {
			err = multierr.Append(err, s.artifacts.Delete(e.ImagePath))
			e.ImagePath = ""
		}
		return e, nil, err
	}
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Timestamp.After(e.Timestamp)
	})
	s.entries = slices.Insert(s.entries, i, e)

	var evicted []model.HistoryEntry
	for len(s.entries) > s.max {
		evicted = append(evicted, s.entries[0])
		s.entries[0] = model.HistoryEntry{}
		s.entries = s.entries[1:]
	}
	s.mu.Unlock()

	for _, old := range evicted {
		s.logger.Debug("Evicted %s (%s on %s)", old.ID, old.Class, old.StreamID)
	}
	return e, evicted, s.purge(evicted)
}

// purge removes evicted entries from the index and disk.
func (s *Store) purge(entries []model.HistoryEntry) error {
	var err error
	for _, e := range entries {
		err = multierr.Append(err, s.remove(e))
	}
	if err != nil {
		s.logger.Warning("Failed to purge evicted entries: %v", err)
	}
	return err
}

func (s *Store) remove(e model.HistoryEntry) error {
	err := s.repo.Delete(e.ID)
	if e.ImagePath != "" {
		err = multierr.Append(err, s.artifacts.Delete(e.ImagePath))
	}
	return err
}

// List yields the entries newest first. Each range over the sequence starts
// from the state at that moment.
func (s *Store) List() iter.Seq[model.HistoryEntry] {
	return func(yield func(model.HistoryEntry) bool) {
		s.mu.RLock()
		snapshot := slices.Clone(s.entries)
		s.mu.RUnlock()

		for i := len(snapshot) - 1; i >= 0; i-- {
			if !yield(snapshot[i]) {
				return
			}
		}
	}
}

// Get returns one entry.
func (s *Store) Get(id string) (model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return model.HistoryEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// Delete removes an entry and its image on user request.
func (s *Store) Delete(id string) (model.HistoryEntry, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.entries, func(e model.HistoryEntry) bool { return e.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return model.HistoryEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	e := s.entries[i]
	s.entries = slices.Delete(s.entries, i, i+1)
	s.mu.Unlock()

	return e, s.remove(e)
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	err := s.repo.DeleteAll()
	s.mu.Unlock()

	for _, e := range entries {
		if e.ImagePath != "" {
			err = multierr.Append(err, s.artifacts.Delete(e.ImagePath))
		}
	}
	return err
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Max returns the capacity.
func (s *Store) Max() int {
	return s.max
}
