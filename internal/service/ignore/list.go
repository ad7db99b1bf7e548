package ignore

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/repository"
)

// ErrEntryNotFound is returned for an unknown ignore entry id.
var ErrEntryNotFound = errors.New("ignore entry not found")

type key struct {
	stream string
	class  string
}

// List holds the user's exclusions, indexed by stream and class. Lookups and
// changes may happen from any goroutine.
type List struct {
	threshold float64
	repo      repository.IgnoreRepository
	clock     clock.Clock
	logger    *logger.Logger

	mu    sync.RWMutex
	index map[key][]model.IgnoreEntry
}

// NewList creates an empty list. Regions match when they overlap by at least
// threshold.
func NewList(threshold float64, repo repository.IgnoreRepository, clk clock.Clock, logger *logger.Logger) *List {
	return &List{
		threshold: threshold,
		repo:      repo,
		clock:     clk,
		logger:    logger.With("ignore"),
		index:     make(map[key][]model.IgnoreEntry),
	}
}

// Load reads the persisted entries.
func (l *List) Load() error {
	entries, err := l.repo.GetAll()
	if err != nil {
		return fmt.Errorf("failed to load ignore list: %w", err)
	}

	index := make(map[key][]model.IgnoreEntry)
	for _, e := range entries {
		k := key{stream: e.StreamID, class: e.Class}
		index[k] = append(index[k], e)
	}

	l.mu.Lock()
	l.index = index
	l.mu.Unlock()

	l.logger.Info("Loaded %d ignore entries", len(entries))
	return nil
}

// Add creates an exclusion from a history entry. Adding the same history
// entry twice returns the existing exclusion.
func (l *List) Add(from model.HistoryEntry) (model.IgnoreEntry, bool, error) {
	k := key{stream: from.StreamID, class: from.Class}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.index[k] {
		if e.SourceID == from.ID && e.Region == from.Region {
			return e, false, nil
		}
	}

	e := model.IgnoreEntry{
		ID:        uuid.NewString(),
		StreamID:  from.StreamID,
		Class:     from.Class,
		Region:    from.Region,
		CreatedAt: l.clock.Now(),
		SourceID:  from.ID,
	}
	if err := l.repo.Insert(&e); err != nil {
		return model.IgnoreEntry{}, false, err
	}
	l.index[k] = append(l.index[k], e)

	l.logger.Info("Ignoring %s on %s at %+v", e.Class, e.StreamID, e.Region)
	return e, true, nil
}

// Remove deletes an exclusion.
func (l *List) Remove(id string) (model.IgnoreEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, entries := range l.index {
		i := slices.IndexFunc(entries, func(e model.IgnoreEntry) bool { return e.ID == id })
		if i < 0 {
			continue
		}
		e := entries[i]
		if err := l.repo.Delete(id); err != nil {
			return model.IgnoreEntry{}, err
		}
		if len(entries) == 1 {
			delete(l.index, k)
		} else {
			l.index[k] = slices.Delete(entries, i, i+1)
		}
		return e, nil
	}
	return model.IgnoreEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// Matches reports whether a detection falls in an exclusion. It has no side
// effects.
func (l *List) Matches(streamID, class string, region model.Region) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.index[key{stream: streamID, class: class}] {
		if e.Region.Overlaps(region, l.threshold) {
			return true
		}
	}
	return false
}

// All returns every exclusion, oldest first.
func (l *List) All() []model.IgnoreEntry {
	l.mu.RLock()
	var out []model.IgnoreEntry
	for _, entries := range l.index {
		out = append(out, entries...)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
