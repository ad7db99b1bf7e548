package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"camwatch/internal/model"
)

var (
	ErrSubscriberExists   = errors.New("subscriber id already exists")
	ErrSubscriberNotFound = errors.New("subscriber id not found")
	ErrBusClosed          = errors.New("bus is closed")
)

// Kind names an event type.
type Kind string

const (
	DetectionEmitted Kind = "detection"
	HistoryRemoved   Kind = "history_removed"
	IgnoreAdded      Kind = "ignore_added"
	IgnoreRemoved    Kind = "ignore_removed"
)

// Event is a one-way notification to display, alert and other sinks.
type Event struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`
	// Entry is set for DetectionEmitted and HistoryRemoved.
	Entry *model.HistoryEntry `json:"entry,omitempty"`
	// Replacing marks a detection that supersedes Entry.Replaces.
	Replacing bool `json:"replacing,omitempty"`
	// Archived is false for a DetectionEmitted whose entry could not be
	// stored; such an entry is not in history and has no image.
	Archived bool `json:"archived"`
	// Evicted lists history ids dropped to make room for Entry.
	Evicted []string `json:"evicted,omitempty"`
	// Ignore is set for IgnoreAdded and IgnoreRemoved.
	Ignore *model.IgnoreEntry `json:"ignore,omitempty"`
}

// Stats are the bus counters.
type Stats struct {
	Published   uint64                     `json:"published"`
	Subscribers map[string]SubscriberStats `json:"subscribers"`
}

type SubscriberStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

type subscriber struct {
	ch        chan Event
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// Bus fans events out to subscribers without ever blocking the publisher. A
// subscriber whose buffer is full misses the event; the drop is counted.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	published atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers a subscriber with a buffer of the given size. The
// channel is closed by Unsubscribe or Close.
func (b *Bus) Subscribe(id string, buffer int) (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &subscriber{ch: make(chan Event, max(buffer, 1))}
	b.subscribers[id] = sub
	return sub.ch, nil
}

func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	sub, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	close(sub.ch)
	return nil
}

// Publish delivers the event to every subscriber that has room for it.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- e:
			sub.delivered.Add(1)
		default:
			sub.dropped.Add(1)
		}
	}
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		Published:   b.published.Load(),
		Subscribers: make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, sub := range b.subscribers {
		stats.Subscribers[id] = SubscriberStats{
			Delivered: sub.delivered.Load(),
			Dropped:   sub.dropped.Load(),
		}
	}
	return stats
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}
