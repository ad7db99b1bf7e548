package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"camwatch/internal/logger"
	"camwatch/internal/model"
)

// Registry owns the ingestors of all configured streams.
type Registry struct {
	clock       clock.Clock
	feedTimeout time.Duration
	log         *logger.Logger

	mu        sync.RWMutex
	ingestors map[string]*Ingestor
	order     []string

	wake chan struct{}
}

func NewRegistry(clk clock.Clock, feedTimeout time.Duration, log *logger.Logger) *Registry {
	return &Registry{
		clock:       clk,
		feedTimeout: feedTimeout,
		log:         log.With("ingest"),
		ingestors:   make(map[string]*Ingestor),
		wake:        make(chan struct{}, 1),
	}
}

// Add registers a stream and returns its ingestor. Adding an existing id
// returns the registered ingestor.
func (r *Registry) Add(id, label string) *Ingestor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ing, ok := r.ingestors[id]; ok {
		return ing
	}
	ing := NewIngestor(id, label, r.clock, r.feedTimeout, r.log)
	ing.onPublish = r.signal
	r.ingestors[id] = ing
	r.order = append(r.order, id)
	return ing
}

// Get returns the ingestor of a stream.
func (r *Registry) Get(id string) (*Ingestor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ing, ok := r.ingestors[id]
	return ing, ok
}

// Publish hands a pushed frame to the stream's ingestor.
func (r *Registry) Publish(id string, frame model.Frame) (uint64, error) {
	ing, ok := r.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownStream, id)
	}
	return ing.Publish(frame)
}

// Ingestors returns the ingestors in registration order.
func (r *Registry) Ingestors() []*Ingestor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Ingestor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.ingestors[id])
	}
	return out
}

// Statuses returns the status of every stream in registration order.
func (r *Registry) Statuses() []model.StreamStatus {
	ingestors := r.Ingestors()
	out := make([]model.StreamStatus, 0, len(ingestors))
	for _, ing := range ingestors {
		out = append(out, ing.Status())
	}
	return out
}

// Wake is signalled after a frame was published to any stream.
func (r *Registry) Wake() <-chan struct{} {
	return r.wake
}

func (r *Registry) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// StopAll stops every ingestor.
func (r *Registry) StopAll() {
	for _, ing := range r.Ingestors() {
		ing.Stop()
	}
}
