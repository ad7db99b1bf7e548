package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"camwatch/internal/logger"
	"camwatch/internal/model"
)

var (
	// ErrStopped is returned when publishing to or running a stopped ingestor.
	ErrStopped = errors.New("ingestor stopped")
	// ErrUnknownStream is returned for a stream id that is not registered.
	ErrUnknownStream = errors.New("unknown stream")
)

// Decoder produces decoded frames for one stream. Reconnecting after a
// failure is up to the decoder; Next returns io.EOF when the source is gone
// for good.
type Decoder interface {
	Next(ctx context.Context) (model.Frame, error)
	Close() error
}

// Ingestor publishes the frames of one stream into its slot and tracks the
// stream state. It never retries on its own.
type Ingestor struct {
	id    string
	label string
	slot  *FrameSlot

	clock       clock.Clock
	feedTimeout time.Duration
	log         *logger.Logger
	onPublish   func()

	// inflight is held by the worker running inference on this stream.
	inflight atomic.Bool

	mu          sync.Mutex
	state       model.StreamState
	lastError   string
	lastFrameAt time.Time
	stopped     bool
	cancel      context.CancelFunc
}

// NewIngestor creates an ingestor in the Connecting state. A Live stream that
// receives no frame for feedTimeout is reported as Error; zero disables it.
func NewIngestor(id, label string, clk clock.Clock, feedTimeout time.Duration, log *logger.Logger) *Ingestor {
	if label == "" {
		label = id
	}
	return &Ingestor{
		id:          id,
		label:       label,
		slot:        &FrameSlot{},
		clock:       clk,
		feedTimeout: feedTimeout,
		log:         log.With(id),
		state:       model.StreamConnecting,
	}
}

func (i *Ingestor) ID() string       { return i.id }
func (i *Ingestor) Label() string    { return i.label }
func (i *Ingestor) Slot() *FrameSlot { return i.slot }

// Claim marks the stream as being inferred on. It fails while another worker
// holds the claim, which keeps batches of one stream in frame order.
func (i *Ingestor) Claim() bool { return i.inflight.CompareAndSwap(false, true) }

// Release gives up a claim taken with Claim.
func (i *Ingestor) Release() { i.inflight.Store(false) }

// Publish hands a decoded frame to the slot. Timestamp defaults to now.
func (i *Ingestor) Publish(frame model.Frame) (uint64, error) {
	now := i.clock.Now()

	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return 0, ErrStopped
	}
	if i.state != model.StreamLive {
		i.log.Info("Stream is live")
	}
	i.state = model.StreamLive
	i.lastError = ""
	i.lastFrameAt = now
	i.mu.Unlock()

	frame.StreamID = i.id
	if frame.Timestamp.IsZero() {
		frame.Timestamp = now
	}
	seq := i.slot.Publish(frame)
	if i.onPublish != nil {
		i.onPublish()
	}
	return seq, nil
}

// Run pulls frames from dec until ctx is done, the ingestor is stopped or the
// decoder reports io.EOF. Decoder errors move the stream to Error and the
// loop keeps asking the decoder for frames.
func (i *Ingestor) Run(ctx context.Context, dec Decoder) error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return ErrStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.state = model.StreamConnecting
	i.mu.Unlock()

	defer cancel()
	defer func() {
		if err := dec.Close(); err != nil {
			i.log.Warning("Failed to close decoder: %v", err)
		}
	}()

	i.log.Info("Ingestion started")
	for {
		frame, err := dec.Next(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) {
			i.setError("source closed")
			i.log.Info("Source closed")
			return nil
		}
		if err != nil {
			i.fail(err)
			continue
		}
		if _, err := i.Publish(frame); errors.Is(err, ErrStopped) {
			return nil
		}
	}
}

func (i *Ingestor) fail(err error) {
	i.mu.Lock()
	wasLive := i.state != model.StreamError
	i.state = model.StreamError
	i.lastError = err.Error()
	i.mu.Unlock()

	if wasLive {
		i.log.Warning("Stream failed: %v", err)
	}
}

func (i *Ingestor) setError(msg string) {
	i.mu.Lock()
	i.state = model.StreamError
	i.lastError = msg
	i.mu.Unlock()
}

// Stop closes the slot and ends Run. Frames already taken may still be
// processed by the caller.
func (i *Ingestor) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped {
		return
	}
	i.stopped = true
	i.slot.Close()
	if i.cancel != nil {
		i.cancel()
	}
}

// Status returns the current state of the stream, reporting a Live stream
// that stopped delivering frames as stale.
func (i *Ingestor) Status() model.StreamStatus {
	i.mu.Lock()
	state, lastError, lastFrameAt := i.state, i.lastError, i.lastFrameAt
	i.mu.Unlock()

	if state == model.StreamLive && i.feedTimeout > 0 {
		if idle := i.clock.Since(lastFrameAt); idle > i.feedTimeout {
			state = model.StreamError
			lastError = fmt.Sprintf("stale: no frame for %s", idle.Truncate(time.Millisecond))
		}
	}

	stats := i.slot.Stats()
	return model.StreamStatus{
		ID:          i.id,
		Label:       i.label,
		State:       state,
		LastError:   lastError,
		LastFrameAt: lastFrameAt,
		Published:   stats.Published,
		Dropped:     stats.Dropped,
		Taken:       stats.Taken,
	}
}
