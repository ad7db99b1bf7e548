package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/service/ingest"
)

// Model turns one frame into detected objects.
type Model interface {
	Infer(frame model.Frame) ([]model.Inference, error)
}

// Source provides the streams to schedule.
type Source interface {
	Ingestors() []*ingest.Ingestor
	Wake() <-chan struct{}
}

// Batch is the result of one inference call with at least one detection.
type Batch struct {
	Frame      model.Frame
	Detections []model.RawDetection
}

// Stats are the lifetime counters of a scheduler.
type Stats struct {
	Inferences uint64 `json:"inferences"`
	Failures   uint64 `json:"failures"`
	Detections uint64 `json:"detections"`
}

// Scheduler runs one worker per model. Each worker picks the next stream with
// an unconsumed frame in round-robin order, runs the model on it and sends the
// detections downstream. A stream is inferred on by at most one worker at a
// time. Frames that arrive while all workers are busy are
// overwritten in their slots, so there is never a backlog.
type Scheduler struct {
	source   Source
	models   []Model
	idlePoll time.Duration
	logger   *logger.Logger
	out      chan Batch

	cursor     atomic.Uint64
	inferences atomic.Uint64
	failures   atomic.Uint64
	detections atomic.Uint64
}

func New(source Source, models []Model, idlePoll time.Duration, logger *logger.Logger) *Scheduler {
	if idlePoll <= 0 {
		idlePoll = 10 * time.Millisecond
	}
	return &Scheduler{
		source:   source,
		models:   models,
		idlePoll: idlePoll,
		logger:   logger.With("scheduler"),
		out:      make(chan Batch, len(models)*4),
	}
}

// Batches is closed when Run returns.
func (s *Scheduler) Batches() <-chan Batch {
	return s.out
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.models) == 0 {
		close(s.out)
		return errors.New("scheduler needs at least one model")
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, m := range s.models {
		g.Go(func() error {
			s.work(ctx, i, m)
			return nil
		})
	}
	s.logger.Info("Started %d inference workers", len(s.models))

	err := g.Wait()
	close(s.out)
	return err
}

func (s *Scheduler) work(ctx context.Context, id int, m Model) {
	failing := false
	idle := time.NewTimer(s.idlePoll)
	defer idle.Stop()

	for ctx.Err() == nil {
		ing, frame, ok := s.next()
		if !ok {
			idle.Reset(s.idlePoll)
			select {
			case <-ctx.Done():
				return
			case <-s.source.Wake():
			case <-idle.C:
			}
			continue
		}

		// The claim is held until the batch is queued, so a later frame of
		// the same stream can never overtake this one.
		s.infer(ctx, id, m, frame, &failing)
		ing.Release()
	}
}

func (s *Scheduler) infer(ctx context.Context, id int, m Model, frame model.Frame, failing *bool) {
	inferences, err := m.Infer(frame)
	s.inferences.Add(1)
	if err != nil {
		s.failures.Add(1)
		if !*failing {
			s.logger.Warning("Worker %d: inference on %s failed: %v", id, frame.StreamID, err)
		}
		*failing = true
		return
	}
	if *failing {
		s.logger.Info("Worker %d: inference recovered", id)
		*failing = false
	}
	if len(inferences) == 0 {
		return
	}

	batch := Batch{Frame: frame, Detections: make([]model.RawDetection, 0, len(inferences))}
	for _, inf := range inferences {
		batch.Detections = append(batch.Detections, model.RawDetection{
			StreamID:       frame.StreamID,
			Class:          inf.Class,
			Confidence:     inf.Confidence,
			Region:         inf.Region,
			FrameSeq:       frame.Seq,
			FrameTimestamp: frame.Timestamp,
		})
	}
	s.detections.Add(uint64(len(batch.Detections)))

	select {
	case s.out <- batch:
	case <-ctx.Done():
	}
}

// next claims the first stream, starting after the one picked last time,
// that is not being inferred on and has an unconsumed frame.
func (s *Scheduler) next() (*ingest.Ingestor, model.Frame, bool) {
	ingestors := s.source.Ingestors()
	n := len(ingestors)
	if n == 0 {
		return nil, model.Frame{}, false
	}
	start := int(s.cursor.Add(1) % uint64(n))
	for i := 0; i < n; i++ {
		ing := ingestors[(start+i)%n]
		if !ing.Claim() {
			continue
		}
		if frame, ok := ing.Slot().TakeLatest(); ok {
			return ing, frame, true
		}
		ing.Release()
	}
	return nil, model.Frame{}, false
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Inferences: s.inferences.Load(),
		Failures:   s.failures.Load(),
		Detections: s.detections.Load(),
	}
}
