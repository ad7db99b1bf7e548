package manager

import (
	"context"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/service/dedup"
	"camwatch/internal/service/events"
	"camwatch/internal/service/filter"
	"camwatch/internal/service/history"
	"camwatch/internal/service/ignore"
	"camwatch/internal/service/scheduler"
)

// Annotator draws detections on a frame.
type Annotator interface {
	Annotate(frame model.Frame, detections []model.RawDetection) ([]byte, error)
}

// AnnotationView shows the last annotated image of a stream.
type AnnotationView interface {
	ShowAnnotated(streamID string, jpeg []byte)
}

// Stats are the pipeline counters.
type Stats struct {
	Detections uint64 `json:"detections"`
	Filtered   uint64 `json:"filtered"`
	Ignored    uint64 `json:"ignored"`
	Suppressed uint64 `json:"suppressed"`
	Emitted    uint64 `json:"emitted"`
	Replaced   uint64 `json:"replaced"`
	Unarchived uint64 `json:"unarchived"`
}

// Manager is the single consumer of inference results. It owns the
// deduplication state: every detection goes through filter, ignore and
// cooldown matching in arrival order, and each emission is archived and
// announced on the bus.
type Manager struct {
	settings  *filter.Holder
	engine    *dedup.Engine
	history   *history.Store
	ignores   *ignore.List
	bus       *events.Bus
	annotator Annotator
	view      AnnotationView
	clock     clock.Clock
	logger    *logger.Logger

	detections atomic.Uint64
	filtered   atomic.Uint64
	ignored    atomic.Uint64
	suppressed atomic.Uint64
	emitted    atomic.Uint64
	replaced   atomic.Uint64
	unarchived atomic.Uint64
}

type Options struct {
	Settings  *filter.Holder
	Engine    *dedup.Engine
	History   *history.Store
	Ignores   *ignore.List
	Bus       *events.Bus
	Annotator Annotator      // optional; without it the raw frame is archived
	View      AnnotationView // optional
	Clock     clock.Clock
}

func New(opts Options, logger *logger.Logger) *Manager {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		settings:  opts.Settings,
		engine:    opts.Engine,
		history:   opts.History,
		ignores:   opts.Ignores,
		bus:       opts.Bus,
		annotator: opts.Annotator,
		view:      opts.View,
		clock:     clk,
		logger:    logger.With("pipeline"),
	}
}

// Run consumes batches until the channel is closed or ctx is done.
func (m *Manager) Run(ctx context.Context, batches <-chan scheduler.Batch) error {
	m.logger.Info("🎬 Pipeline started")
	defer m.logger.Info("🛑 Pipeline stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			m.Handle(batch)
		}
	}
}

// Handle runs one batch through the pipeline. It must only be called from the
// goroutine that owns the manager.
func (m *Manager) Handle(batch scheduler.Batch) {
	settings := m.settings.Load()

	var emissions []dedup.Outcome
	for _, d := range batch.Detections {
		m.detections.Add(1)

		if verdict := settings.Check(d); verdict != filter.Keep {
			m.filtered.Add(1)
			m.logger.Debug("Dropped %s on %s (%.2f): %s", d.Class, d.StreamID, d.Confidence, verdict)
			continue
		}

		out := m.engine.Process(d)
		switch out.Kind {
		case dedup.Ignored:
			m.ignored.Add(1)
		case dedup.Suppressed:
			m.suppressed.Add(1)
		case dedup.Emitted:
			m.emitted.Add(1)
			emissions = append(emissions, out)
		case dedup.EmittedReplacing:
			m.replaced.Add(1)
			emissions = append(emissions, out)
		}
	}
	if len(emissions) == 0 {
		return
	}

	if m.view != nil && m.annotator != nil {
		shown := make([]model.RawDetection, 0, len(emissions))
		for _, out := range emissions {
			shown = append(shown, out.Detection)
		}
		if img, err := m.annotator.Annotate(batch.Frame, shown); err == nil {
			m.view.ShowAnnotated(batch.Frame.StreamID, img)
		}
	}

	for _, out := range emissions {
		m.emit(batch.Frame, out)
	}
}

func (m *Manager) emit(frame model.Frame, out dedup.Outcome) {
	d := out.Detection
	entry := model.HistoryEntry{
		ID:          out.ID,
		StreamID:    d.StreamID,
		Class:       d.Class,
		Confidence:  d.Confidence,
		Region:      d.Region,
		FrameWidth:  frame.Width,
		FrameHeight: frame.Height,
		Timestamp:   out.At,
		Replaces:    out.ReplacedID,
	}

	image := frame.Data
	if m.annotator != nil && len(frame.Data) > 0 {
		annotated, err := m.annotator.Annotate(frame, []model.RawDetection{d})
		if err != nil {
			m.logger.Warning("Failed to annotate %s: %v", entry.ID, err)
		} else {
			image = annotated
		}
	}

	if out.Kind == dedup.EmittedReplacing {
		m.logger.Info("🔁 %s on %s (%.2f) replaces %s", d.Class, d.StreamID, d.Confidence, out.ReplacedID)
	} else {
		m.logger.Info("📸 %s on %s (%.2f)", d.Class, d.StreamID, d.Confidence)
	}

	// The detection is announced even when archiving fails; the cooldown it
	// started is already in effect.
	entry, evicted, err := m.history.Record(entry, image)
	if err != nil {
		m.unarchived.Add(1)
		m.logger.Error("Failed to record %s: %v", entry.ID, err)
	}

	var evictedIDs []string
	for _, e := range evicted {
		evictedIDs = append(evictedIDs, e.ID)
	}
	m.bus.Publish(events.Event{
		Kind:      events.DetectionEmitted,
		At:        out.At,
		Entry:     &entry,
		Replacing: out.Kind == dedup.EmittedReplacing,
		Archived:  err == nil,
		Evicted:   evictedIDs,
	})
}

// DeleteHistory removes a history entry on user request. Ignore entries
// created from it stay.
func (m *Manager) DeleteHistory(id string) error {
	entry, err := m.history.Delete(id)
	if entry.ID == "" {
		return err
	}
	if err != nil {
		m.logger.Warning("Deleted %s with errors: %v", id, err)
	}
	m.bus.Publish(events.Event{Kind: events.HistoryRemoved, At: m.clock.Now(), Entry: &entry})
	return nil
}

// IgnoreFromHistory excludes future detections like the given history entry.
func (m *Manager) IgnoreFromHistory(id string) (model.IgnoreEntry, error) {
	entry, err := m.history.Get(id)
	if err != nil {
		return model.IgnoreEntry{}, err
	}
	ig, created, err := m.ignores.Add(entry)
	if err != nil {
		return model.IgnoreEntry{}, err
	}
	if created {
		m.bus.Publish(events.Event{Kind: events.IgnoreAdded, At: m.clock.Now(), Ignore: &ig})
	}
	return ig, nil
}

// RemoveIgnore deletes an ignore entry.
func (m *Manager) RemoveIgnore(id string) error {
	ig, err := m.ignores.Remove(id)
	if err != nil {
		return err
	}
	m.bus.Publish(events.Event{Kind: events.IgnoreRemoved, At: m.clock.Now(), Ignore: &ig})
	return nil
}

func (m *Manager) Stats() Stats {
	return Stats{
		Detections: m.detections.Load(),
		Filtered:   m.filtered.Load(),
		Ignored:    m.ignored.Load(),
		Suppressed: m.suppressed.Load(),
		Emitted:    m.emitted.Load(),
		Replaced:   m.replaced.Load(),
		Unarchived: m.unarchived.Load(),
	}
}
