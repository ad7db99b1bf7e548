package alert

import (
	"context"
	"sync/atomic"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/service/events"
	"camwatch/internal/service/filter"
)

// Alert is the notification sent for each emitted detection. Sound fields
// are references for the receiving side to play.
type Alert struct {
	ID            string       `json:"id"`
	Replaces      string       `json:"replaces,omitempty"`
	Replacing     bool         `json:"replacing"`
	StreamID      string       `json:"stream_id"`
	StreamLabel   string       `json:"stream_label"`
	Class         string       `json:"class"`
	ClassLabel    string       `json:"class_label"`
	Confidence    float64      `json:"confidence"`
	Region        model.Region `json:"region"`
	Timestamp     time.Time    `json:"timestamp"`
	InterestSound string       `json:"interest_sound,omitempty"`
	StreamSound   string       `json:"stream_sound,omitempty"`
}

// Sink delivers alerts somewhere.
type Sink interface {
	Send(ctx context.Context, a Alert) error
	Close() error
}

// Stats are the delivery counters of an alerter. Connected is false while a
// broker backed sink has no connection.
type Stats struct {
	Sent      uint64 `json:"sent"`
	Failed    uint64 `json:"failed"`
	Connected bool   `json:"connected"`
}

// Alerter turns detection events into alerts.
type Alerter struct {
	sink     Sink
	settings *filter.Holder
	streams  map[string]config.StreamDefinition
	logger   *logger.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewAlerter(sink Sink, settings *filter.Holder, streams []config.StreamDefinition, logger *logger.Logger) *Alerter {
	byID := make(map[string]config.StreamDefinition, len(streams))
	for _, s := range streams {
		byID[s.ID] = s
	}
	return &Alerter{sink: sink, settings: settings, streams: byID, logger: logger.With("alert")}
}

// Run sends an alert for every detection event until the channel is closed
// or ctx is done. Delivery failures are logged and never stop the loop.
func (a *Alerter) Run(ctx context.Context, in <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-in:
			if !ok {
				return nil
			}
			if e.Kind != events.DetectionEmitted || e.Entry == nil {
				continue
			}
			alert := a.Build(*e.Entry, e.Replacing)
			if err := a.sink.Send(ctx, alert); err != nil {
				a.failed.Add(1)
				a.logger.Warning("Failed to send alert for %s on %s: %v", alert.Class, alert.StreamID, err)
				continue
			}
			a.sent.Add(1)
		}
	}
}

func (a *Alerter) Stats() Stats {
	stats := Stats{Sent: a.sent.Load(), Failed: a.failed.Load(), Connected: true}
	if c, ok := a.sink.(interface{ Connected() bool }); ok {
		stats.Connected = c.Connected()
	}
	return stats
}

// Build fills in labels and sound references for an entry.
func (a *Alerter) Build(entry model.HistoryEntry, replacing bool) Alert {
	alert := Alert{
		ID:          entry.ID,
		Replaces:    entry.Replaces,
		Replacing:   replacing,
		StreamID:    entry.StreamID,
		StreamLabel: entry.StreamID,
		Class:       entry.Class,
		ClassLabel:  entry.Class,
		Confidence:  entry.Confidence,
		Region:      entry.Region,
		Timestamp:   entry.Timestamp,
	}
	if s, ok := a.streams[entry.StreamID]; ok {
		alert.StreamLabel = s.Label
		alert.StreamSound = s.AlertSound
	}
	if c, ok := a.settings.Load().Class(entry.Class); ok {
		if c.Label != "" {
			alert.ClassLabel = c.Label
		}
		alert.InterestSound = c.AlertSound
	}
	return alert
}

// LogSink writes alerts to the log. Used when no broker is configured.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(logger *logger.Logger) *LogSink {
	return &LogSink{logger: logger.With("alert")}
}

func (s *LogSink) Send(_ context.Context, a Alert) error {
	verb := "detected"
	if a.Replacing {
		verb = "re-detected"
	}
	s.logger.Info("🔔 %s %s on %s (%.0f%%)", a.ClassLabel, verb, a.StreamLabel, a.Confidence*100)
	return nil
}

func (s *LogSink) Close() error { return nil }
