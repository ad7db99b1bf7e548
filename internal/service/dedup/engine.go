package dedup

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"camwatch/internal/model"
)

// Kind tells what the engine did with a detection.
type Kind int

const (
	// Emitted is a new detection with no active cooldown in its region.
	Emitted Kind = iota
	// EmittedReplacing supersedes an earlier emission with a higher confidence.
	EmittedReplacing
	// Suppressed matched an active cooldown without beating its confidence.
	Suppressed
	// Ignored matched a user ignore entry.
	Ignored
)

func (k Kind) String() string {
	switch k {
	case Emitted:
		return "emitted"
	case EmittedReplacing:
		return "replacing"
	case Suppressed:
		return "suppressed"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one detection.
type Outcome struct {
	Kind      Kind
	Detection model.RawDetection
	// ID is the emission id. For Suppressed it is the emission that holds the cooldown.
	ID string
	// ReplacedID is set for EmittedReplacing.
	ReplacedID string
	At         time.Time
}

// IsEmission reports whether the outcome must be shown to the user.
func (o Outcome) IsEmission() bool {
	return o.Kind == Emitted || o.Kind == EmittedReplacing
}

// IgnoreMatcher reports whether a detection falls in a user ignore entry.
type IgnoreMatcher interface {
	Matches(streamID, class string, region model.Region) bool
}

// Config holds the engine parameters.
type Config struct {
	Window           time.Duration
	OverlapThreshold float64
}

type key struct {
	stream string
	class  string
}

type cooldown struct {
	id         string
	region     model.Region
	emittedAt  time.Time
	confidence float64
	expiry     time.Time
}

// CooldownInfo is a read-only view of an active cooldown.
type CooldownInfo struct {
	ID         string       `json:"id"`
	StreamID   string       `json:"stream_id"`
	Class      string       `json:"class"`
	Region     model.Region `json:"region"`
	EmittedAt  time.Time    `json:"emitted_at"`
	Confidence float64      `json:"confidence"`
	Expiry     time.Time    `json:"expiry"`
}

// Engine suppresses repeated detections of the same object.
//
// Detections of a class in a stream are grouped by region overlap. The first
// one is emitted and starts a cooldown of one window. Matching detections
// inside the cooldown are suppressed unless they are more confident, in which
// case they replace the earlier emission. Every match extends the cooldown.
// Cooldowns expire lazily when the next detection of the same stream and
// class arrives.
//
// An Engine is owned by a single goroutine and is not safe for concurrent use.
type Engine struct {
	cfg     Config
	clock   clock.Clock
	ignores IgnoreMatcher
	active  map[key][]*cooldown
	newID   func() string
}

func NewEngine(cfg Config, clk clock.Clock, ignores IgnoreMatcher) *Engine {
	return &Engine{
		cfg:     cfg,
		clock:   clk,
		ignores: ignores,
		active:  make(map[key][]*cooldown),
		newID:   uuid.NewString,
	}
}

// Process decides what to do with a detection that passed the filter.
func (e *Engine) Process(d model.RawDetection) Outcome {
	now := e.clock.Now()
	out := Outcome{Detection: d, At: now}

	if e.ignores != nil && e.ignores.Matches(d.StreamID, d.Class, d.Region) {
		out.Kind = Ignored
		return out
	}

	k := key{stream: d.StreamID, class: d.Class}
	entries := e.expire(k, now)

	match := e.match(entries, d.Region)
	switch {
	case match == nil:
		out.Kind = Emitted
		out.ID = e.newID()
		e.active[k] = append(entries, &cooldown{
			id:         out.ID,
			region:     d.Region,
			emittedAt:  now,
			confidence: d.Confidence,
			expiry:     now.Add(e.cfg.Window),
		})

	case d.Confidence > match.confidence:
		out.Kind = EmittedReplacing
		out.ID = e.newID()
		out.ReplacedID = match.id
		match.id = out.ID
		match.region = d.Region
		match.emittedAt = now
		match.confidence = d.Confidence
		match.expiry = now.Add(e.cfg.Window)

	default:
		out.Kind = Suppressed
		out.ID = match.id
		match.expiry = now.Add(e.cfg.Window)
	}
	return out
}

// expire drops the cooldowns of k that are no longer active at now.
func (e *Engine) expire(k key, now time.Time) []*cooldown {
	entries := e.active[k]
	kept := entries[:0]
	for _, c := range entries {
		if now.Before(c.expiry) {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(entries); i++ {
		entries[i] = nil
	}
	if len(kept) == 0 {
		delete(e.active, k)
		return nil
	}
	e.active[k] = kept
	return kept
}

// match returns the active cooldown overlapping region best.
func (e *Engine) match(entries []*cooldown, region model.Region) *cooldown {
	var best *cooldown
	bestIoU := -1.0
	for _, c := range entries {
		if !c.region.Overlaps(region, e.cfg.OverlapThreshold) {
			continue
		}
		if iou := c.region.IoU(region); iou > bestIoU {
			best, bestIoU = c, iou
		}
	}
	return best
}

// Cooldowns returns the cooldowns active now, expiring stale ones.
func (e *Engine) Cooldowns() []CooldownInfo {
	now := e.clock.Now()
	var out []CooldownInfo
	for k := range e.active {
		for _, c := range e.expire(k, now) {
			out = append(out, CooldownInfo{
				ID:         c.id,
				StreamID:   k.stream,
				Class:      k.class,
				Region:     c.region,
				EmittedAt:  c.emittedAt,
				Confidence: c.confidence,
				Expiry:     c.expiry,
			})
		}
	}
	return out
}
