package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hybridgroup/mjpeg"

	"camwatch/internal/service/ingest"
)

type view struct {
	live      *mjpeg.Stream
	annotated *mjpeg.Stream
	lastSeq   uint64
}

// Views serves two MJPEG streams per camera: the latest frames and the image
// of the last emitted detection with its boxes drawn.
type Views struct {
	registry *ingest.Registry
	interval time.Duration

	mu    sync.RWMutex
	views map[string]*view
}

func NewViews(registry *ingest.Registry, interval time.Duration) *Views {
	return &Views{registry: registry, interval: interval, views: make(map[string]*view)}
}

func (v *Views) get(id string) *view {
	v.mu.RLock()
	vw, ok := v.views[id]
	v.mu.RUnlock()
	if ok {
		return vw
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if vw, ok := v.views[id]; ok {
		return vw
	}
	vw = &view{live: mjpeg.NewStream(), annotated: mjpeg.NewStream()}
	v.views[id] = vw
	return vw
}

// Run copies new frames to the live streams until ctx is done. Frames are
// peeked, so inference still sees them.
func (v *Views) Run(ctx context.Context) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v.refresh()
		}
	}
}

func (v *Views) refresh() {
	for _, ing := range v.registry.Ingestors() {
		frame, ok := ing.Slot().Peek()
		if !ok {
			continue
		}
		vw := v.get(ing.ID())
		if frame.Seq == vw.lastSeq {
			continue
		}
		vw.lastSeq = frame.Seq
		vw.live.UpdateJPEG(frame.Data)
	}
}

// ShowAnnotated replaces the annotation view of a stream.
func (v *Views) ShowAnnotated(streamID string, jpeg []byte) {
	v.get(streamID).annotated.UpdateJPEG(jpeg)
}

// Live returns the MJPEG handler of a stream, or false for unknown streams.
func (v *Views) Live(streamID string) (http.Handler, bool) {
	if _, ok := v.registry.Get(streamID); !ok {
		return nil, false
	}
	return v.get(streamID).live, true
}

// Annotated returns the annotation MJPEG handler of a stream.
func (v *Views) Annotated(streamID string) (http.Handler, bool) {
	if _, ok := v.registry.Get(streamID); !ok {
		return nil, false
	}
	return v.get(streamID).annotated, true
}
