package live

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/service/ingest"
)

func TestViewsTrackKnownStreams(t *testing.T) {
	reg := ingest.NewRegistry(clock.New(), 0, logger.Discard())
	reg.Add("front", "")
	v := NewViews(reg, 50*time.Millisecond)

	if _, ok := v.Live("garage"); ok {
		t.Error("unknown stream has a live view")
	}
	live, ok := v.Live("front")
	if !ok || live == nil {
		t.Fatal("missing live view")
	}
	if again, _ := v.Live("front"); again != live {
		t.Error("live view recreated")
	}

	reg.Publish("front", model.Frame{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}})
	v.refresh()
	if vw := v.get("front"); vw.lastSeq != 1 {
		t.Errorf("live view at seq %d, want 1", vw.lastSeq)
	}

	// Peeking leaves the frame for inference.
	ing, _ := reg.Get("front")
	if _, ok := ing.Slot().TakeLatest(); !ok {
		t.Error("live view consumed the frame")
	}

	v.ShowAnnotated("front", []byte{0xFF, 0xD8, 0xFF, 0xD9})
	if _, ok := v.Annotated("front"); !ok {
		t.Error("missing annotation view")
	}
}
