package handler

import (
	"bytes"
	"fmt"
	"testing"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/service/ingest"
)

type recordingPublisher struct {
	frames map[string][][]byte
}

func (p *recordingPublisher) Publish(streamID string, frame model.Frame) (uint64, error) {
	if streamID != "cam1" {
		return 0, fmt.Errorf("%w: %s", ingest.ErrUnknownStream, streamID)
	}
	if p.frames == nil {
		p.frames = make(map[string][][]byte)
	}
	p.frames[streamID] = append(p.frames[streamID], frame.Data)
	return uint64(len(p.frames[streamID])), nil
}

func TestFrameAssemblerJoinsPackets(t *testing.T) {
	a := newFrameAssembler(1024)

	if _, ok := a.Add([]byte{0xFF, 0xD8, 1, 2}); ok {
		t.Fatal("frame completed without footer")
	}
	frame, ok := a.Add([]byte{3, 0xFF, 0xD9})
	if !ok {
		t.Fatal("frame not completed by footer")
	}
	want := []byte{0xFF, 0xD8, 1, 2, 3, 0xFF, 0xD9}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %v, want %v", frame, want)
	}
	if a.buf.Len() != 0 {
		t.Errorf("buffer not reset after frame, %d bytes left", a.buf.Len())
	}
}

func TestFrameAssemblerBoundsMissingFooter(t *testing.T) {
	const limit = 1024
	a := newFrameAssembler(limit)
	packet := bytes.Repeat([]byte{0x42}, 100)

	for i := 0; i < 100; i++ {
		if _, ok := a.Add(packet); ok {
			t.Fatal("frame completed without footer")
		}
		if a.buf.Len() > limit {
			t.Fatalf("buffer grew to %d bytes after %d packets", a.buf.Len(), i+1)
		}
	}

	// The next real frame still comes through.
	a.Add([]byte{0xFF, 0xD8, 7})
	frame, ok := a.Add([]byte{0xFF, 0xD9})
	if !ok || !bytes.Equal(frame, []byte{0xFF, 0xD8, 7, 0xFF, 0xD9}) {
		t.Errorf("frame after overflow = %v, %v", frame, ok)
	}
}

func TestUDPReceiverIgnoresUnconfiguredSources(t *testing.T) {
	pub := &recordingPublisher{}
	names := map[string]string{"10.0.0.2": "cam1", "10.0.0.3": "cam9"}
	r := newUDPReceiver(pub, names, logger.Discard())

	for i := 0; i < 300; i++ {
		r.handle(fmt.Sprintf("192.168.1.%d", i%250), []byte{0xFF, 0xD8, 1, 0xFF, 0xD9})
	}
	if len(r.assemblers) != 0 {
		t.Errorf("unconfigured senders got %d assemblers", len(r.assemblers))
	}
	if len(r.warned) > maxWarnedSources {
		t.Errorf("warned set grew to %d", len(r.warned))
	}

	r.handle("10.0.0.2", []byte{0xFF, 0xD8, 1})
	r.handle("10.0.0.2", []byte{2, 0xFF, 0xD9})
	if got := len(pub.frames["cam1"]); got != 1 {
		t.Fatalf("cam1 published %d frames, want 1", got)
	}

	// A configured address whose stream is not registered keeps one bounded
	// assembler and drops its frames.
	r.handle("10.0.0.3", []byte{0xFF, 0xD8, 1, 0xFF, 0xD9})
	if len(pub.frames["cam9"]) != 0 || len(r.assemblers) != 2 {
		t.Errorf("frames %v, assemblers %d", pub.frames, len(r.assemblers))
	}
}
