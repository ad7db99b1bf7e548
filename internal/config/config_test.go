package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STREAMS_FILE", "")
	t.Setenv("STREAMS", "front=rtsp://10.0.0.2/live;back=rtsp://10.0.0.3/live")
	t.Setenv("INTERESTS", "person:0.7, car")
	t.Setenv("COOLDOWN_WINDOW", "30")
	t.Setenv("OVERLAP_THRESHOLD", "0.4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Streams) != 2 || cfg.Streams[0].ID != "back" || cfg.Streams[1].ID != "front" {
		t.Fatalf("unexpected streams: %+v", cfg.Streams)
	}
	if s, ok := cfg.Stream("front"); !ok || s.URL != "rtsp://10.0.0.2/live" {
		t.Errorf("front stream = %+v, %v", s, ok)
	}
	if cfg.CooldownWindow != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cfg.CooldownWindow)
	}
	if cfg.OverlapThreshold != 0.4 {
		t.Errorf("overlap threshold = %v, want 0.4", cfg.OverlapThreshold)
	}

	person, ok := cfg.Interest("person")
	if !ok || !person.Enabled || person.MinConfidence != 0.7 {
		t.Errorf("person interest = %+v, %v", person, ok)
	}
	car, ok := cfg.Interest("car")
	if !ok || car.MinConfidence != cfg.DefaultMinConfidence {
		t.Errorf("car interest = %+v, %v", car, ok)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("STREAMS_FILE", "")
	t.Setenv("OVERLAP_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for threshold above 1")
	}
}

func TestValidateDuplicateStreams(t *testing.T) {
	cfg := &Config{
		ProcessingWorkers: 1,
		OverlapThreshold:  0.5,
		MaxHistoryEntries: 10,
		Streams:           []StreamDefinition{{ID: "a"}, {ID: "a"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate stream error")
	}
}

const definitionsYAML = `
streams:
  - id: porch
    url: rtsp://10.0.0.5/stream
    alert_sound: doorbell.mp3
interests:
  - class: person
    label: Person
    min_confidence: 0.8
  - class: cat
    enabled: false
`

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.yaml")
	if err := os.WriteFile(path, []byte(definitionsYAML), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	streams, interests, err := LoadDefinitions(path, 0.65)
	if err != nil {
		t.Fatalf("LoadDefinitions failed: %v", err)
	}

	if len(streams) != 1 || streams[0].Label != "porch" || streams[0].AlertSound != "doorbell.mp3" {
		t.Errorf("unexpected streams: %+v", streams)
	}
	if len(interests) != 2 {
		t.Fatalf("expected 2 interests, got %d", len(interests))
	}
	if !interests[0].Enabled || interests[0].MinConfidence != 0.8 || interests[0].Label != "Person" {
		t.Errorf("person interest = %+v", interests[0])
	}
	if interests[1].Enabled || interests[1].MinConfidence != 0.65 {
		t.Errorf("cat interest = %+v", interests[1])
	}
}

func TestLoadDefinitionsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.yaml")
	if err := os.WriteFile(path, []byte("interests:\n  - label: nothing\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := LoadDefinitions(path, 0.5); err == nil {
		t.Fatal("expected error for interest without class")
	}
}

func TestWatchReloadsInterests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.yaml")
	if err := os.WriteFile(path, []byte(definitionsYAML), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan []Interest, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 0.65, func(i []Interest) { reloaded <- i }, func(error) {})
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	updated := "interests:\n  - class: dog\n    min_confidence: 0.9\n"
	for {
		select {
		case interests := <-reloaded:
			if len(interests) != 1 || interests[0].Class != "dog" {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch returned %v", err)
			}
			return
		case <-tick.C:
			// The watcher may not be registered yet on the first writes.
			if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			cancel()
			t.Fatal("interests were not reloaded")
		}
	}
}

func TestParseStreamsOrdersByID(t *testing.T) {
	streams := parseStreams("gate=rtsp://g;attic=rtsp://a;yard=rtsp://y;barn=rtsp://b")
	var ids []string
	for _, s := range streams {
		ids = append(ids, s.ID)
	}
	if got := strings.Join(ids, ","); got != "attic,barn,gate,yard" {
		t.Errorf("stream order = %s", got)
	}
}
