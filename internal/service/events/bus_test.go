package events

import (
	"errors"
	"testing"

	"camwatch/internal/model"
)

func TestPublishFansOut(t *testing.T) {
	bus := NewBus()
	display, err := bus.Subscribe("display", 4)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	alert, _ := bus.Subscribe("alert", 4)

	entry := &model.HistoryEntry{ID: "e2", Replaces: "e1"}
	bus.Publish(Event{Kind: DetectionEmitted, Entry: entry, Replacing: true})

	for name, ch := range map[string]<-chan Event{"display": display, "alert": alert} {
		select {
		case e := <-ch:
			if e.Kind != DetectionEmitted || !e.Replacing || e.Entry.Replaces != "e1" {
				t.Errorf("%s got %+v", name, e)
			}
		default:
			t.Errorf("%s received nothing", name)
		}
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	slow, _ := bus.Subscribe("slow", 1)
	fast, _ := bus.Subscribe("fast", 10)

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Kind: HistoryRemoved})
	}

	stats := bus.Stats()
	if stats.Published != 5 {
		t.Errorf("published = %d", stats.Published)
	}
	if s := stats.Subscribers["slow"]; s.Delivered != 1 || s.Dropped != 4 {
		t.Errorf("slow stats %+v", s)
	}
	if s := stats.Subscribers["fast"]; s.Delivered != 5 || s.Dropped != 0 {
		t.Errorf("fast stats %+v", s)
	}
	if len(slow) != 1 || len(fast) != 5 {
		t.Errorf("buffered %d/%d events", len(slow), len(fast))
	}
}

func TestSubscribeErrors(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe("display", 1)

	if _, err := bus.Subscribe("display", 1); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("duplicate Subscribe = %v", err)
	}
	if err := bus.Unsubscribe("nobody"); !errors.Is(err, ErrSubscriberNotFound) {
		t.Errorf("Unsubscribe(unknown) = %v", err)
	}
	if err := bus.Unsubscribe("display"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel not closed after Unsubscribe")
	}

	other, _ := bus.Subscribe("other", 1)
	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-other; ok {
		t.Error("channel not closed after Close")
	}
	bus.Publish(Event{Kind: IgnoreAdded})
	if _, err := bus.Subscribe("late", 1); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Subscribe after Close = %v", err)
	}
	if err := bus.Close(); !errors.Is(err, ErrBusClosed) {
		t.Errorf("second Close = %v", err)
	}
}
