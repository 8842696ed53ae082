package ecosim

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeNotifier struct {
	id string

	mu     sync.Mutex
	events []GenerationEvent
	closed bool
}

func (f *fakeNotifier) ID() string { return f.id }

func (f *fakeNotifier) Notify(ctx context.Context, event GenerationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeNotifier) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestRegisterNotifierValidation(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()

	if err := nm.RegisterNotifier(nil); err == nil {
		t.Error("Expected an error for a nil notifier")
	}
	if err := nm.RegisterNotifier(&fakeNotifier{id: ""}); err == nil {
		t.Error("Expected an error for an empty id")
	}

	n := &fakeNotifier{id: "a"}
	if err := nm.RegisterNotifier(n); err != nil {
		t.Fatal(err)
	}
	if err := nm.RegisterNotifier(&fakeNotifier{id: "a"}); err == nil {
		t.Error("Expected an error for a duplicate id")
	}
}

func TestPublishDeliversToAllNotifiers(t *testing.T) {
	nm := NewNotificationManager()

	a := &fakeNotifier{id: "a"}
	b := &fakeNotifier{id: "b"}
	if err := nm.RegisterNotifier(a); err != nil {
		t.Fatal(err)
	}
	if err := nm.RegisterNotifier(b); err != nil {
		t.Fatal(err)
	}

	nm.Publish(GenerationEvent{SimulationID: "s1", Generation: 1})
	nm.Publish(GenerationEvent{SimulationID: "s1", Generation: 2})

	deadline := time.Now().Add(2 * time.Second)
	for (a.eventCount() < 2 || b.eventCount() < 2) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if a.eventCount() != 2 || b.eventCount() != 2 {
		t.Errorf("Expected 2 events each, got a=%d b=%d", a.eventCount(), b.eventCount())
	}

	nm.Close()
	if !a.closed || !b.closed {
		t.Error("Expected Close to close all notifiers")
	}
}

func TestUnregisterNotifier(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()

	n := &fakeNotifier{id: "a"}
	if err := nm.RegisterNotifier(n); err != nil {
		t.Fatal(err)
	}
	if err := nm.UnregisterNotifier("a"); err != nil {
		t.Fatal(err)
	}
	if !n.closed {
		t.Error("Expected the notifier to be closed on unregister")
	}
	if err := nm.UnregisterNotifier("a"); err == nil {
		t.Error("Expected an error for an unknown id")
	}
}

func TestPublishAfterCloseIsSafe(t *testing.T) {
	nm := NewNotificationManager()
	nm.Close()

	// Must not panic on the closed jobs channel.
	nm.Publish(GenerationEvent{SimulationID: "s1", Generation: 1})
}

func TestPublishRacingCloseIsSafe(t *testing.T) {
	// Publishers hammering the manager while it shuts down must never
	// hit the closed jobs channel.
	for trial := 0; trial < 25; trial++ {
		nm := NewNotificationManager()

		var wg sync.WaitGroup
		start := make(chan struct{})
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < 200; i++ {
					nm.Publish(GenerationEvent{SimulationID: "s1", Generation: i})
				}
			}()
		}

		close(start)
		nm.Close()
		wg.Wait()

		// Late publishers must see the closed flag.
		nm.Publish(GenerationEvent{SimulationID: "s1", Generation: -1})
	}
}

func TestSimulationPublishesGenerationEvents(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()

	n := &fakeNotifier{id: "sink"}
	if err := nm.RegisterNotifier(n); err != nil {
		t.Fatal(err)
	}

	s, err := NewSimulation(smallTestParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	s.SetNotificationManager(nm)

	if _, err := s.StepN(3); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for n.eventCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n.eventCount() != 3 {
		t.Fatalf("Expected 3 events, got %d", n.eventCount())
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for i, ev := range n.events {
		if ev.Generation != i+1 {
			t.Errorf("Event %d has generation %d, want %d", i, ev.Generation, i+1)
		}
		if ev.SimulationID != s.ID() {
			t.Errorf("Event %d has simulation id %s, want %s", i, ev.SimulationID, s.ID())
		}
	}
}
