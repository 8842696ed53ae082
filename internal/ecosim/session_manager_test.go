package ecosim

import (
	"errors"
	"testing"
	"time"
)

func TestSessionManagerCreateAndGet(t *testing.T) {
	m := NewSessionManager()

	sim, err := m.Create("", smallTestParams())
	if err != nil {
		t.Fatal(err)
	}
	if sim.ID() == "" {
		t.Fatal("Expected a generated id")
	}

	got, exists := m.Get(sim.ID())
	if !exists {
		t.Fatal("Expected the session to be registered")
	}
	if got != sim {
		t.Error("Get returned a different session")
	}
}

func TestSessionManagerCreateWithExplicitID(t *testing.T) {
	m := NewSessionManager()

	sim, err := m.Create("my-session", smallTestParams())
	if err != nil {
		t.Fatal(err)
	}
	if sim.ID() != "my-session" {
		t.Errorf("Expected id my-session, got %s", sim.ID())
	}

	if _, err := m.Create("my-session", smallTestParams()); err == nil {
		t.Error("Expected an error for a duplicate id")
	}
}

func TestSessionManagerCreateRejectsInvalidParams(t *testing.T) {
	m := NewSessionManager()

	p := DefaultParams()
	p.GridSize = 0
	if _, err := m.Create("", p); err == nil {
		t.Error("Expected invalid parameters to fail creation")
	}
	if len(m.List()) != 0 {
		t.Error("Failed creation must not register a session")
	}
}

func TestSessionManagerDelete(t *testing.T) {
	m := NewSessionManager()

	sim, err := m.Create("", smallTestParams())
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(sim.ID()); err != nil {
		t.Fatal(err)
	}
	if _, exists := m.Get(sim.ID()); exists {
		t.Error("Expected the session to be gone")
	}

	err = m.Delete(sim.ID())
	if err == nil {
		t.Fatal("Expected an error for a missing session")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSessionManagerDeleteStopsAutoRun(t *testing.T) {
	m := NewSessionManager()

	sim, err := m.Create("", smallTestParams())
	if err != nil {
		t.Fatal(err)
	}
	sim.Run(time.Millisecond)

	if err := m.Delete(sim.ID()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for sim.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sim.IsRunning() {
		t.Error("Expected the session ticker to be stopped on delete")
	}
}

func TestSessionManagerList(t *testing.T) {
	m := NewSessionManager()

	if len(m.List()) != 0 {
		t.Fatal("Expected an empty list")
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Create("", smallTestParams()); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(m.List()); got != 3 {
		t.Errorf("Expected 3 sessions, got %d", got)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewSessionManager()

	a, err := m.Create("a", smallTestParams())
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Create("b", smallTestParams())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.StepN(5); err != nil {
		t.Fatal(err)
	}
	if b.Generation() != 0 {
		t.Errorf("Stepping one session advanced another to generation %d", b.Generation())
	}
}
