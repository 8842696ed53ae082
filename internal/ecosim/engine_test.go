package ecosim

import (
	"context"
	"errors"
	"testing"
	"time"
)

func smallTestParams() Params {
	p := DefaultParams()
	p.GridSize = 12
	p.InitialPrey = 30
	p.InitialPredators = 6
	p.InitialSubstrateProbability = 0.2
	p.Seed = 42
	return p
}

// checkHungerInvariant verifies that each hunger plane holds -1 exactly
// where the grid does not hold the matching kind.
func checkHungerInvariant(t *testing.T, s *Simulation) {
	t.Helper()
	for i, kind := range s.grid.cells {
		predHunger := s.predatorHunger.vals[i]
		if (kind == Predator) != (predHunger >= 0) {
			t.Fatalf("Cell %d: kind=%s but predator hunger=%d", i, kind, predHunger)
		}
		preyHunger := s.preyHunger.vals[i]
		if (kind == Prey) != (preyHunger >= 0) {
			t.Fatalf("Cell %d: kind=%s but prey hunger=%d", i, kind, preyHunger)
		}
	}
}

func TestNewSimulationRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.GridSize = -1
	p.InitialSubstrateProbability = 2.0

	_, err := NewSimulation(p, nil)
	if err == nil {
		t.Fatal("Expected an error for invalid parameters")
	}
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
}

func TestNewSimulationStartsAtGenerationZero(t *testing.T) {
	s, err := NewSimulation(smallTestParams(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if s.Generation() != 0 {
		t.Errorf("Expected generation 0, got %d", s.Generation())
	}
	if s.ID() == "" {
		t.Error("Expected a generated simulation id")
	}

	history := s.History()
	if len(history) != 1 || history[0].Generation != 0 {
		t.Errorf("Expected a single generation-0 history point, got %+v", history)
	}

	checkHungerInvariant(t, s)
}

func TestStepPreservesCellCount(t *testing.T) {
	s, err := NewSimulation(smallTestParams(), nil)
	if err != nil {
		t.Fatal(err)
	}

	total := s.params.GridSize * s.params.GridSize
	for gen := 1; gen <= 20; gen++ {
		if _, err := s.Step(); err != nil {
			t.Fatalf("Step %d: %v", gen, err)
		}

		counts := s.grid.Counts()
		sum := counts[Empty] + counts[Prey] + counts[Predator] + counts[Substrate]
		if sum != total {
			t.Fatalf("Generation %d: cell counts sum to %d, want %d", gen, sum, total)
		}
		checkHungerInvariant(t, s)
	}

	if s.Generation() != 20 {
		t.Errorf("Expected generation 20, got %d", s.Generation())
	}
	if len(s.History()) != 21 {
		t.Errorf("Expected 21 history points, got %d", len(s.History()))
	}
}

func TestStepIsDeterministicForSeed(t *testing.T) {
	run := func() []HistoryPoint {
		s, err := NewSimulation(smallTestParams(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.StepN(10); err != nil {
			t.Fatal(err)
		}
		return s.History()
	}

	h1, h2 := run(), run()
	if len(h1) != len(h2) {
		t.Fatalf("History lengths differ: %d vs %d", len(h1), len(h2))
	}
	for i := range h1 {
		if h1[i] != h2[i] {
			t.Fatalf("Histories from the same seed diverge at generation %d: %+v vs %+v",
				i, h1[i], h2[i])
		}
	}
}

func TestLonePredatorStarves(t *testing.T) {
	p := DefaultParams()
	p.GridSize = 5
	p.InitialPrey = 0
	p.InitialPredators = 1
	p.InitialSubstrateProbability = 0
	p.PredatorDeathProbability = 0
	p.PredatorStarvationSteps = 3
	p.Seed = 1

	s, err := NewSimulation(p, nil)
	if err != nil {
		t.Fatal(err)
	}

	// With no prey the predator's hunger grows by one per generation and
	// it survives exactly through the generation where hunger reaches the
	// threshold.
	for gen := 1; gen <= p.PredatorStarvationSteps; gen++ {
		if _, err := s.Step(); err != nil {
			t.Fatal(err)
		}
		if got := s.grid.Count(Predator); got != 1 {
			t.Fatalf("Generation %d: expected the predator alive, count=%d", gen, got)
		}

		hunger := -1
		for i, kind := range s.grid.cells {
			if kind == Predator {
				hunger = s.predatorHunger.vals[i]
			}
		}
		if hunger != gen {
			t.Fatalf("Generation %d: expected hunger %d, got %d", gen, gen, hunger)
		}
	}

	if _, err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if got := s.grid.Count(Predator); got != 0 {
		t.Errorf("Expected the predator to starve at generation %d, count=%d",
			p.PredatorStarvationSteps+1, got)
	}
}

func TestStatisticsDoesNotAdvance(t *testing.T) {
	s, err := NewSimulation(smallTestParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.StepN(3); err != nil {
		t.Fatal(err)
	}

	first := s.Statistics()
	second := s.Statistics()
	if first != second {
		t.Errorf("Two statistics reads without a step differ: %+v vs %+v", first, second)
	}
	if s.Generation() != 3 {
		t.Errorf("Statistics advanced the simulation to generation %d", s.Generation())
	}
}

func TestRunAndStop(t *testing.T) {
	p := smallTestParams()
	s, err := NewSimulation(p, nil)
	if err != nil {
		t.Fatal(err)
	}

	s.Run(time.Millisecond)
	if !s.IsRunning() {
		t.Fatal("Expected IsRunning after Run")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Generation() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Generation() < 3 {
		t.Fatalf("Auto-run advanced only to generation %d", s.Generation())
	}

	s.Stop()
	deadline = time.Now().Add(time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.IsRunning() {
		t.Fatal("Expected IsRunning false after Stop")
	}

	// Manual stepping still works after Stop.
	gen := s.Generation()
	if _, err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if s.Generation() != gen+1 {
		t.Errorf("Expected generation %d after manual step, got %d", gen+1, s.Generation())
	}
}

func TestStopTwiceIsSafe(t *testing.T) {
	s, err := NewSimulation(smallTestParams(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// The long interval keeps the ticker goroutine idle, so both Stop
	// calls land before it could have reacted to the first one.
	s.Run(time.Hour)
	s.Stop()
	s.Stop()
	if s.IsRunning() {
		t.Fatal("Expected IsRunning false after Stop")
	}

	// The session can be started again after a double Stop.
	s.Run(time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for s.Generation() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Generation() < 1 {
		t.Fatal("Auto-run did not advance after a restart")
	}
	s.Stop()
	s.Stop()
	if s.IsRunning() {
		t.Fatal("Expected IsRunning false after the second round of stops")
	}
}

type captureSink struct {
	meta   RecordingMetadata
	frames []Frame
	err    error
}

func (c *captureSink) Put(ctx context.Context, meta RecordingMetadata, frames []Frame) error {
	if c.err != nil {
		return c.err
	}
	c.meta = meta
	c.frames = frames
	return nil
}

func TestFlushRecording(t *testing.T) {
	p := smallTestParams()
	p.RecordSimulation = true

	s, err := NewSimulation(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.StepN(4); err != nil {
		t.Fatal(err)
	}
	if s.FrameCount() != 5 {
		t.Fatalf("Expected 5 frames (generation 0 plus 4 steps), got %d", s.FrameCount())
	}

	sink := &captureSink{}
	meta, err := s.FlushRecording(context.Background(), sink)
	if err != nil {
		t.Fatal(err)
	}
	if meta.RecordingID == "" {
		t.Error("Expected a recording id")
	}
	if meta.FrameCount != 5 || len(sink.frames) != 5 {
		t.Errorf("Expected 5 frames in the sink, meta=%d sink=%d", meta.FrameCount, len(sink.frames))
	}
	if meta.GridSize != p.GridSize {
		t.Errorf("Expected grid size %d in metadata, got %d", p.GridSize, meta.GridSize)
	}
	if meta.FinalStatistics.Generation != 4 {
		t.Errorf("Expected final statistics at generation 4, got %d", meta.FinalStatistics.Generation)
	}
}

func TestFlushRecordingWithoutRecorder(t *testing.T) {
	s, err := NewSimulation(smallTestParams(), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.FlushRecording(context.Background(), &captureSink{})
	if err == nil {
		t.Fatal("Expected an error when recording is disabled")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFlushRecordingSinkFailure(t *testing.T) {
	p := smallTestParams()
	p.RecordSimulation = true

	s, err := NewSimulation(p, nil)
	if err != nil {
		t.Fatal(err)
	}

	sink := &captureSink{err: errors.New("disk full")}
	if _, err := s.FlushRecording(context.Background(), sink); err == nil {
		t.Fatal("Expected the sink error to propagate")
	}

	// The frames survive a failed flush.
	if s.FrameCount() != 1 {
		t.Errorf("Expected the captured frame to survive, got %d", s.FrameCount())
	}
}
