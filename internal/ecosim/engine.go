package ecosim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimulationID is a unique identifier for a simulation session.
type SimulationID string

// Simulation is one predator/prey/substrate session: the grid, the
// hunger planes, the immutable parameters and the bookkeeping around
// them. The grid and hunger buffers are exclusively owned by the session
// between generations; external readers observe only post-commit state.
type Simulation struct {
	mu sync.RWMutex

	id     SimulationID
	params Params

	grid           *Grid
	predatorHunger *HungerGrid
	preyHunger     *HungerGrid

	generation int
	history    []HistoryPoint
	events     EventCounters
	adjustment AdjustmentReport

	recorder *Recorder
	rng      *rand.Rand
	logger   Logger
	notifier *NotificationManager

	stopCh    chan struct{}
	isRunning bool
}

// NewSimulation validates the parameters, initializes the grid under the
// density policy and returns a ready session at generation 0.
func NewSimulation(params Params, logger Logger) (*Simulation, error) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	grid, adjustment, err := InitializeGrid(
		params.GridSize, params.InitialPrey, params.InitialPredators,
		params.InitialSubstrateProbability, rng)
	if err != nil {
		return nil, err
	}
	if adjustment.ValuesAdjusted {
		logger.Warnf("initialization adjusted requested values: %s", adjustment.Reason)
	}

	s := &Simulation{
		id:             SimulationID(uuid.NewString()),
		params:         params,
		grid:           grid,
		predatorHunger: NewHungerGrid(params.GridSize),
		preyHunger:     NewHungerGrid(params.GridSize),
		adjustment:     adjustment,
		rng:            rng,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}

	// Every freshly placed predator and prey starts with hunger 0.
	for i, kind := range grid.cells {
		switch kind {
		case Predator:
			s.predatorHunger.vals[i] = 0
		case Prey:
			s.preyHunger.vals[i] = 0
		}
	}

	counts := grid.Counts()
	s.history = append(s.history, HistoryPoint{
		Generation:     0,
		PredatorCount:  counts[Predator],
		PreyCount:      counts[Prey],
		SubstrateCount: counts[Substrate],
	})

	if params.RecordSimulation {
		s.recorder = newRecorder()
		s.recorder.Capture(grid, 0)
	}

	logger.Infof("simulation %s initialized: size=%d predators=%d prey=%d substrate=%d",
		s.id, params.GridSize, counts[Predator], counts[Prey], counts[Substrate])
	return s, nil
}

// ID returns the session identifier.
func (s *Simulation) ID() SimulationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// SetID overrides the generated session identifier. Intended for the
// session manager before the session is shared.
func (s *Simulation) SetID(id SimulationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Params returns the immutable run configuration.
func (s *Simulation) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Generation returns the number of completed generations.
func (s *Simulation) Generation() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Adjustment returns the initialization adjustment report.
func (s *Simulation) Adjustment() AdjustmentReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adjustment
}

// Events returns the event counters accumulated so far.
func (s *Simulation) Events() EventCounters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// GridRows returns a copy of the committed grid in wire format.
func (s *Simulation) GridRows() [][]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Rows()
}

// SetNotificationManager attaches a push channel for generation events.
func (s *Simulation) SetNotificationManager(nm *NotificationManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = nm
}

// Step computes one generation: a synchronous sweep of all cells in a
// fresh random permutation, evaluated against the generation-start grid
// and written into fresh buffers that replace the committed state
// atomically. A fault in a single cell rule is contained to that cell;
// the sweep always completes.
func (s *Simulation) Step() (StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	size := s.grid.Size()

	sw, err := newSweep(s)
	if err != nil {
		// The committed grid is untouched on allocation failure.
		return StatsSnapshot{}, fmt.Errorf("generation %d: %w", s.generation+1, err)
	}

	for _, i := range s.rng.Perm(size * size) {
		if sw.written[i] {
			continue
		}
		x, y := i/size, i%size
		if err := sw.updateCell(x, y); err != nil {
			s.logger.Errorf("simulation %s: %v (cell contained)", s.id, err)
			sw.restore(i)
		}
	}

	// Commit: buffers and hunger planes replace the state wholesale.
	s.grid = sw.next
	s.predatorHunger = sw.nextPred
	s.preyHunger = sw.nextPrey
	s.generation++
	s.events.PredatorBirths += sw.events.PredatorBirths
	s.events.SubstrateCreated += sw.events.SubstrateCreated

	counts := s.grid.Counts()
	s.history = append(s.history, HistoryPoint{
		Generation:     s.generation,
		PredatorCount:  counts[Predator],
		PreyCount:      counts[Prey],
		SubstrateCount: counts[Substrate],
	})

	if s.recorder != nil {
		s.recorder.Capture(s.grid, s.generation)
	}

	if mean, max, ok := hungerSummary(s.grid, s.predatorHunger, Predator); ok {
		s.logger.Debugf("simulation %s predator hunger: avg=%.2f max=%.0f", s.id, mean, max)
	}
	if mean, max, ok := hungerSummary(s.grid, s.preyHunger, Prey); ok {
		s.logger.Debugf("simulation %s prey hunger: avg=%.2f max=%.0f", s.id, mean, max)
	}

	snapshot := computeStatistics(s.grid, s.predatorHunger, s.preyHunger, s.params, s.generation)

	if s.notifier != nil {
		s.notifier.Publish(GenerationEvent{
			SimulationID: s.id,
			Generation:   s.generation,
			Statistics:   snapshot,
			Timestamp:    time.Now().UTC(),
		})
	}

	s.logger.Debugf("simulation %s generation %d completed in %s",
		s.id, s.generation, time.Since(started).Round(time.Microsecond))
	return snapshot, nil
}

// StepN runs up to n generations, stopping early on error.
func (s *Simulation) StepN(n int) (StatsSnapshot, error) {
	var (
		snap StatsSnapshot
		err  error
	)
	for i := 0; i < n; i++ {
		snap, err = s.Step()
		if err != nil {
			return snap, err
		}
	}
	if n <= 0 {
		snap = s.Statistics()
	}
	return snap, nil
}

// Statistics is a pure read of committed state. Calling it twice without
// an intervening Step yields identical output.
func (s *Simulation) Statistics() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStatistics(s.grid, s.predatorHunger, s.preyHunger, s.params, s.generation)
}

// History returns a copy of the append-only historical series.
func (s *Simulation) History() []HistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryPoint, len(s.history))
	copy(out, s.history)
	return out
}

// Recording reports whether frame capture is enabled.
func (s *Simulation) Recording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recorder != nil
}

// FrameCount returns the number of frames captured so far.
func (s *Simulation) FrameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.recorder == nil {
		return 0
	}
	return s.recorder.FrameCount()
}

// FlushRecording persists the captured frames and their metadata to the
// sink under a fresh recording id. A sink failure is returned as an
// error and leaves the in-memory session untouched.
func (s *Simulation) FlushRecording(ctx context.Context, sink RecordingSink) (RecordingMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.recorder == nil || s.recorder.FrameCount() == 0 {
		return RecordingMetadata{}, fmt.Errorf("%w: simulation %s has no recording", ErrNotFound, s.id)
	}

	meta := RecordingMetadata{
		RecordingID:     uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		GridSize:        s.grid.Size(),
		FrameCount:      s.recorder.FrameCount(),
		Parameters:      s.params,
		FinalStatistics: computeStatistics(s.grid, s.predatorHunger, s.preyHunger, s.params, s.generation),
	}
	if err := sink.Put(ctx, meta, s.recorder.Frames()); err != nil {
		return RecordingMetadata{}, fmt.Errorf("flush recording %s: %w", meta.RecordingID, err)
	}
	s.logger.Infof("recording %s saved with %d frames", meta.RecordingID, meta.FrameCount)
	return meta, nil
}

// Run advances the simulation on its own ticker until Stop is called.
// Cancellation is only honored between generations: a started sweep
// always runs to completion. Run can be called again after Stop.
func (s *Simulation) Run(interval time.Duration) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.stopCh = stop
	s.isRunning = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Step(); err != nil {
					s.logger.Errorf("simulation %s auto-run stopped: %v", s.ID(), err)
					s.mu.Lock()
					// A later Run may already own the flag.
					if s.stopCh == stop {
						s.isRunning = false
					}
					s.mu.Unlock()
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts auto-running. The session remains usable for manual steps.
// Calling Stop on a stopped session is a no-op.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopCh)
}

// IsRunning reports whether the auto-run ticker is active.
func (s *Simulation) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
