package ecosim

import (
	"fmt"
	"math/rand"
	"time"
)

// AdjustmentValues holds one set of initialization inputs, either as
// requested by the caller or as adjusted by the density policy.
type AdjustmentValues struct {
	InitialPrey          int     `json:"initial_prey"`
	InitialPredators     int     `json:"initial_predators"`
	SubstrateProbability float64 `json:"initial_substrate_probability"`
}

// AdjustmentReport records whether requested entity counts or
// probabilities were clamped during grid initialization. It is always
// produced; when nothing was clamped ValuesAdjusted is false, Adjusted
// equals Original and Reason is empty.
type AdjustmentReport struct {
	ValuesAdjusted  bool             `json:"values_adjusted"`
	Original        AdjustmentValues `json:"original_values"`
	Adjusted        AdjustmentValues `json:"adjusted_values"`
	PlacedPrey      int              `json:"placed_prey"`
	PlacedPredators int              `json:"placed_predators"`
	PlacedSubstrate int              `json:"placed_substrate"`
	Reason          string           `json:"reason,omitempty"`
}

// InitializeGrid builds the initial grid: validation, density clamps for
// large grids, then disjoint placement of predators, prey and substrate
// over a single shuffled permutation of all cell indices. rng may be nil,
// in which case a clock-seeded generator is used.
func InitializeGrid(size, initialPrey, initialPredators int, substrateProb float64, rng *rand.Rand) (*Grid, AdjustmentReport, error) {
	report := AdjustmentReport{
		Original: AdjustmentValues{
			InitialPrey:          initialPrey,
			InitialPredators:     initialPredators,
			SubstrateProbability: substrateProb,
		},
	}

	if size <= 0 || size > MaxGridSize {
		return nil, report, fmt.Errorf("%w: grid size must be in [1,%d], got %d", ErrInvalidParameter, MaxGridSize, size)
	}
	if initialPrey < 0 {
		return nil, report, fmt.Errorf("%w: initial prey must be non-negative, got %d", ErrInvalidParameter, initialPrey)
	}
	if initialPredators < 0 {
		return nil, report, fmt.Errorf("%w: initial predators must be non-negative, got %d", ErrInvalidParameter, initialPredators)
	}
	if substrateProb < 0 || substrateProb > 1 {
		return nil, report, fmt.Errorf("%w: substrate probability must be between 0 and 1, got %g", ErrInvalidParameter, substrateProb)
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	totalCells := size * size
	totalEntities := initialPrey + initialPredators

	if size >= largeGridSize {
		maxDensity := maxEntityDensityLarge
		if size >= hugeGridSize {
			maxDensity = maxEntityDensityHuge
		}
		if float64(totalEntities) > float64(totalCells)*maxDensity {
			initialPrey, initialPredators = splitByRatio(initialPrey, totalEntities, int(float64(totalCells)*maxDensity))
			report.ValuesAdjusted = true
			report.Reason = fmt.Sprintf("Grid too large (%d×%d). Entity counts reduced to prevent memory issues.", size, size)
		}
		if substrateProb > maxSubstrateProbLarge {
			substrateProb = maxSubstrateProbLarge
			report.ValuesAdjusted = true
			if report.Reason != "" {
				report.Reason += " "
			}
			report.Reason += "Substrate probability reduced to avoid memory issues."
		}
	} else if float64(totalEntities) > float64(totalCells)*maxEntityDensity {
		initialPrey, initialPredators = splitByRatio(initialPrey, totalEntities, int(float64(totalCells)*maxEntityDensity))
		report.ValuesAdjusted = true
		report.Reason = fmt.Sprintf("Too many entities for grid size. Reduced to %d%% of total cells.", int(maxEntityDensity*100))
	}

	grid, err := NewGrid(size)
	if err != nil {
		return nil, report, err
	}

	// One shuffled permutation of all cell indices gives disjoint
	// placement with exact density control and no rejection sampling.
	perm := rng.Perm(totalCells)
	cursor := 0

	predatorCount := min(initialPredators, totalCells-cursor)
	for _, idx := range perm[cursor : cursor+predatorCount] {
		grid.cells[idx] = Predator
	}
	cursor += predatorCount

	preyCount := min(initialPrey, totalCells-cursor)
	for _, idx := range perm[cursor : cursor+preyCount] {
		grid.cells[idx] = Prey
	}
	cursor += preyCount

	substrateCount := 0
	if substrateProb > 0 {
		substrateCount = int(float64(totalCells-cursor) * substrateProb)
		for _, idx := range perm[cursor : cursor+substrateCount] {
			grid.cells[idx] = Substrate
		}
	}

	// Reconcile actual placement back into the report; counts can fall
	// short of the request when the grid ran out of cells.
	counts := grid.Counts()
	report.PlacedPredators = counts[Predator]
	report.PlacedPrey = counts[Prey]
	report.PlacedSubstrate = counts[Substrate]
	if counts[Predator] != report.Original.InitialPredators || counts[Prey] != report.Original.InitialPrey {
		report.ValuesAdjusted = true
		if predatorCount < initialPredators || preyCount < initialPrey {
			if report.Reason != "" {
				report.Reason += " "
			}
			report.Reason += fmt.Sprintf("Only placed %d/%d predators and %d/%d prey due to space constraints.",
				predatorCount, initialPredators, preyCount, initialPrey)
		}
	}
	report.Adjusted = AdjustmentValues{
		InitialPrey:          counts[Prey],
		InitialPredators:     counts[Predator],
		SubstrateProbability: substrateProb,
	}

	return grid, report, nil
}

// splitByRatio caps prey+predators at maxEntities, preserving the
// requested prey/predator ratio within rounding.
func splitByRatio(requestedPrey, requestedTotal, maxEntities int) (prey, predators int) {
	ratio := 0.5
	if requestedTotal > 0 {
		ratio = float64(requestedPrey) / float64(requestedTotal)
	}
	prey = int(float64(maxEntities) * ratio)
	predators = maxEntities - prey
	return prey, predators
}
