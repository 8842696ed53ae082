package ecosim

import (
	"fmt"
	"strings"
)

// Neighborhood selects which cells count as adjacent.
type Neighborhood string

const (
	// NeighborhoodVonNeumann is the 4 axis-aligned adjacent cells.
	NeighborhoodVonNeumann Neighborhood = "von_neumann"
	// NeighborhoodMoore is the 8 surrounding cells.
	NeighborhoodMoore Neighborhood = "moore"
)

// Boundary selects how coordinates behave at the grid edge. Every
// neighborhood helper in this package, at any radius, consumes this one
// enum; the legacy "bounded"/"toroidal" spellings are accepted on parse.
type Boundary string

const (
	// BoundaryFinite drops out-of-range neighbor coordinates.
	BoundaryFinite Boundary = "finite"
	// BoundaryTorus wraps coordinates modulo the grid size.
	BoundaryTorus Boundary = "torus"
)

// ParseNeighborhood parses a neighborhood name (case-insensitive).
func ParseNeighborhood(s string) (Neighborhood, error) {
	switch strings.ToLower(s) {
	case "von_neumann", "vonneumann":
		return NeighborhoodVonNeumann, nil
	case "moore":
		return NeighborhoodMoore, nil
	default:
		return "", fmt.Errorf("%w: unknown neighborhood type %q", ErrInvalidParameter, s)
	}
}

// ParseBoundary parses a boundary-mode name (case-insensitive), accepting
// the legacy aliases used by older parameter files.
func ParseBoundary(s string) (Boundary, error) {
	switch strings.ToLower(s) {
	case "finite", "bounded":
		return BoundaryFinite, nil
	case "torus", "toroidal":
		return BoundaryTorus, nil
	default:
		return "", fmt.Errorf("%w: unknown grid type %q", ErrInvalidParameter, s)
	}
}

// MaxGridSize bounds the accepted grid side length.
const MaxGridSize = 2000

// FullFrameGridLimit is the largest grid side for which recorded frames
// and HTTP responses carry full cell data; larger grids ship counts only.
const FullFrameGridLimit = 500

const (
	// Grid sizes at or above this get the large-grid density clamps.
	largeGridSize = 800
	// Grid sizes at or above this get the tighter 30% density cap.
	hugeGridSize = 1000

	maxEntityDensity      = 0.8
	maxEntityDensityLarge = 0.4
	maxEntityDensityHuge  = 0.3
	maxSubstrateProbLarge = 0.2

	// Chance a threatened prey freezes instead of acting.
	preyFreezeProbability = 0.7

	// Fraction of the starvation threshold above which an entity counts
	// as at risk of starving.
	starvationRiskFraction = 0.8
)

// Params is the immutable per-run configuration of a simulation session.
// It is constructed once at session start; mutating it mid-run is
// undefined behavior.
type Params struct {
	GridSize     int          `json:"grid_size"`
	Steps        int          `json:"steps"`
	Neighborhood Neighborhood `json:"neighborhood_type"`
	Boundary     Boundary     `json:"grid_type"`

	// Seed fixes the random stream; 0 seeds from the clock.
	Seed int64 `json:"seed,omitempty"`

	RecordSimulation bool `json:"record_simulation"`

	PredatorDeathProbability   float64 `json:"predator_death_probability"`
	PredatorBirthProbability   float64 `json:"predator_birth_probability"`
	PredatorReproductionChance float64 `json:"predator_reproduction_chance"`
	PredatorMovementProb       float64 `json:"predator_movement_prob"`
	PredatorStarvationSteps    int     `json:"predator_starvation_steps"`
	InitialPredators           int     `json:"initial_predators"`
	HuntSuccessProb            float64 `json:"hunt_success_prob"`

	PreyRandomDeath        float64 `json:"prey_random_death"`
	PreyReproductionChance float64 `json:"prey_reproduction_chance"`
	PreyStarvationSteps    int     `json:"prey_starvation_steps"`
	InitialPrey            int     `json:"initial_prey"`

	InitialSubstrateProbability float64 `json:"initial_substrate_probability"`
	SubstrateRandomDeath        float64 `json:"substrate_random_death"`
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		GridSize:     100,
		Steps:        100,
		Neighborhood: NeighborhoodVonNeumann,
		Boundary:     BoundaryTorus,

		PredatorDeathProbability:   0.05,
		PredatorBirthProbability:   0.33,
		PredatorReproductionChance: 0.2,
		PredatorMovementProb:       0.5,
		PredatorStarvationSteps:    10,
		InitialPredators:           3,
		HuntSuccessProb:            0.7,

		PreyRandomDeath:        0.01,
		PreyReproductionChance: 0.7,
		PreyStarvationSteps:    3,
		InitialPrey:            2000,

		InitialSubstrateProbability: 0.25,
		SubstrateRandomDeath:        0.03,
	}
}

// ValidationError collects multiple validation issues.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid parameters: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "parameter validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// Unwrap makes every validation failure match ErrInvalidParameter.
func (e *ValidationError) Unwrap() error { return ErrInvalidParameter }

// Validate checks every field of the parameter set and reports all
// violations at once.
func (p Params) Validate() error {
	err := &ValidationError{}

	if p.GridSize <= 0 {
		err.Add(fmt.Sprintf("grid_size must be a positive integer, got %d", p.GridSize))
	} else if p.GridSize > MaxGridSize {
		err.Add(fmt.Sprintf("grid_size must be at most %d, got %d", MaxGridSize, p.GridSize))
	}
	if p.Steps < 0 {
		err.Add(fmt.Sprintf("steps must be non-negative, got %d", p.Steps))
	}
	if p.Neighborhood != NeighborhoodVonNeumann && p.Neighborhood != NeighborhoodMoore {
		err.Add(fmt.Sprintf("neighborhood_type must be %q or %q, got %q",
			NeighborhoodVonNeumann, NeighborhoodMoore, p.Neighborhood))
	}
	if p.Boundary != BoundaryFinite && p.Boundary != BoundaryTorus {
		err.Add(fmt.Sprintf("grid_type must be %q or %q, got %q",
			BoundaryFinite, BoundaryTorus, p.Boundary))
	}
	if p.InitialPredators < 0 {
		err.Add(fmt.Sprintf("initial_predators must be non-negative, got %d", p.InitialPredators))
	}
	if p.InitialPrey < 0 {
		err.Add(fmt.Sprintf("initial_prey must be non-negative, got %d", p.InitialPrey))
	}
	if p.PredatorStarvationSteps <= 0 {
		err.Add(fmt.Sprintf("predator_starvation_steps must be positive, got %d", p.PredatorStarvationSteps))
	}
	if p.PreyStarvationSteps <= 0 {
		err.Add(fmt.Sprintf("prey_starvation_steps must be positive, got %d", p.PreyStarvationSteps))
	}

	probabilities := []struct {
		name  string
		value float64
	}{
		{"predator_death_probability", p.PredatorDeathProbability},
		{"predator_birth_probability", p.PredatorBirthProbability},
		{"predator_reproduction_chance", p.PredatorReproductionChance},
		{"predator_movement_prob", p.PredatorMovementProb},
		{"prey_random_death", p.PreyRandomDeath},
		{"prey_reproduction_chance", p.PreyReproductionChance},
		{"initial_substrate_probability", p.InitialSubstrateProbability},
		{"substrate_random_death", p.SubstrateRandomDeath},
	}
	for _, pr := range probabilities {
		if pr.value < 0 || pr.value > 1 {
			err.Add(fmt.Sprintf("%s must be between 0 and 1, got %g", pr.name, pr.value))
		}
	}
	// Hunt success is scaled up with hunger, so only the base is bounded.
	if p.HuntSuccessProb < 0 || p.HuntSuccessProb > 1 {
		err.Add(fmt.Sprintf("hunt_success_prob must be between 0 and 1, got %g", p.HuntSuccessProb))
	}

	if err.HasIssues() {
		return err
	}
	return nil
}
