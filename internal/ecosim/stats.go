package ecosim

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StatsSnapshot is a pure read of committed state: counts, percentages
// and starvation-risk counts for one generation.
type StatsSnapshot struct {
	Generation int `json:"generation"`

	PredatorCount  int `json:"predator_count"`
	PreyCount      int `json:"prey_count"`
	SubstrateCount int `json:"substrate_count"`
	EmptyCount     int `json:"empty_count"`

	PredatorPercentage  float64 `json:"predator_percentage"`
	PreyPercentage      float64 `json:"prey_percentage"`
	SubstratePercentage float64 `json:"substrate_percentage"`
	EmptyPercentage     float64 `json:"empty_percentage"`

	StarvingPredators int `json:"starving_predators"`
	StarvingPrey      int `json:"starving_prey"`
}

// HistoryPoint is one entry of the append-only historical series, one per
// completed generation including generation 0.
type HistoryPoint struct {
	Generation     int `json:"generation" csv:"generation"`
	PredatorCount  int `json:"predator_count" csv:"predator_count"`
	PreyCount      int `json:"prey_count" csv:"prey_count"`
	SubstrateCount int `json:"substrate_count" csv:"substrate_count"`
}

// EventCounters tallies notable per-generation events. Only births and
// substrate creation are maintained by the engine; the remaining fields
// are an extensible metrics surface for callers.
type EventCounters struct {
	PredatorDeaths    int `json:"predator_deaths"`
	PredatorBirths    int `json:"predator_births"`
	PredatorStarved   int `json:"predator_starved"`
	PreyDeaths        int `json:"prey_deaths"`
	PreyBirths        int `json:"prey_births"`
	PreyHunted        int `json:"prey_hunted"`
	PreyStarved       int `json:"prey_starved"`
	SubstrateCreated  int `json:"substrate_created"`
	SubstrateConsumed int `json:"substrate_consumed"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// computeStatistics derives a snapshot from committed state. Calling it
// twice without an intervening step yields identical output.
func computeStatistics(g *Grid, predatorHunger, preyHunger *HungerGrid, p Params, generation int) StatsSnapshot {
	counts := g.Counts()
	total := g.Size() * g.Size()

	predatorRisk := int(float64(p.PredatorStarvationSteps) * starvationRiskFraction)
	preyRisk := int(float64(p.PreyStarvationSteps) * starvationRiskFraction)

	starvingPredators := 0
	for i, h := range predatorHunger.Values() {
		if g.cells[i] == Predator && h >= predatorRisk {
			starvingPredators++
		}
	}
	starvingPrey := 0
	for i, h := range preyHunger.Values() {
		if g.cells[i] == Prey && h >= preyRisk {
			starvingPrey++
		}
	}

	return StatsSnapshot{
		Generation:          generation,
		PredatorCount:       counts[Predator],
		PreyCount:           counts[Prey],
		SubstrateCount:      counts[Substrate],
		EmptyCount:          counts[Empty],
		PredatorPercentage:  round2(float64(counts[Predator]) / float64(total) * 100),
		PreyPercentage:      round2(float64(counts[Prey]) / float64(total) * 100),
		SubstratePercentage: round2(float64(counts[Substrate]) / float64(total) * 100),
		EmptyPercentage:     round2(float64(counts[Empty]) / float64(total) * 100),
		StarvingPredators:   starvingPredators,
		StarvingPrey:        starvingPrey,
	}
}

// hungerSummary reports mean and max hunger over all cells of the given
// kind. ok is false when no such entity exists.
func hungerSummary(g *Grid, hunger *HungerGrid, kind EntityKind) (mean, max float64, ok bool) {
	vals := make([]float64, 0, 64)
	for i, h := range hunger.Values() {
		if g.cells[i] == kind {
			vals = append(vals, float64(h))
		}
	}
	if len(vals) == 0 {
		return 0, 0, false
	}
	return stat.Mean(vals, nil), floats.Max(vals), true
}
