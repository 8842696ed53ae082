package ecosim

import (
	"fmt"
	"math/rand"
)

// sweep holds the working state of one generation: the committed
// generation-start grid, the write buffers, and the first-writer-wins
// bitmask. All rules read only cur* and write only next*.
type sweep struct {
	params Params
	rng    *rand.Rand

	cur     *Grid
	curPred *HungerGrid
	curPrey *HungerGrid

	next     *Grid
	nextPred *HungerGrid
	nextPrey *HungerGrid

	// written marks destination cells that already received a write this
	// sweep. A written cell is skipped when its own turn comes and is
	// never chosen as a destination again.
	written []bool

	events EventCounters
}

func newSweep(s *Simulation) (*sweep, error) {
	next, err := s.grid.Clone()
	if err != nil {
		return nil, err
	}
	return &sweep{
		params:   s.params,
		rng:      s.rng,
		cur:      s.grid,
		curPred:  s.predatorHunger,
		curPrey:  s.preyHunger,
		next:     next,
		nextPred: NewHungerGrid(s.grid.Size()),
		nextPrey: NewHungerGrid(s.grid.Size()),
		written:  make([]bool, s.grid.Size()*s.grid.Size()),
	}, nil
}

// setCell writes a kind into the next buffer and reconciles both hunger
// planes, keeping the "-1 iff kind mismatch" invariant even when the
// write lands on a cell whose previous occupant already acted this sweep.
func (sw *sweep) setCell(i int, kind EntityKind) {
	sw.next.cells[i] = kind
	sw.written[i] = true
	if kind != Predator {
		sw.nextPred.vals[i] = -1
	}
	if kind != Prey {
		sw.nextPrey.vals[i] = -1
	}
}

func (sw *sweep) placePredator(i, hunger int) {
	sw.setCell(i, Predator)
	sw.nextPred.vals[i] = hunger
}

func (sw *sweep) placePrey(i, hunger int) {
	sw.setCell(i, Prey)
	sw.nextPrey.vals[i] = hunger
}

func (sw *sweep) clearCell(i int) { sw.setCell(i, Empty) }

func (sw *sweep) placeSubstrate(i int) { sw.setCell(i, Substrate) }

// restore contains a failed cell rule: the destination is reset to the
// source value, hunger planes included.
func (sw *sweep) restore(i int) {
	sw.next.cells[i] = sw.cur.cells[i]
	sw.nextPred.vals[i] = sw.curPred.vals[i]
	sw.nextPrey.vals[i] = sw.curPrey.vals[i]
}

// candidates returns the coordinates within the given radius whose
// generation-start kind matches and whose destination has not been
// written yet this sweep.
func (sw *sweep) candidates(x, y, radius int, kind EntityKind) []Coord {
	all := NeighborsWithin(sw.cur.Size(), x, y, radius, sw.params.Neighborhood, sw.params.Boundary)
	out := all[:0]
	for _, c := range all {
		i := sw.cur.Index(c.X, c.Y)
		if sw.cur.cells[i] == kind && !sw.written[i] {
			out = append(out, c)
		}
	}
	return out
}

func (sw *sweep) pick(cands []Coord) int {
	c := cands[sw.rng.Intn(len(cands))]
	return sw.cur.Index(c.X, c.Y)
}

// updateCell dispatches the transition rule for the generation-start
// occupant of (x, y). A panic inside a rule is converted into an error
// for sweep-level containment.
func (sw *sweep) updateCell(x, y int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cell rule panic at (%d,%d): %v", x, y, r)
		}
	}()

	switch sw.cur.At(x, y) {
	case Predator:
		sw.updatePredator(x, y)
	case Prey:
		sw.updatePrey(x, y)
	case Substrate:
		sw.updateSubstrate(x, y)
	case Empty:
		sw.updateEmpty(x, y)
	}
	return nil
}

// updatePredator: random death, starvation, hunting (radius 2, hunger
// scaled), then hunger increment plus optional movement.
func (sw *sweep) updatePredator(x, y int) {
	i := sw.cur.Index(x, y)
	p := sw.params

	if sw.rng.Float64() < p.PredatorDeathProbability {
		sw.clearCell(i)
		return
	}

	hunger := sw.curPred.vals[i]
	if hunger >= p.PredatorStarvationSteps {
		sw.clearCell(i)
		return
	}

	// Hungrier predators take more risks: the factor is deliberately
	// uncapped so success becomes certain as starvation approaches.
	huntProb := p.HuntSuccessProb * (1 + float64(hunger)/float64(p.PredatorStarvationSteps))
	preyCells := sw.candidates(x, y, 2, Prey)
	if len(preyCells) > 0 && sw.rng.Float64() < huntProb {
		target := sw.pick(preyCells)
		sw.placePredator(target, 0)
		sw.clearCell(i)

		if sw.rng.Float64() < p.PredatorReproductionChance {
			if spots := sw.candidates(x, y, 1, Empty); len(spots) > 0 {
				sw.placePredator(sw.pick(spots), 0)
			}
		}
		return
	}

	// No hunt: the hunger write happens regardless of what follows.
	hunger++
	sw.nextPred.vals[i] = hunger

	if spots := sw.candidates(x, y, 1, Empty); len(spots) > 0 && sw.rng.Float64() < p.PredatorMovementProb {
		sw.placePredator(sw.pick(spots), hunger)
		sw.clearCell(i)
	}
}

// updatePrey: random death, starvation, predator threat (freeze), then
// foraging with reproduction, else movement.
func (sw *sweep) updatePrey(x, y int) {
	i := sw.cur.Index(x, y)
	p := sw.params

	if sw.rng.Float64() < p.PreyRandomDeath {
		sw.clearCell(i)
		return
	}

	hunger := sw.curPrey.vals[i]
	if hunger >= p.PreyStarvationSteps {
		sw.clearCell(i)
		return
	}

	// Threat is judged against the generation-start grid, not the write
	// buffer: a predator that has already moved this sweep still counts.
	threatened := CountNeighbors(sw.cur, x, y, Predator, p.Neighborhood, p.Boundary) > 0

	hunger++
	sw.nextPrey.vals[i] = hunger

	if threatened && sw.rng.Float64() < preyFreezeProbability {
		return
	}

	if subs := sw.candidates(x, y, 1, Substrate); len(subs) > 0 {
		sw.clearCell(sw.pick(subs))
		sw.nextPrey.vals[i] = 0

		if sw.rng.Float64() < p.PreyReproductionChance {
			if spots := sw.candidates(x, y, 1, Empty); len(spots) > 0 {
				sw.placePrey(sw.pick(spots), 0)
			}
		}
		return
	}

	if spots := sw.candidates(x, y, 1, Empty); len(spots) > 0 {
		sw.placePrey(sw.pick(spots), hunger)
		sw.clearCell(i)
	}
}

// updateSubstrate: decay or persist.
func (sw *sweep) updateSubstrate(x, y int) {
	if sw.rng.Float64() < sw.params.SubstrateRandomDeath {
		sw.clearCell(sw.cur.Index(x, y))
	}
}

// updateEmpty: predator birth when flanked by 2+ predators and at least
// one prey, otherwise a small chance of substrate regrowth.
func (sw *sweep) updateEmpty(x, y int) {
	i := sw.cur.Index(x, y)
	p := sw.params

	predatorNeighbors := CountNeighbors(sw.cur, x, y, Predator, p.Neighborhood, p.Boundary)
	preyNeighbors := CountNeighbors(sw.cur, x, y, Prey, p.Neighborhood, p.Boundary)
	if predatorNeighbors >= 2 && preyNeighbors >= 1 && sw.rng.Float64() < p.PredatorBirthProbability {
		sw.placePredator(i, 0)
		sw.events.PredatorBirths++
		return
	}

	// Regrowth runs at a tenth of the initial substrate probability.
	if sw.rng.Float64() < p.InitialSubstrateProbability/10 {
		sw.placeSubstrate(i)
		sw.events.SubstrateCreated++
	}
}
