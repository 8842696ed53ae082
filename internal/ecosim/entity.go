package ecosim

import "fmt"

// EntityKind identifies what occupies a grid cell.
// The numeric values are the wire representation used by the HTTP API
// and by recorded frames.
type EntityKind uint8

const (
	Empty EntityKind = iota
	Prey
	Predator
	Substrate
)

func (k EntityKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Prey:
		return "prey"
	case Predator:
		return "predator"
	case Substrate:
		return "substrate"
	default:
		return "unknown"
	}
}

// Grid is a size×size row-major matrix of entity kinds. A Grid is
// exclusively owned by one simulation session and replaced wholesale
// on each committed generation.
type Grid struct {
	size  int
	cells []EntityKind
}

// NewGrid allocates an all-Empty grid. An allocation panic for an
// oversized grid is converted into an ErrAllocation error.
func NewGrid(size int) (g *Grid, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: grid size must be positive, got %d", ErrInvalidParameter, size)
	}
	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = fmt.Errorf("%w: cannot allocate %dx%d grid: %v", ErrAllocation, size, size, r)
		}
	}()
	return &Grid{size: size, cells: make([]EntityKind, size*size)}, nil
}

// Size returns the grid side length.
func (g *Grid) Size() int { return g.size }

// Index returns the linear index for coordinates (x, y).
func (g *Grid) Index(x, y int) int { return x*g.size + y }

// At returns the entity kind at (x, y).
func (g *Grid) At(x, y int) EntityKind { return g.cells[x*g.size+y] }

// Set writes the entity kind at (x, y).
func (g *Grid) Set(x, y int, k EntityKind) { g.cells[x*g.size+y] = k }

// Cells exposes the backing slice in row-major order.
func (g *Grid) Cells() []EntityKind { return g.cells }

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() (*Grid, error) {
	c, err := NewGrid(g.size)
	if err != nil {
		return nil, err
	}
	copy(c.cells, g.cells)
	return c, nil
}

// Count returns the number of cells holding the given kind.
func (g *Grid) Count(kind EntityKind) int {
	n := 0
	for _, c := range g.cells {
		if c == kind {
			n++
		}
	}
	return n
}

// Counts tallies all four kinds in a single pass, indexed by EntityKind.
func (g *Grid) Counts() [4]int {
	var out [4]int
	for _, c := range g.cells {
		out[c]++
	}
	return out
}

// Rows returns the grid as a matrix of small integers, the wire format
// used by the HTTP API and recorded frames.
func (g *Grid) Rows() [][]int {
	rows := make([][]int, g.size)
	for x := 0; x < g.size; x++ {
		row := make([]int, g.size)
		for y := 0; y < g.size; y++ {
			row[y] = int(g.cells[x*g.size+y])
		}
		rows[x] = row
	}
	return rows
}

// HungerGrid tracks per-cell hunger counters for one entity kind.
// A value of -1 means the co-located cell is not that kind; otherwise the
// value is the number of generations survived since last feeding.
type HungerGrid struct {
	size int
	vals []int
}

// NewHungerGrid allocates a hunger grid with every cell set to -1.
func NewHungerGrid(size int) *HungerGrid {
	h := &HungerGrid{size: size, vals: make([]int, size*size)}
	for i := range h.vals {
		h.vals[i] = -1
	}
	return h
}

// At returns the hunger counter at (x, y).
func (h *HungerGrid) At(x, y int) int { return h.vals[x*h.size+y] }

// Set writes the hunger counter at (x, y).
func (h *HungerGrid) Set(x, y int, v int) { h.vals[x*h.size+y] = v }

// Values exposes the backing slice in row-major order.
func (h *HungerGrid) Values() []int { return h.vals }

// Clone returns an independent copy of the hunger grid.
func (h *HungerGrid) Clone() *HungerGrid {
	c := &HungerGrid{size: h.size, vals: make([]int, len(h.vals))}
	copy(c.vals, h.vals)
	return c
}
