package ecosim

// Coord is a grid coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Neighbors returns the radius-1 neighbor coordinates of (x, y).
func Neighbors(size, x, y int, nh Neighborhood, b Boundary) []Coord {
	return NeighborsWithin(size, x, y, 1, nh, b)
}

// NeighborsWithin returns all neighbor coordinates of (x, y) within the
// given radius, excluding the center: Chebyshev distance for Moore,
// Manhattan distance for von Neumann. With a torus boundary coordinates
// wrap modulo size; with a finite boundary out-of-range coordinates are
// dropped.
func NeighborsWithin(size, x, y, radius int, nh Neighborhood, b Boundary) []Coord {
	if size <= 0 || radius <= 0 {
		return nil
	}
	out := make([]Coord, 0, (2*radius+1)*(2*radius+1)-1)
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if nh == NeighborhoodVonNeumann && abs(dx)+abs(dy) > radius {
				continue
			}
			nx, ny := x+dx, y+dy
			if b == BoundaryTorus {
				nx = ((nx % size) + size) % size
				ny = ((ny % size) + size) % size
			} else if nx < 0 || nx >= size || ny < 0 || ny >= size {
				continue
			}
			out = append(out, Coord{X: nx, Y: ny})
		}
	}
	return out
}

// CountNeighbors counts radius-1 neighbors of (x, y) holding the given kind.
func CountNeighbors(g *Grid, x, y int, kind EntityKind, nh Neighborhood, b Boundary) int {
	n := 0
	for _, c := range Neighbors(g.Size(), x, y, nh, b) {
		if g.At(c.X, c.Y) == kind {
			n++
		}
	}
	return n
}
