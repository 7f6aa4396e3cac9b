// Package grid provides the discrete 2D coordinate primitives shared by the
// floor registry and the renovation validator.
package grid

import "fmt"

// Pos is a discrete 2D grid coordinate.
type Pos struct {
	X int
	Y int
}

// String returns the coordinate in "(x,y)" format.
func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// ChebyshevDistance returns the 8-directional grid distance between p and q:
// the number of king moves needed to travel from one to the other.
//
// Postcondition: Returns >= 0; returns 0 iff p == q.
func (p Pos) ChebyshevDistance(q Pos) int {
	dx := abs(p.X - q.X)
	dy := abs(p.Y - q.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// neighborOffsets lists the eight king-move directions.
var neighborOffsets = [8]Pos{
	{X: 1, Y: 0}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: -1},
	{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: -1, Y: -1},
}

// Neighbors8 returns the eight adjacent cells of p in a fixed order.
//
// Postcondition: Returns exactly 8 positions, each at Chebyshev distance 1 from p.
func (p Pos) Neighbors8() [8]Pos {
	var out [8]Pos
	for i, d := range neighborOffsets {
		out[i] = Pos{X: p.X + d.X, Y: p.Y + d.Y}
	}
	return out
}

// Bounds is an inclusive rectangular region of grid cells.
type Bounds struct {
	Min Pos
	Max Pos
}

// Validate checks that the bounds describe a non-empty region.
//
// Postcondition: Returns nil iff Min.X <= Max.X and Min.Y <= Max.Y.
func (b Bounds) Validate() error {
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y {
		return fmt.Errorf("bounds min %s exceeds max %s", b.Min, b.Max)
	}
	return nil
}

// Contains reports whether p lies inside the bounds, inclusive of the edges.
func (b Bounds) Contains(p Pos) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// CellCount returns the total number of cells inside the bounds.
// It is a provable upper bound on the nodes a flood fill over the region can
// expand, and sizes the search budget of the renovation connectivity check.
//
// Precondition: Validate() must return nil.
// Postcondition: Returns >= 1.
func (b Bounds) CellCount() int {
	return (b.Max.X - b.Min.X + 1) * (b.Max.Y - b.Min.Y + 1)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
