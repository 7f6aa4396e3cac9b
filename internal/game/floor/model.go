// Package floor provides the dungeon floor model and the registry that owns
// the ordered floor stack: stair positions, wall sets, occupancy, and the
// core flag on the deepest floor.
package floor

import (
	"errors"
	"fmt"

	"github.com/hollowroot/keeper/internal/game/grid"
)

// Registry operation errors.
var (
	// ErrInvalidIndex indicates a floor index outside [1, max floors].
	ErrInvalidIndex = errors.New("invalid floor index")
	// ErrMaxFloorsReached indicates an expansion beyond the configured cap.
	ErrMaxFloorsReached = errors.New("maximum floor count reached")
)

// Floor is one level of the dungeon. Floors are created at index 1 and grow
// downward; the deepest floor holds the core and has no down-stair.
type Floor struct {
	// Index is the 1-based floor number, contiguous from 1.
	Index int
	// UpStair is the stair leading to the floor above. Nil on floor 1.
	UpStair *grid.Pos
	// DownStair is the stair leading to the floor below. Nil on the deepest floor.
	DownStair *grid.Pos
	// HasCore is true only on the single deepest floor.
	HasCore bool

	// walls is the committed set of impassable cells.
	walls map[grid.Pos]bool
	// occupants is the ordered list of occupant IDs on this floor.
	occupants []string
	// visitors counts transient non-occupant presences (e.g. the keeper avatar).
	visitors int
}

// Walls returns a copy of the committed wall set.
//
// Postcondition: Mutating the returned map does not affect the floor.
func (f *Floor) Walls() map[grid.Pos]bool {
	out := make(map[grid.Pos]bool, len(f.walls))
	for p := range f.walls {
		out[p] = true
	}
	return out
}

// HasWall reports whether the committed wall set contains pos.
func (f *Floor) HasWall(pos grid.Pos) bool {
	return f.walls[pos]
}

// WallCount returns the number of committed wall cells.
func (f *Floor) WallCount() int {
	return len(f.walls)
}

// Occupants returns a copy of the occupant ID list.
func (f *Floor) Occupants() []string {
	out := make([]string, len(f.occupants))
	copy(out, f.occupants)
	return out
}

// validate checks the floor's structural invariants: stairs inside bounds and
// no wall cell within Chebyshev distance 1 of either stair.
func (f *Floor) validate(bounds grid.Bounds) error {
	for _, stair := range []*grid.Pos{f.UpStair, f.DownStair} {
		if stair == nil {
			continue
		}
		if !bounds.Contains(*stair) {
			return fmt.Errorf("floor %d: stair %s outside bounds", f.Index, *stair)
		}
		for wall := range f.walls {
			if wall.ChebyshevDistance(*stair) < 1 {
				return fmt.Errorf("floor %d: wall %s coincides with stair %s", f.Index, wall, *stair)
			}
		}
	}
	for wall := range f.walls {
		if !bounds.Contains(wall) {
			return fmt.Errorf("floor %d: wall %s outside bounds", f.Index, wall)
		}
	}
	return nil
}
