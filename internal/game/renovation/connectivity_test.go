package renovation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/hollowroot/keeper/internal/game/grid"
)

var testBounds = grid.Bounds{Min: grid.Pos{X: -10, Y: -10}, Max: grid.Pos{X: 10, Y: 10}}

func TestPathExists_OpenFloor(t *testing.T) {
	assert.True(t, pathExists(grid.Pos{X: 0, Y: 0}, grid.Pos{X: 5, Y: 5}, nil, testBounds))
}

func TestPathExists_StartEqualsGoal(t *testing.T) {
	assert.True(t, pathExists(grid.Pos{X: 3, Y: 3}, grid.Pos{X: 3, Y: 3}, nil, testBounds))
}

func TestPathExists_DiagonalThroughGap(t *testing.T) {
	// A wall row with a single gap: the flood must route through it.
	walls := make(map[grid.Pos]bool)
	for x := -10; x <= 10; x++ {
		if x != 8 {
			walls[grid.Pos{X: x, Y: 3}] = true
		}
	}
	assert.True(t, pathExists(grid.Pos{X: 0, Y: 0}, grid.Pos{X: 5, Y: 5}, walls, testBounds))
}

func TestPathExists_FullRowBlocks(t *testing.T) {
	walls := make(map[grid.Pos]bool)
	for x := -10; x <= 10; x++ {
		walls[grid.Pos{X: x, Y: 3}] = true
	}
	assert.False(t, pathExists(grid.Pos{X: 0, Y: 0}, grid.Pos{X: 5, Y: 5}, walls, testBounds))
}

func TestPathExists_DiagonalSqueeze(t *testing.T) {
	// 8-directional movement passes diagonally between two walls that only
	// touch at a corner.
	walls := map[grid.Pos]bool{
		{X: 1, Y: 0}: true,
		{X: 0, Y: 1}: true,
	}
	assert.True(t, pathExists(grid.Pos{X: 0, Y: 0}, grid.Pos{X: 5, Y: 5}, walls, testBounds))
}

func TestPathExists_Property_RemovalIsMonotone(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bounds := grid.Bounds{Min: grid.Pos{X: -5, Y: -5}, Max: grid.Pos{X: 5, Y: 5}}
		start := grid.Pos{X: -4, Y: -4}
		goal := grid.Pos{X: 4, Y: 4}

		walls := make(map[grid.Pos]bool)
		wallCount := rapid.IntRange(0, 40).Draw(rt, "wall_count")
		for i := 0; i < wallCount; i++ {
			p := grid.Pos{
				X: rapid.IntRange(-5, 5).Draw(rt, "wx"),
				Y: rapid.IntRange(-5, 5).Draw(rt, "wy"),
			}
			if p != start && p != goal {
				walls[p] = true
			}
		}

		before := pathExists(start, goal, walls, bounds)

		// Remove a random subset of the walls.
		removed := make(map[grid.Pos]bool, len(walls))
		for p := range walls {
			if rapid.Bool().Draw(rt, "keep") {
				removed[p] = true
			}
		}
		after := pathExists(start, goal, removed, bounds)

		if before {
			assert.True(rt, after, "removing walls must never sever an existing path")
		}
	})
}

func TestPathExists_Property_BudgetAlwaysTerminates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bounds := grid.Bounds{Min: grid.Pos{X: 0, Y: 0}, Max: grid.Pos{X: 6, Y: 6}}
		start := grid.Pos{X: 0, Y: 0}
		goal := grid.Pos{
			X: rapid.IntRange(0, 6).Draw(rt, "gx"),
			Y: rapid.IntRange(0, 6).Draw(rt, "gy"),
		}
		// No walls: every goal inside the bounds must be found within the
		// CellCount budget.
		assert.True(rt, pathExists(start, goal, nil, bounds))
	})
}
