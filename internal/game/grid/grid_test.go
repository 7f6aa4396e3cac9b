package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hollowroot/keeper/internal/game/grid"
)

func TestPos_ChebyshevDistance(t *testing.T) {
	tests := []struct {
		p, q grid.Pos
		want int
	}{
		{grid.Pos{X: 0, Y: 0}, grid.Pos{X: 0, Y: 0}, 0},
		{grid.Pos{X: 0, Y: 0}, grid.Pos{X: 1, Y: 1}, 1},
		{grid.Pos{X: 0, Y: 0}, grid.Pos{X: 5, Y: 5}, 5},
		{grid.Pos{X: 0, Y: 0}, grid.Pos{X: 3, Y: -7}, 7},
		{grid.Pos{X: -2, Y: 4}, grid.Pos{X: 2, Y: 4}, 4},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.p.ChebyshevDistance(tc.q), "%s to %s", tc.p, tc.q)
	}
}

func TestPos_ChebyshevDistance_Property_Symmetric(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := grid.Pos{X: rapid.IntRange(-20, 20).Draw(rt, "px"), Y: rapid.IntRange(-20, 20).Draw(rt, "py")}
		q := grid.Pos{X: rapid.IntRange(-20, 20).Draw(rt, "qx"), Y: rapid.IntRange(-20, 20).Draw(rt, "qy")}
		assert.Equal(rt, p.ChebyshevDistance(q), q.ChebyshevDistance(p))
		assert.GreaterOrEqual(rt, p.ChebyshevDistance(q), 0)
	})
}

func TestPos_Neighbors8(t *testing.T) {
	p := grid.Pos{X: 2, Y: -3}
	neighbors := p.Neighbors8()
	seen := make(map[grid.Pos]bool)
	for _, n := range neighbors {
		assert.Equal(t, 1, p.ChebyshevDistance(n))
		seen[n] = true
	}
	assert.Len(t, seen, 8, "all neighbors distinct")
}

func TestBounds_Validate(t *testing.T) {
	ok := grid.Bounds{Min: grid.Pos{X: -10, Y: -10}, Max: grid.Pos{X: 10, Y: 10}}
	require.NoError(t, ok.Validate())

	bad := grid.Bounds{Min: grid.Pos{X: 5, Y: 0}, Max: grid.Pos{X: -5, Y: 0}}
	assert.Error(t, bad.Validate())
}

func TestBounds_Contains(t *testing.T) {
	b := grid.Bounds{Min: grid.Pos{X: -10, Y: -10}, Max: grid.Pos{X: 10, Y: 10}}
	assert.True(t, b.Contains(grid.Pos{X: 0, Y: 0}))
	assert.True(t, b.Contains(grid.Pos{X: -10, Y: 10}), "edges are inclusive")
	assert.False(t, b.Contains(grid.Pos{X: 11, Y: 0}))
	assert.False(t, b.Contains(grid.Pos{X: 0, Y: -11}))
}

func TestBounds_CellCount(t *testing.T) {
	b := grid.Bounds{Min: grid.Pos{X: -10, Y: -10}, Max: grid.Pos{X: 10, Y: 10}}
	assert.Equal(t, 441, b.CellCount())

	single := grid.Bounds{Min: grid.Pos{X: 3, Y: 3}, Max: grid.Pos{X: 3, Y: 3}}
	assert.Equal(t, 1, single.CellCount())
}

func TestBounds_CellCount_Property_MatchesEnumeration(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		minX := rapid.IntRange(-5, 5).Draw(rt, "min_x")
		minY := rapid.IntRange(-5, 5).Draw(rt, "min_y")
		b := grid.Bounds{
			Min: grid.Pos{X: minX, Y: minY},
			Max: grid.Pos{X: minX + rapid.IntRange(0, 8).Draw(rt, "w"), Y: minY + rapid.IntRange(0, 8).Draw(rt, "h")},
		}
		count := 0
		for x := b.Min.X; x <= b.Max.X; x++ {
			for y := b.Min.Y; y <= b.Max.Y; y++ {
				if b.Contains(grid.Pos{X: x, Y: y}) {
					count++
				}
			}
		}
		assert.Equal(rt, b.CellCount(), count)
	})
}
