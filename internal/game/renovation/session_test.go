package renovation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowroot/keeper/internal/events"
	"github.com/hollowroot/keeper/internal/game/floor"
	"github.com/hollowroot/keeper/internal/game/grid"
	"github.com/hollowroot/keeper/internal/game/renovation"
)

// newDungeon builds a three-floor registry so that floor 2 has both stairs:
// up at (0,0) and down at (5,5).
func newDungeon(t *testing.T, bus *events.Bus) *floor.Registry {
	t.Helper()
	r, err := floor.NewRegistry(floor.RegistryConfig{
		MaxFloors: 10,
		Bounds: grid.Bounds{
			Min: grid.Pos{X: -10, Y: -10},
			Max: grid.Pos{X: 10, Y: 10},
		},
		DefaultUpStair:   grid.Pos{X: 0, Y: 0},
		DefaultDownStair: grid.Pos{X: 5, Y: 5},
	}, bus)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = r.Expand()
		require.NoError(t, err)
	}
	return r
}

func TestManager_StartSession(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)

	s, err := mgr.StartSession(2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.FloorIndex())

	_, active := mgr.ActiveSession(2)
	assert.True(t, active)
}

func TestManager_StartSession_UnknownFloor(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)

	_, err := mgr.StartSession(9)
	assert.ErrorIs(t, err, floor.ErrInvalidIndex)
}

func TestManager_StartSession_OccupiedFloor(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)

	require.NoError(t, reg.AddOccupant(2, "imp-1"))
	_, err := mgr.StartSession(2)
	assert.ErrorIs(t, err, renovation.ErrOccupiedFloor)
}

func TestManager_StartSession_AlreadyActive(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)

	_, err := mgr.StartSession(2)
	require.NoError(t, err)
	_, err = mgr.StartSession(2)
	assert.ErrorIs(t, err, renovation.ErrSessionActive)
}

func TestSession_PlaceWall_OpenPath(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	// (2,2) sits between the stairs but the flood routes around it.
	require.NoError(t, s.PlaceWall(grid.Pos{X: 2, Y: 2}))
	assert.True(t, s.HasWall(grid.Pos{X: 2, Y: 2}))
}

func TestSession_PlaceWall_OnStair(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	assert.ErrorIs(t, s.PlaceWall(grid.Pos{X: 0, Y: 0}), renovation.ErrStairAdjacent)
	assert.ErrorIs(t, s.PlaceWall(grid.Pos{X: 5, Y: 5}), renovation.ErrStairAdjacent)
}

func TestSession_PlaceWall_Duplicate(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	require.NoError(t, s.PlaceWall(grid.Pos{X: 2, Y: 2}))
	assert.ErrorIs(t, s.PlaceWall(grid.Pos{X: 2, Y: 2}), renovation.ErrAlreadyWalled)
}

func TestSession_PlaceWall_OutOfBounds(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	assert.ErrorIs(t, s.PlaceWall(grid.Pos{X: 11, Y: 0}), renovation.ErrOutOfBounds)
}

func TestSession_PlaceWall_PathBlockedRollsBack(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	// Wall the full row y=3 except (10,3). Every placement leaves the gap.
	for x := -10; x < 10; x++ {
		require.NoError(t, s.PlaceWall(grid.Pos{X: x, Y: 3}), "x=%d", x)
	}

	// Closing the gap severs the stairs.
	err = s.PlaceWall(grid.Pos{X: 10, Y: 3})
	assert.ErrorIs(t, err, renovation.ErrPathBlocked)
	assert.False(t, s.HasWall(grid.Pos{X: 10, Y: 3}), "rejected wall rolled back")

	// Removal reopens the row; the previously rejected cell becomes legal.
	require.NoError(t, s.RemoveWall(grid.Pos{X: 0, Y: 3}))
	assert.NoError(t, s.PlaceWall(grid.Pos{X: 10, Y: 3}))
}

func TestSession_RemoveWall_AbsentIsNoOp(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	assert.NoError(t, s.RemoveWall(grid.Pos{X: 4, Y: 4}))
}

func TestSession_VacuousFloors(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)

	// Floor 1 has no up-stair: connectivity passes vacuously, so even a
	// solid ring around the down-stair is accepted.
	s, err := mgr.StartSession(1)
	require.NoError(t, err)
	for _, p := range (grid.Pos{X: 5, Y: 5}).Neighbors8() {
		require.NoError(t, s.PlaceWall(p))
	}

	// The core floor has no down-stair: same vacuous pass.
	core, err := mgr.StartSession(3)
	require.NoError(t, err)
	for _, p := range (grid.Pos{X: 0, Y: 0}).Neighbors8() {
		require.NoError(t, core.PlaceWall(p))
	}
}

func TestSession_SaveCommitsWorkingSet(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	require.NoError(t, s.PlaceWall(grid.Pos{X: 2, Y: 2}))
	require.NoError(t, s.Save())

	f, _ := reg.GetFloor(2)
	assert.True(t, f.HasWall(grid.Pos{X: 2, Y: 2}))

	assert.ErrorIs(t, s.PlaceWall(grid.Pos{X: 3, Y: 3}), renovation.ErrNotInSession)
	_, active := mgr.ActiveSession(2)
	assert.False(t, active)
}

func TestSession_DiscardDropsWorkingSet(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	require.NoError(t, s.PlaceWall(grid.Pos{X: 2, Y: 2}))
	require.NoError(t, s.Discard())

	f, _ := reg.GetFloor(2)
	assert.False(t, f.HasWall(grid.Pos{X: 2, Y: 2}))
	assert.ErrorIs(t, s.RemoveWall(grid.Pos{X: 2, Y: 2}), renovation.ErrNotInSession)
}

func TestSession_AutoSaveOnOccupantArrival(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	require.NoError(t, s.PlaceWall(grid.Pos{X: 2, Y: 2}))
	require.NoError(t, reg.AddOccupant(2, "invader-1"))

	// Arrival auto-saved and retired the session.
	f, _ := reg.GetFloor(2)
	assert.True(t, f.HasWall(grid.Pos{X: 2, Y: 2}))
	_, active := mgr.ActiveSession(2)
	assert.False(t, active)
	assert.ErrorIs(t, s.PlaceWall(grid.Pos{X: 3, Y: 3}), renovation.ErrNotInSession)
}

func TestSession_AutoSaveOnViewFloorChange(t *testing.T) {
	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, nil)
	mgr.SetActiveFloor(2)

	s, err := mgr.StartSession(2)
	require.NoError(t, err)
	require.NoError(t, s.PlaceWall(grid.Pos{X: 2, Y: 2}))

	mgr.SetActiveFloor(1)

	f, _ := reg.GetFloor(2)
	assert.True(t, f.HasWall(grid.Pos{X: 2, Y: 2}))
	_, active := mgr.ActiveSession(2)
	assert.False(t, active)
}

func TestSession_PublishesWallEvents(t *testing.T) {
	bus := events.NewBus()
	sub, err := bus.Subscribe("viewer", 16)
	require.NoError(t, err)

	reg := newDungeon(t, nil)
	mgr := renovation.NewManager(reg, bus)
	s, err := mgr.StartSession(2)
	require.NoError(t, err)

	require.NoError(t, s.PlaceWall(grid.Pos{X: 2, Y: 2}))
	require.NoError(t, s.RemoveWall(grid.Pos{X: 2, Y: 2}))
	require.NoError(t, s.Save())

	var kinds []events.Kind
	for i := 0; i < 3; i++ {
		kinds = append(kinds, (<-sub.Events()).Kind)
	}
	assert.Equal(t, []events.Kind{
		events.KindWallPlaced,
		events.KindWallRemoved,
		events.KindRenovationEnded,
	}, kinds)
}
