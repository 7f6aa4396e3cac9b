package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/hollowroot/keeper/internal/scripting"
)

func newTestDirector(t testing.TB) (*scripting.Director, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return scripting.NewDirector(zap.New(core)), logs
}

func writeTempLua(t testing.TB, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waves.lua")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestDirector_Load_CallsHook(t *testing.T) {
	dir, _ := newTestDirector(t)
	path := writeTempLua(t, `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, dir.Load(path, 0))
	ret, err := dir.CallHook("test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestDirector_CallHook_MissingHook_NoOp(t *testing.T) {
	dir, _ := newTestDirector(t)
	path := writeTempLua(t, `-- no functions`)
	require.NoError(t, dir.Load(path, 0))
	ret, err := dir.CallHook("nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestDirector_CallHook_NoScript_NoOp(t *testing.T) {
	dir, _ := newTestDirector(t)
	ret, err := dir.CallHook("on_hour", lua.LNumber(7))
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestDirector_CallHook_RuntimeError_WarnLogNoPanic(t *testing.T) {
	dir, logs := newTestDirector(t)
	path := writeTempLua(t, `
		function bad_hook()
			error("intentional error")
		end
	`)
	require.NoError(t, dir.Load(path, 0))
	ret, err := dir.CallHook("bad_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	found := false
	for _, e := range logs.All() {
		if e.Level == zap.WarnLevel {
			found = true
			break
		}
	}
	assert.True(t, found, "expected Warn log for Lua runtime error")
}

func TestDirector_Load_InvalidLua_ReturnsError(t *testing.T) {
	dir, _ := newTestDirector(t)
	path := writeTempLua(t, `this is not valid lua @@@@`)
	assert.Error(t, dir.Load(path, 0))
}

func TestDirector_Load_MissingFile_ReturnsError(t *testing.T) {
	dir, _ := newTestDirector(t)
	assert.Error(t, dir.Load("/nonexistent/waves.lua", 0))
}

func TestDirector_OnHour_SpawnsViaCallback(t *testing.T) {
	dir, _ := newTestDirector(t)
	type spawn struct {
		template string
		floor    int
		count    int
	}
	var spawns []spawn
	dir.SpawnMonster = func(templateID string, floorIndex, count int) error {
		spawns = append(spawns, spawn{templateID, floorIndex, count})
		return nil
	}
	dir.FloorCount = func() int { return 3 }

	path := writeTempLua(t, `
		function on_hour(hour)
			if hour == 20 then
				dungeon.spawn("knight", dungeon.floors.count(), 2)
			end
		end
	`)
	require.NoError(t, dir.Load(path, 0))

	dir.OnHour(19)
	assert.Empty(t, spawns)

	dir.OnHour(20)
	require.Len(t, spawns, 1)
	assert.Equal(t, spawn{"knight", 3, 2}, spawns[0])
}

func TestDirector_Spawn_DefaultCountIsOne(t *testing.T) {
	dir, _ := newTestDirector(t)
	var gotCount int
	dir.SpawnMonster = func(templateID string, floorIndex, count int) error {
		gotCount = count
		return nil
	}
	path := writeTempLua(t, `
		function go() return dungeon.spawn("imp", 1) end
	`)
	require.NoError(t, dir.Load(path, 0))
	ret, err := dir.CallHook("go")
	require.NoError(t, err)
	assert.Equal(t, lua.LTrue, ret)
	assert.Equal(t, 1, gotCount)
}

func TestDirector_Spawn_NilCallback_ReturnsFalse(t *testing.T) {
	dir, _ := newTestDirector(t)
	path := writeTempLua(t, `
		function go()
			local ok = dungeon.spawn("imp", 1, 1)
			return ok
		end
	`)
	require.NoError(t, dir.Load(path, 0))
	ret, err := dir.CallHook("go")
	require.NoError(t, err)
	assert.Equal(t, lua.LFalse, ret)
}

func TestDirector_Clock_IsNight(t *testing.T) {
	dir, _ := newTestDirector(t)
	night := false
	dir.IsNight = func() bool { return night }
	path := writeTempLua(t, `
		function check() return dungeon.clock.is_night() end
	`)
	require.NoError(t, dir.Load(path, 0))

	ret, err := dir.CallHook("check")
	require.NoError(t, err)
	assert.Equal(t, lua.LFalse, ret)

	night = true
	ret, err = dir.CallHook("check")
	require.NoError(t, err)
	assert.Equal(t, lua.LTrue, ret)
}

func TestDirector_Forces_CountsPerSide(t *testing.T) {
	dir, _ := newTestDirector(t)
	dir.CountSide = func(side string) int {
		if side == "invader" {
			return 4
		}
		return 7
	}
	path := writeTempLua(t, `
		function check()
			return dungeon.forces.invaders() * 100 + dungeon.forces.defenders()
		end
	`)
	require.NoError(t, dir.Load(path, 0))
	ret, err := dir.CallHook("check")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(407), ret)
}

func TestDirector_Log_WritesToLogger(t *testing.T) {
	dir, logs := newTestDirector(t)
	path := writeTempLua(t, `
		function do_log()
			dungeon.log.info("hello from lua")
		end
	`)
	require.NoError(t, dir.Load(path, 0))
	_, err := dir.CallHook("do_log")
	require.NoError(t, err)

	found := false
	for _, e := range logs.All() {
		if e.Level == zap.InfoLevel && e.Message == "hello from lua" {
			found = true
			break
		}
	}
	assert.True(t, found, "expected Info log entry from script")
}

func TestDirector_InstructionBudget_PerCall(t *testing.T) {
	dir, logs := newTestDirector(t)
	path := writeTempLua(t, `
		function spin()
			for i = 1, 100 do end
		end
	`)
	require.NoError(t, dir.Load(path, 0))

	// Each call gets a fresh budget, so repeated cheap calls never trip it.
	for i := 0; i < 50; i++ {
		_, err := dir.CallHook("spin")
		require.NoError(t, err)
	}
	for _, e := range logs.All() {
		assert.NotEqual(t, zap.WarnLevel, e.Level, "budget must reset between calls")
	}
}

func TestDirector_InstructionBudget_RunawayHookStopped(t *testing.T) {
	dir, logs := newTestDirector(t)
	path := writeTempLua(t, `
		function runaway()
			while true do end
		end
	`)
	require.NoError(t, dir.Load(path, 1000))
	ret, err := dir.CallHook("runaway")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)

	found := false
	for _, e := range logs.All() {
		if e.Level == zap.WarnLevel {
			found = true
			break
		}
	}
	assert.True(t, found, "expected Warn log for stopped runaway hook")
}

func TestDirector_Close_ReleasesVM(t *testing.T) {
	dir, _ := newTestDirector(t)
	path := writeTempLua(t, `function get_x() return 1 end`)
	require.NoError(t, dir.Load(path, 0))
	dir.Close()
	ret, err := dir.CallHook("get_x")
	assert.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestNewDirector_PanicsOnNilLogger(t *testing.T) {
	assert.Panics(t, func() {
		scripting.NewDirector(nil)
	})
}

func TestProperty_CallHookConcurrent_NoRace(t *testing.T) {
	dir, _ := newTestDirector(t)
	path := writeTempLua(t, `
		function concurrent_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, dir.Load(path, 0))

	const goroutines = 10
	const callsEach = 5
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				ret, err := dir.CallHook("concurrent_hook", lua.LNumber(1), lua.LNumber(2))
				assert.NoError(t, err)
				assert.Equal(t, lua.LNumber(3), ret)
			}
		}()
	}
	wg.Wait()
}

func TestProperty_OnHourNeverPanics(t *testing.T) {
	dir, _ := newTestDirector(t)
	path := writeTempLua(t, `
		function on_hour(hour)
			if hour % 2 == 0 then
				dungeon.spawn("imp", 1, 1)
			end
		end
	`)
	require.NoError(t, dir.Load(path, 0))
	rapid.Check(t, func(rt *rapid.T) {
		hour := rapid.IntRange(0, 23).Draw(rt, "hour")
		dir.OnHour(hour)
	})
}
