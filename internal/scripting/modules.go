package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// luaField tags log entries emitted from script code.
func luaField() zap.Field { return zap.String("source", "lua") }

// RegisterModules registers all dungeon.* Lua tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: dungeon global is defined in L with clock, floors, forces,
// spawn, and log members.
func (d *Director) RegisterModules(L *lua.LState) {
	dungeon := L.NewTable()
	L.SetGlobal("dungeon", dungeon)

	d.registerClock(L, dungeon)
	d.registerFloors(L, dungeon)
	d.registerForces(L, dungeon)
	d.registerSpawn(L, dungeon)
	d.registerLog(L, dungeon)
}

// registerClock adds dungeon.clock.hour() and dungeon.clock.is_night().
func (d *Director) registerClock(L *lua.LState, dungeon *lua.LTable) {
	clock := L.NewTable()
	L.SetField(dungeon, "clock", clock)

	L.SetField(clock, "hour", L.NewFunction(func(L *lua.LState) int {
		if d.GameHour == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(d.GameHour()))
		return 1
	}))

	L.SetField(clock, "is_night", L.NewFunction(func(L *lua.LState) int {
		if d.IsNight == nil {
			L.Push(lua.LFalse)
			return 1
		}
		L.Push(lua.LBool(d.IsNight()))
		return 1
	}))
}

// registerFloors adds dungeon.floors.count().
func (d *Director) registerFloors(L *lua.LState, dungeon *lua.LTable) {
	floors := L.NewTable()
	L.SetField(dungeon, "floors", floors)

	L.SetField(floors, "count", L.NewFunction(func(L *lua.LState) int {
		if d.FloorCount == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(d.FloorCount()))
		return 1
	}))
}

// registerForces adds dungeon.forces.invaders() and dungeon.forces.defenders(),
// the live instance counts per side.
func (d *Director) registerForces(L *lua.LState, dungeon *lua.LTable) {
	forces := L.NewTable()
	L.SetField(dungeon, "forces", forces)

	count := func(side string) lua.LGFunction {
		return func(L *lua.LState) int {
			if d.CountSide == nil {
				L.Push(lua.LNumber(0))
				return 1
			}
			L.Push(lua.LNumber(d.CountSide(side)))
			return 1
		}
	}
	L.SetField(forces, "invaders", L.NewFunction(count("invader")))
	L.SetField(forces, "defenders", L.NewFunction(count("defender")))
}

// registerSpawn adds dungeon.spawn(template_id, floor, count), returning
// (true) on success or (false, message) on failure.
func (d *Director) registerSpawn(L *lua.LState, dungeon *lua.LTable) {
	L.SetField(dungeon, "spawn", L.NewFunction(func(L *lua.LState) int {
		templateID := L.CheckString(1)
		floorIndex := L.CheckInt(2)
		count := L.OptInt(3, 1)

		if d.SpawnMonster == nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString("spawning unavailable"))
			return 2
		}
		if err := d.SpawnMonster(templateID, floorIndex, count); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))
}

// registerLog adds dungeon.log.debug/info/warn/error(msg).
func (d *Director) registerLog(L *lua.LState, dungeon *lua.LTable) {
	log := L.NewTable()
	L.SetField(dungeon, "log", log)

	levels := map[string]func(string){
		"debug": func(msg string) { d.logger.Debug(msg, luaField()) },
		"info":  func(msg string) { d.logger.Info(msg, luaField()) },
		"warn":  func(msg string) { d.logger.Warn(msg, luaField()) },
		"error": func(msg string) { d.logger.Error(msg, luaField()) },
	}
	for name, fn := range levels {
		fn := fn
		L.SetField(log, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1))
			return 0
		}))
	}
}
