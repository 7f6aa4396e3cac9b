package scripting

import (
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Director owns one sandboxed LState running the wave director script and
// exposes hook dispatch. The script decides which monsters to summon each
// game hour based on dungeon state exposed through the dungeon.* modules.
//
// Director is safe for concurrent CallHook after Load completes. The LState
// is single-threaded; the mutex serializes all calls into it.
type Director struct {
	mu        sync.Mutex
	state     *lua.LState
	instLimit int
	logger    *zap.Logger

	// Injected after construction. nil = no-op in dungeon.* modules.
	GameHour     func() int
	IsNight      func() bool
	FloorCount   func() int
	CountSide    func(side string) int
	SpawnMonster func(templateID string, floorIndex, count int) error
}

// NewDirector creates a Director with no script loaded.
//
// Precondition: logger must be non-nil.
func NewDirector(logger *zap.Logger) *Director {
	if logger == nil {
		panic("scripting: NewDirector requires a non-nil logger")
	}
	return &Director{logger: logger}
}

// Load creates a sandboxed VM, registers the dungeon.* modules, and executes
// the script at path. A previously loaded VM is closed and replaced.
//
// Precondition: path must be a readable Lua file.
// Postcondition: The VM is ready for CallHook; returns error on Lua load failure.
func (d *Director) Load(path string, instLimit int) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("scripting: wave script %q: %w", path, err)
	}

	L := NewSandboxedState(instLimit)
	d.RegisterModules(L)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return fmt.Errorf("scripting: loading %q: %w", path, err)
	}

	d.mu.Lock()
	if d.state != nil {
		d.state.Close()
	}
	d.state = L
	d.instLimit = instLimit
	d.mu.Unlock()
	return nil
}

// OnHour invokes the script's on_hour(hour) hook for the given game hour.
// Missing script or hook is a no-op. Lua runtime errors are logged at Warn
// level and never propagated.
func (d *Director) OnHour(hour int) {
	d.CallHook("on_hour", lua.LNumber(hour)) //nolint:errcheck
}

// CallHook calls the named Lua global function in the director's VM.
// Returns (LNil, nil) if no script is loaded or the hook is not defined.
// Each call runs under a fresh instruction budget.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (d *Director) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == nil {
		return lua.LNil, nil
	}
	L := d.state

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	resetBudget(L, d.instLimit)
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		d.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// Close releases the VM. CallHook after Close returns LNil.
func (d *Director) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != nil {
		d.state.Close()
		d.state = nil
	}
}
