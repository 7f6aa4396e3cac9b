package floor

import (
	"fmt"
	"sync"

	"github.com/hollowroot/keeper/internal/events"
	"github.com/hollowroot/keeper/internal/game/grid"
)

// RegistryConfig holds the structural parameters of the dungeon.
type RegistryConfig struct {
	// MaxFloors is the hard cap on dungeon depth.
	MaxFloors int
	// Bounds is the walkable region of every floor.
	Bounds grid.Bounds
	// DefaultUpStair is the up-stair position assigned to newly created floors.
	DefaultUpStair grid.Pos
	// DefaultDownStair is the down-stair position assigned to a floor when a
	// floor is created below it.
	DefaultDownStair grid.Pos
}

// Validate checks the configuration invariants.
//
// Postcondition: Returns nil iff MaxFloors >= 1, the bounds are non-empty,
// both default stairs lie inside them, and the stairs do not coincide.
func (c RegistryConfig) Validate() error {
	if c.MaxFloors < 1 {
		return fmt.Errorf("max floors must be >= 1, got %d", c.MaxFloors)
	}
	if err := c.Bounds.Validate(); err != nil {
		return err
	}
	if !c.Bounds.Contains(c.DefaultUpStair) {
		return fmt.Errorf("default up-stair %s outside bounds", c.DefaultUpStair)
	}
	if !c.Bounds.Contains(c.DefaultDownStair) {
		return fmt.Errorf("default down-stair %s outside bounds", c.DefaultDownStair)
	}
	if c.DefaultUpStair == c.DefaultDownStair {
		return fmt.Errorf("default stairs coincide at %s", c.DefaultUpStair)
	}
	return nil
}

// OccupancyWatcher is notified when a floor gains an occupant or visitor.
// Watchers run synchronously on the mutating goroutine in registration order.
type OccupancyWatcher func(floorIndex int)

// Registry owns the ordered floor stack. Floors grow monotonically from
// index 1 and are never destroyed; exactly one floor (the deepest) carries
// the core. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	cfg      RegistryConfig
	floors   map[int]*Floor
	depth    int
	watchers []OccupancyWatcher
	bus      *events.Bus
}

// NewRegistry creates a Registry holding the single starting floor, which
// carries the core.
//
// Precondition: cfg must validate; bus may be nil to disable notifications.
// Postcondition: Depth() == 1 and floor 1 has the core and no stairs beyond
// its down-stair-free state (floor 1 has no up-stair).
func NewRegistry(cfg RegistryConfig, bus *events.Bus) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("registry config: %w", err)
	}
	r := &Registry{
		cfg:    cfg,
		floors: make(map[int]*Floor),
		bus:    bus,
	}
	r.floors[1] = &Floor{
		Index:   1,
		HasCore: true,
		walls:   make(map[grid.Pos]bool),
	}
	r.depth = 1
	return r, nil
}

// Bounds returns the walkable region shared by all floors.
func (r *Registry) Bounds() grid.Bounds {
	return r.cfg.Bounds
}

// Depth returns the current number of floors.
func (r *Registry) Depth() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.depth
}

// GetFloor returns the floor with the given index.
//
// Postcondition: Returns (floor, true) if found, or (nil, false) otherwise.
func (r *Registry) GetFloor(index int) (*Floor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.floors[index]
	return f, ok
}

// CreateFloor returns the floor at index, creating it if it is the next
// sequential floor. Creation moves the core flag down to the new floor and
// assigns the previous deepest floor its down-stair.
//
// Precondition: index must be in [1, MaxFloors].
// Postcondition: Idempotent — an existing floor is returned unchanged.
// Returns ErrInvalidIndex for an out-of-range or non-contiguous index.
func (r *Registry) CreateFloor(index int) (*Floor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index <= 0 || index > r.cfg.MaxFloors {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidIndex, index, r.cfg.MaxFloors)
	}
	if f, ok := r.floors[index]; ok {
		return f, nil
	}
	if index != r.depth+1 {
		return nil, fmt.Errorf("%w: %d skips floor %d", ErrInvalidIndex, index, r.depth+1)
	}
	return r.appendFloor(), nil
}

// Expand appends a new deepest floor and moves the core onto it.
//
// Postcondition: Depth() increases by 1, the previous deepest floor loses the
// core and gains its down-stair. Returns ErrMaxFloorsReached at the cap.
func (r *Registry) Expand() (*Floor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.depth >= r.cfg.MaxFloors {
		return nil, fmt.Errorf("%w: depth %d", ErrMaxFloorsReached, r.depth)
	}
	f := r.appendFloor()
	if r.bus != nil {
		r.bus.Publish(events.Event{Kind: events.KindFloorExpanded, Floor: f.Index})
	}
	return f, nil
}

// appendFloor creates floor depth+1. Caller must hold the write lock.
func (r *Registry) appendFloor() *Floor {
	prev := r.floors[r.depth]
	prev.HasCore = false
	if prev.DownStair == nil {
		down := r.cfg.DefaultDownStair
		prev.DownStair = &down
	}

	up := r.cfg.DefaultUpStair
	next := &Floor{
		Index:   r.depth + 1,
		UpStair: &up,
		HasCore: true,
		walls:   make(map[grid.Pos]bool),
	}
	r.floors[next.Index] = next
	r.depth = next.Index
	return next
}

// IsEmpty reports whether the floor has no occupants and no active visitors.
//
// Postcondition: Returns false for an unknown index.
func (r *Registry) IsEmpty(index int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.floors[index]
	if !ok {
		return false
	}
	return len(f.occupants) == 0 && f.visitors == 0
}

// WatchOccupancy registers a watcher invoked whenever a floor gains an
// occupant or visitor. Registration order is notification order.
func (r *Registry) WatchOccupancy(w OccupancyWatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, w)
}

// AddOccupant records an occupant arriving on the floor and notifies
// occupancy watchers.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an error if the floor does not exist or already
// holds the occupant.
func (r *Registry) AddOccupant(index int, id string) error {
	r.mu.Lock()
	f, ok := r.floors[index]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	for _, existing := range f.occupants {
		if existing == id {
			r.mu.Unlock()
			return fmt.Errorf("occupant %q already on floor %d", id, index)
		}
	}
	f.occupants = append(f.occupants, id)
	watchers := make([]OccupancyWatcher, len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	for _, w := range watchers {
		w(index)
	}
	return nil
}

// RemoveOccupant removes an occupant from the floor.
//
// Postcondition: Returns an error if the floor or occupant is unknown.
func (r *Registry) RemoveOccupant(index int, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.floors[index]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	for i, existing := range f.occupants {
		if existing == id {
			f.occupants = append(f.occupants[:i], f.occupants[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("occupant %q not on floor %d", id, index)
}

// EnterVisitor records a transient visitor on the floor and notifies
// occupancy watchers.
func (r *Registry) EnterVisitor(index int) error {
	r.mu.Lock()
	f, ok := r.floors[index]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	f.visitors++
	watchers := make([]OccupancyWatcher, len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	for _, w := range watchers {
		w(index)
	}
	return nil
}

// LeaveVisitor records a transient visitor leaving the floor.
//
// Postcondition: The visitor count never goes below zero.
func (r *Registry) LeaveVisitor(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.floors[index]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if f.visitors > 0 {
		f.visitors--
	}
	return nil
}

// CommitWalls replaces the floor's committed wall set. Used by a renovation
// session saving its working set.
//
// Precondition: walls must respect the floor invariants (in bounds, not on
// or adjacent to a stair).
// Postcondition: On success the floor's wall set equals walls; on error the
// committed set is unchanged.
func (r *Registry) CommitWalls(index int, walls map[grid.Pos]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.floors[index]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	committed := make(map[grid.Pos]bool, len(walls))
	for p := range walls {
		committed[p] = true
	}
	candidate := &Floor{
		Index:     f.Index,
		UpStair:   f.UpStair,
		DownStair: f.DownStair,
		walls:     committed,
	}
	if err := candidate.validate(r.cfg.Bounds); err != nil {
		return err
	}
	f.walls = committed
	return nil
}
