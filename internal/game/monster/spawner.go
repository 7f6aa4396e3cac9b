package monster

import (
	"fmt"
	"sync"
	"time"

	"github.com/hollowroot/keeper/internal/events"
	"github.com/hollowroot/keeper/internal/game/floor"
	"github.com/hollowroot/keeper/internal/game/grid"
	"github.com/hollowroot/keeper/internal/game/rng"
)

// maxPlacementDraws bounds the random placement attempts before falling back
// to a linear scan of the floor.
const maxPlacementDraws = 32

// spawnEntry is a single pending spawn.
type spawnEntry struct {
	templateID string
	floorIndex int
	readyAt    time.Time
}

// Spawner schedules creature spawns and materializes them when due. Spawned
// instances are registered as occupants with the floor registry, which in
// turn ends any renovation session on the target floor.
//
// Concurrency: Schedule may be called from any goroutine; Tick must only run
// on the simulation goroutine.
type Spawner struct {
	mu        sync.Mutex
	registry  *floor.Registry
	templates map[string]*Template
	source    rng.Source
	bus       *events.Bus
	pending   []spawnEntry
	live      map[string]*Instance
}

// NewSpawner creates a Spawner over the given registry and template set.
//
// Precondition: registry and source must be non-nil; templates may be empty.
func NewSpawner(registry *floor.Registry, templates map[string]*Template, source rng.Source, bus *events.Bus) *Spawner {
	if templates == nil {
		templates = make(map[string]*Template)
	}
	return &Spawner{
		registry:  registry,
		templates: templates,
		source:    source,
		bus:       bus,
		live:      make(map[string]*Instance),
	}
}

// Schedule queues count spawns of the template on the floor, due at readyAt.
//
// Precondition: count >= 1.
// Postcondition: Returns an error for an unknown template or floor; the
// queue is unchanged on error.
func (s *Spawner) Schedule(templateID string, floorIndex, count int, readyAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[templateID]; !ok {
		return fmt.Errorf("unknown monster template %q", templateID)
	}
	if _, ok := s.registry.GetFloor(floorIndex); !ok {
		return fmt.Errorf("%w: %d", floor.ErrInvalidIndex, floorIndex)
	}
	if count < 1 {
		return fmt.Errorf("spawn count must be >= 1, got %d", count)
	}
	for i := 0; i < count; i++ {
		s.pending = append(s.pending, spawnEntry{
			templateID: templateID,
			floorIndex: floorIndex,
			readyAt:    readyAt,
		})
	}
	return nil
}

// PendingCount returns the number of queued spawns.
func (s *Spawner) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Tick materializes every due pending spawn.
//
// Postcondition: Returns the instances spawned this tick; each is a
// registered occupant of its floor.
func (s *Spawner) Tick(now time.Time) []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()

	var spawned []*Instance
	remaining := s.pending[:0]
	for _, entry := range s.pending {
		if entry.readyAt.After(now) {
			remaining = append(remaining, entry)
			continue
		}
		inst, err := s.spawnLocked(entry)
		if err != nil {
			// A full floor keeps the entry queued for the next tick.
			remaining = append(remaining, entry)
			continue
		}
		spawned = append(spawned, inst)
	}
	s.pending = remaining
	return spawned
}

// spawnLocked materializes one entry. Caller must hold s.mu.
func (s *Spawner) spawnLocked(entry spawnEntry) (*Instance, error) {
	f, ok := s.registry.GetFloor(entry.floorIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %d", floor.ErrInvalidIndex, entry.floorIndex)
	}
	pos, err := s.placement(f)
	if err != nil {
		return nil, err
	}

	inst, err := NewInstance(s.templates[entry.templateID], entry.floorIndex, pos)
	if err != nil {
		return nil, err
	}
	if err := s.registry.AddOccupant(entry.floorIndex, inst.ID()); err != nil {
		return nil, err
	}
	s.live[inst.ID()] = inst

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Kind:      events.KindOccupantSpawned,
			Floor:     entry.floorIndex,
			Pos:       pos,
			SubjectID: inst.ID(),
		})
	}
	return inst, nil
}

// placement picks a walkable cell on the floor: random draws first, then a
// linear scan if the draws all land on walls or stairs.
func (s *Spawner) placement(f *floor.Floor) (grid.Pos, error) {
	bounds := s.registry.Bounds()
	width := bounds.Max.X - bounds.Min.X + 1
	height := bounds.Max.Y - bounds.Min.Y + 1

	for i := 0; i < maxPlacementDraws; i++ {
		pos := grid.Pos{
			X: bounds.Min.X + s.source.Intn(width),
			Y: bounds.Min.Y + s.source.Intn(height),
		}
		if s.walkable(f, pos) {
			return pos, nil
		}
	}
	for x := bounds.Min.X; x <= bounds.Max.X; x++ {
		for y := bounds.Min.Y; y <= bounds.Max.Y; y++ {
			pos := grid.Pos{X: x, Y: y}
			if s.walkable(f, pos) {
				return pos, nil
			}
		}
	}
	return grid.Pos{}, fmt.Errorf("floor %d has no walkable cell", f.Index)
}

// walkable reports whether pos is free of walls and stairs.
func (s *Spawner) walkable(f *floor.Floor, pos grid.Pos) bool {
	if f.HasWall(pos) {
		return false
	}
	for _, stair := range []*grid.Pos{f.UpStair, f.DownStair} {
		if stair != nil && *stair == pos {
			return false
		}
	}
	return true
}

// Despawn removes a live instance and its floor occupancy.
//
// Postcondition: Returns an error if the instance is not tracked.
func (s *Spawner) Despawn(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.live[id]
	if !ok {
		return fmt.Errorf("instance %q not live", id)
	}
	if err := s.registry.RemoveOccupant(inst.floorIndex, id); err != nil {
		return err
	}
	delete(s.live, id)
	return nil
}

// Live returns a snapshot of all live instances.
func (s *Spawner) Live() []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Instance, 0, len(s.live))
	for _, inst := range s.live {
		out = append(out, inst)
	}
	return out
}

// LiveOnFloor returns the live instances occupying the given floor.
func (s *Spawner) LiveOnFloor(floorIndex int) []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Instance
	for _, inst := range s.live {
		if inst.floorIndex == floorIndex {
			out = append(out, inst)
		}
	}
	return out
}

// ReapDead despawns every live instance with zero health.
//
// Postcondition: Returns the IDs of the reaped instances.
func (s *Spawner) ReapDead() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []string
	for id, inst := range s.live {
		if inst.Health() > 0 {
			continue
		}
		if err := s.registry.RemoveOccupant(inst.floorIndex, id); err == nil {
			delete(s.live, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}
