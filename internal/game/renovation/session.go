// Package renovation gates wall edits on dungeon floors: every placement is
// validated against stair-to-stair connectivity before it enters the working
// set, and working sets only reach the floor registry through an explicit
// save. One exclusive session exists per floor.
package renovation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hollowroot/keeper/internal/events"
	"github.com/hollowroot/keeper/internal/game/floor"
	"github.com/hollowroot/keeper/internal/game/grid"
)

// Session and wall-edit errors.
var (
	// ErrPathBlocked indicates a wall placement that would sever the
	// stair-to-stair path.
	ErrPathBlocked = errors.New("wall placement blocks stair path")
	// ErrNotInSession indicates a wall edit without an active session.
	ErrNotInSession = errors.New("no active renovation session")
	// ErrOccupiedFloor indicates a session start on a non-empty floor.
	ErrOccupiedFloor = errors.New("floor is occupied")
	// ErrSessionActive indicates a session start on a floor already under renovation.
	ErrSessionActive = errors.New("renovation session already active")
	// ErrStairAdjacent indicates a wall placement on a stair cell.
	ErrStairAdjacent = errors.New("wall cell coincides with stair")
	// ErrAlreadyWalled indicates a wall placement on an already-walled cell.
	ErrAlreadyWalled = errors.New("cell is already walled")
	// ErrOutOfBounds indicates a wall placement outside the floor region.
	ErrOutOfBounds = errors.New("cell outside floor bounds")
)

// Session is an exclusive, floor-scoped wall-editing window. It holds a
// working copy of the floor's committed wall set; edits apply to the working
// set only, and reach the floor through Save.
type Session struct {
	floorIndex int
	upStair    *grid.Pos
	downStair  *grid.Pos
	bounds     grid.Bounds
	working    map[grid.Pos]bool
	ended      bool
	mgr        *Manager
}

// FloorIndex returns the floor under renovation.
func (s *Session) FloorIndex() int {
	return s.floorIndex
}

// Manager owns the active renovation sessions and enforces the one-session-
// per-floor rule. It watches the floor registry's occupancy signal and the
// active view floor, auto-saving sessions that lose their exclusivity.
// All methods are safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	registry    *floor.Registry
	bus         *events.Bus
	sessions    map[int]*Session
	activeFloor int
}

// NewManager creates a Manager bound to the given registry. It registers
// itself as an occupancy watcher so that an occupant arriving on a floor
// under renovation ends that floor's session with a save.
//
// Precondition: registry must be non-nil; bus may be nil.
func NewManager(registry *floor.Registry, bus *events.Bus) *Manager {
	m := &Manager{
		registry: registry,
		bus:      bus,
		sessions: make(map[int]*Session),
	}
	registry.WatchOccupancy(m.onOccupantArrived)
	return m
}

// StartSession opens a renovation session on the given floor.
//
// Precondition: the floor must exist, be empty, and have no active session.
// Postcondition: Returns the Session, or ErrOccupiedFloor / ErrSessionActive /
// floor.ErrInvalidIndex describing the refusal.
func (m *Manager) StartSession(floorIndex int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.registry.GetFloor(floorIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %d", floor.ErrInvalidIndex, floorIndex)
	}
	if _, active := m.sessions[floorIndex]; active {
		return nil, fmt.Errorf("%w: floor %d", ErrSessionActive, floorIndex)
	}
	if !m.registry.IsEmpty(floorIndex) {
		return nil, fmt.Errorf("%w: floor %d", ErrOccupiedFloor, floorIndex)
	}

	s := &Session{
		floorIndex: floorIndex,
		upStair:    f.UpStair,
		downStair:  f.DownStair,
		bounds:     m.registry.Bounds(),
		working:    f.Walls(),
		mgr:        m,
	}
	m.sessions[floorIndex] = s
	return s, nil
}

// ActiveSession returns the session on the given floor.
//
// Postcondition: Returns (session, true) if one is active, or (nil, false).
func (m *Manager) ActiveSession(floorIndex int) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[floorIndex]
	return s, ok
}

// SetActiveFloor records the floor the view currently shows. Moving the view
// away from a floor under renovation auto-saves that floor's session.
func (m *Manager) SetActiveFloor(floorIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeFloor = floorIndex
	for idx, s := range m.sessions {
		if idx != floorIndex {
			m.saveLocked(s)
		}
	}
}

// onOccupantArrived is the registry occupancy watcher: a new presence on a
// floor under renovation ends the session with a save.
func (m *Manager) onOccupantArrived(floorIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[floorIndex]; ok {
		m.saveLocked(s)
	}
}

// saveLocked commits s's working set and retires the session.
// Caller must hold m.mu.
func (m *Manager) saveLocked(s *Session) {
	if s.ended {
		return
	}
	// The working set can only contain validated edits, so the commit cannot
	// violate floor invariants; a registry refusal here means the stairs
	// moved underneath the session, and the working set is dropped.
	_ = m.registry.CommitWalls(s.floorIndex, s.working)
	s.ended = true
	delete(m.sessions, s.floorIndex)
	if m.bus != nil {
		m.bus.Publish(events.Event{Kind: events.KindRenovationEnded, Floor: s.floorIndex})
	}
}

// discardLocked retires the session without committing.
// Caller must hold m.mu.
func (m *Manager) discardLocked(s *Session) {
	if s.ended {
		return
	}
	s.ended = true
	delete(m.sessions, s.floorIndex)
	if m.bus != nil {
		m.bus.Publish(events.Event{Kind: events.KindRenovationEnded, Floor: s.floorIndex})
	}
}

// PlaceWall adds pos to the session's working wall set if the floor's stairs
// remain mutually reachable with the wall in place.
//
// Postcondition: On success pos is walled in the working set. On any error
// the working set is unchanged: ErrNotInSession, ErrOutOfBounds,
// ErrStairAdjacent, ErrAlreadyWalled, or ErrPathBlocked.
func (s *Session) PlaceWall(pos grid.Pos) error {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()

	if s.ended {
		return ErrNotInSession
	}
	if !s.bounds.Contains(pos) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	for _, stair := range []*grid.Pos{s.upStair, s.downStair} {
		if stair != nil && pos.ChebyshevDistance(*stair) < 1 {
			return fmt.Errorf("%w: %s", ErrStairAdjacent, pos)
		}
	}
	if s.working[pos] {
		return fmt.Errorf("%w: %s", ErrAlreadyWalled, pos)
	}

	s.working[pos] = true
	if !s.connectedLocked() {
		delete(s.working, pos)
		return fmt.Errorf("%w: %s", ErrPathBlocked, pos)
	}

	if s.mgr.bus != nil {
		s.mgr.bus.Publish(events.Event{Kind: events.KindWallPlaced, Floor: s.floorIndex, Pos: pos})
	}
	return nil
}

// RemoveWall removes pos from the working wall set. Removal cannot sever a
// path, so it is unconditional; removing an absent wall is a no-op.
//
// Postcondition: pos is not in the working set. Returns ErrNotInSession if
// the session has ended.
func (s *Session) RemoveWall(pos grid.Pos) error {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()

	if s.ended {
		return ErrNotInSession
	}
	if !s.working[pos] {
		return nil
	}
	delete(s.working, pos)
	if s.mgr.bus != nil {
		s.mgr.bus.Publish(events.Event{Kind: events.KindWallRemoved, Floor: s.floorIndex, Pos: pos})
	}
	return nil
}

// HasWall reports whether pos is walled in the working set.
func (s *Session) HasWall(pos grid.Pos) bool {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	return s.working[pos]
}

// Save commits the working set to the floor and ends the session.
//
// Postcondition: The floor's committed walls equal the working set; further
// edits return ErrNotInSession.
func (s *Session) Save() error {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()

	if s.ended {
		return ErrNotInSession
	}
	s.mgr.saveLocked(s)
	return nil
}

// Discard drops the working set and ends the session, leaving the floor's
// committed walls untouched.
func (s *Session) Discard() error {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()

	if s.ended {
		return ErrNotInSession
	}
	s.mgr.discardLocked(s)
	return nil
}

// connectedLocked reports whether the floor's stairs are mutually reachable
// under the working wall set. Floors with fewer than two stair endpoints
// (floor 1, the core floor) pass vacuously. Caller must hold s.mgr.mu.
func (s *Session) connectedLocked() bool {
	if s.upStair == nil || s.downStair == nil {
		return true
	}
	return pathExists(*s.upStair, *s.downStair, s.working, s.bounds)
}
