// Package events provides the notification channel between the simulation
// core and the (out-of-process) view layer. The core publishes state-change
// events; consumers read them from per-subscriber buffered channels.
package events

import (
	"fmt"
	"sync"

	"github.com/hollowroot/keeper/internal/game/grid"
)

// Kind identifies the category of a state-change event.
type Kind string

// Event kinds published by the simulation core.
const (
	KindWallPlaced      Kind = "wall_placed"
	KindWallRemoved     Kind = "wall_removed"
	KindRenovationEnded Kind = "renovation_ended"
	KindFloorExpanded   Kind = "floor_expanded"
	KindPartyDamaged    Kind = "party_damaged"
	KindPartyHealed     Kind = "party_healed"
	KindPartyDisbanded  Kind = "party_disbanded"
	KindOccupantSpawned Kind = "occupant_spawned"
)

// Event is a single state-change notification.
type Event struct {
	// Kind is the event category.
	Kind Kind
	// Floor is the 1-based floor index the event concerns, or 0 when not floor-scoped.
	Floor int
	// Pos is the grid cell the event concerns, when positional.
	Pos grid.Pos
	// SubjectID identifies the party or occupant the event concerns, when any.
	SubjectID string
	// Amount carries the damage or heal total for combat events.
	Amount int
}

// Subscriber receives events over a buffered channel.
type Subscriber struct {
	id     string
	events chan Event
	mu     sync.Mutex
	closed bool
}

// Events returns the read-only event channel for this subscriber.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// push enqueues an event without blocking.
//
// Postcondition: Returns an error if the subscriber is closed or its buffer is full.
func (s *Subscriber) push(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("subscriber %s is closed", s.id)
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return fmt.Errorf("subscriber %s event buffer full", s.id)
	}
}

// close marks the subscriber closed and closes its channel. Idempotent.
func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Bus fans events out to registered subscribers in registration order.
// A slow subscriber whose buffer is full drops events rather than blocking
// the simulation tick. All methods are safe for concurrent use.
type Bus struct {
	mu    sync.RWMutex
	order []string
	subs  map[string]*Subscriber
}

// NewBus creates an empty event Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscriber)}
}

// Subscribe registers a new subscriber with the given buffer size.
//
// Precondition: id must be non-empty; bufferSize <= 0 uses a default of 64.
// Postcondition: Returns the Subscriber, or an error if id is already registered.
func (b *Bus) Subscribe(id string, bufferSize int) (*Subscriber, error) {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[id]; exists {
		return nil, fmt.Errorf("subscriber %q already registered", id)
	}
	sub := &Subscriber{id: id, events: make(chan Event, bufferSize)}
	b.subs[id] = sub
	b.order = append(b.order, id)
	return sub, nil
}

// Unsubscribe removes and closes the subscriber with the given id.
//
// Postcondition: The subscriber's channel is closed. Returns an error if not found.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subs[id]
	if !exists {
		return fmt.Errorf("subscriber %q not found", id)
	}
	delete(b.subs, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	sub.close()
	return nil
}

// Publish delivers ev to every subscriber in registration order.
//
// Postcondition: Returns the number of subscribers that received the event.
func (b *Bus) Publish(ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, id := range b.order {
		if err := b.subs[id].push(ev); err == nil {
			delivered++
		}
	}
	return delivered
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
