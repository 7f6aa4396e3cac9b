// Package sim drives the simulation: the game-hour clock, the frame tick
// loop, and the engine that advances all game systems once per tick.
package sim

import (
	"fmt"
	"sync"
	"time"
)

// DayPhase is a named phase of the game day.
type DayPhase string

const (
	PhaseDawn  DayPhase = "Dawn"
	PhaseDay   DayPhase = "Day"
	PhaseDusk  DayPhase = "Dusk"
	PhaseNight DayPhase = "Night"
)

// GameHour is a game-clock hour in [0, 23].
type GameHour int

// Phase returns the named day phase for this hour.
//
// Precondition: h is in [0, 23].
// Postcondition: Returns one of the four DayPhase constants.
func (h GameHour) Phase() DayPhase {
	switch {
	case h >= 5 && h <= 6:
		return PhaseDawn
	case h >= 7 && h <= 17:
		return PhaseDay
	case h >= 18 && h <= 19:
		return PhaseDusk
	default:
		return PhaseNight
	}
}

// IsNight reports whether the hour falls in the night phase, when invader
// pressure peaks.
func (h GameHour) IsNight() bool {
	return h.Phase() == PhaseNight
}

// String returns the hour in "HH:00" format.
func (h GameHour) String() string {
	return fmt.Sprintf("%02d:00", int(h))
}

// Clock advances game time and broadcasts hour ticks to subscribers.
type Clock struct {
	mu           sync.Mutex
	hour         int
	tickInterval time.Duration
	subscribers  map[chan<- GameHour]struct{}
}

// NewClock creates a stopped Clock starting at startHour.
//
// Precondition: startHour in [0, 23]; tickInterval > 0.
// Postcondition: Returns a non-nil *Clock ready to Start().
func NewClock(startHour int, tickInterval time.Duration) *Clock {
	return &Clock{
		hour:         ((startHour % 24) + 24) % 24,
		tickInterval: tickInterval,
		subscribers:  make(map[chan<- GameHour]struct{}),
	}
}

// CurrentHour returns the current game hour.
func (c *Clock) CurrentHour() GameHour {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GameHour(c.hour)
}

// Subscribe registers ch to receive a GameHour value on each hour tick.
// If ch is full, the tick is dropped for that subscriber (non-blocking).
//
// Precondition: ch must not be nil.
func (c *Clock) Subscribe(ch chan<- GameHour) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch from the subscriber list.
func (c *Clock) Unsubscribe(ch chan<- GameHour) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribers, ch)
}

// Advance moves the clock forward one hour and notifies subscribers.
// Used directly by tests and by the clock goroutine.
//
// Postcondition: CurrentHour() has advanced by 1 modulo 24.
func (c *Clock) Advance() GameHour {
	c.mu.Lock()
	c.hour = (c.hour + 1) % 24
	h := GameHour(c.hour)
	subs := make([]chan<- GameHour, 0, len(c.subscribers))
	for ch := range c.subscribers {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- h:
		default:
		}
	}
	return h
}

// Start launches the clock goroutine and returns a stop function.
// Calling stop() is idempotent.
//
// Postcondition: The clock advances by 1 hour per tickInterval until stop()
// is called.
func (c *Clock) Start() (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Advance()
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}
