package sim

import (
	"sync"
	"time"
)

// Loop drives a callback once per frame interval. It satisfies the server
// lifecycle Service contract: Start blocks until Stop is called.
type Loop struct {
	interval time.Duration
	tick     func(now time.Time)
	mu       sync.Mutex
	done     chan struct{}
	stopped  bool
}

// NewLoop returns a loop firing tick every interval.
//
// Precondition: interval must be > 0; tick must be non-nil.
func NewLoop(interval time.Duration, tick func(now time.Time)) *Loop {
	if interval <= 0 {
		panic("sim.NewLoop: interval must be > 0")
	}
	if tick == nil {
		panic("sim.NewLoop: tick must be non-nil")
	}
	return &Loop{
		interval: interval,
		tick:     tick,
		done:     make(chan struct{}),
	}
}

// Start runs the frame loop until Stop is called.
//
// Postcondition: tick has been invoked once per interval; returns nil.
func (l *Loop) Start() error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.tick(now)
		case <-l.done:
			return nil
		}
	}
}

// Stop ends the frame loop. Safe to call multiple times.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.stopped {
		l.stopped = true
		close(l.done)
	}
}
