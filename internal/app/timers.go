package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

type timerEntry struct {
	timer *clock.Timer
}

// TimerRegistry keeps at most one pending delayed action per key.
// Arming a key that already has a timer replaces it; an action runs at most
// once and never after its timer was cancelled or replaced.
type TimerRegistry[K comparable] struct {
	name  string
	clock clock.Clock

	mu      sync.Mutex
	pending map[K]*timerEntry
	stopped bool
}

func NewTimerRegistry[K comparable](name string, clk clock.Clock) *TimerRegistry[K] {
	if clk == nil {
		clk = clock.New()
	}
	return &TimerRegistry[K]{
		name:    name,
		clock:   clk,
		pending: make(map[K]*timerEntry),
	}
}

// Arm schedules action(key) after delay, replacing any pending timer for key.
func (r *TimerRegistry[K]) Arm(key K, delay time.Duration, action func(K)) {
	entry := &timerEntry{}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	replaced := false
	if old, ok := r.pending[key]; ok {
		old.timer.Stop()
		replaced = true
	}
	r.pending[key] = entry
	// fire takes r.mu, so entry.timer is set before the callback can look at it.
	entry.timer = r.clock.AfterFunc(delay, func() { r.fire(key, entry, action) })

	log.Debug().
		Str("module", "app.timers").
		Str("registry", r.name).
		Str("key", fmt.Sprint(key)).
		Dur("delay", delay).
		Bool("replaced", replaced).
		Msg("timer armed")
}

func (r *TimerRegistry[K]) fire(key K, entry *timerEntry, action func(K)) {
	r.mu.Lock()
	if cur, ok := r.pending[key]; !ok || cur != entry {
		r.mu.Unlock()
		return
	}
	delete(r.pending, key)
	r.mu.Unlock()

	log.Debug().Str("module", "app.timers").Str("registry", r.name).Str("key", fmt.Sprint(key)).Msg("timer fired")
	action(key)
}

// Cancel drops the pending timer for key. It reports whether one existed.
func (r *TimerRegistry[K]) Cancel(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.pending[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(r.pending, key)
	log.Debug().Str("module", "app.timers").Str("registry", r.name).Str("key", fmt.Sprint(key)).Msg("timer cancelled")
	return true
}

func (r *TimerRegistry[K]) Pending(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[key]
	return ok
}

func (r *TimerRegistry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop cancels every pending timer and refuses new ones.
func (r *TimerRegistry[K]) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.pending {
		entry.timer.Stop()
		delete(r.pending, key)
	}
	r.stopped = true
}
