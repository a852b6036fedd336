// Package timer implements the global tick counter, the sorted timer
// event list, and condition variables described by spec.md §4.6.
//
// Grounded on biscuit/src/circbuf/circbuf.go's style of keeping all
// synchronization state as plain embedded fields rather than pointer
// soup. The event list is a plain slice kept sorted by fire tick, not a
// pointer-linked list with two different link fields per event; there
// is no per-owner (per-task) timer list.
// There is no goroutine-per-task model here (spec.md's task ring is
// scheduled cooperatively, not by real OS threads), so Cond_t and
// Nanosleep track wait/sleep state as data a caller drives forward by
// calling Tick, rather than blocking a call stack on a channel.
package timer

import "sync"

/// Clock_t is the global tick source and sorted timer-event list.
type Clock_t struct {
	mu     sync.Mutex
	ticks  uint64
	events []event_t // kept sorted by fire ascending; small N in practice
	nextID int
}

type event_t struct {
	id   int
	fire uint64
	cb   func()
}

/// NewClock creates a clock with the tick counter at zero.
func NewClock() *Clock_t {
	return &Clock_t{}
}

/// Now returns the current tick count.
func (c *Clock_t) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

/// Schedule registers cb to fire after delta ticks, keeping the event
/// list sorted by absolute fire tick (spec.md §4.6: "insertion keeps the
/// global list sorted by fire-tick"). Returns an id Cancel can use.
func (c *Clock_t) Schedule(delta uint64, cb func()) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	e := event_t{id: c.nextID, fire: c.ticks + delta, cb: cb}
	i := 0
	for ; i < len(c.events); i++ {
		if c.events[i].fire > e.fire {
			break
		}
	}
	c.events = append(c.events, event_t{})
	copy(c.events[i+1:], c.events[i:])
	c.events[i] = e
	return e.id
}

/// Cancel removes a pending event before it fires, reporting the ticks
/// remaining until it would have and whether it was still pending.
func (c *Clock_t) Cancel(id int) (remaining uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.events {
		if e.id == id {
			c.events = append(c.events[:i], c.events[i+1:]...)
			if e.fire > c.ticks {
				remaining = e.fire - c.ticks
			}
			return remaining, true
		}
	}
	return 0, false
}

/// Tick advances the clock by one and invokes every event whose
/// deadline has now passed, per spec.md §4.6 ("the timer IRQ pops all
/// events whose deadline has passed and invokes callbacks in IRQ
/// context"). Callbacks run after the lock is released so they may
/// themselves call Schedule/Cancel.
func (c *Clock_t) Tick() {
	c.mu.Lock()
	c.ticks++
	now := c.ticks
	due := 0
	for due < len(c.events) && c.events[due].fire <= now {
		due++
	}
	fired := append([]event_t(nil), c.events[:due]...)
	c.events = c.events[due:]
	c.mu.Unlock()

	for _, e := range fired {
		e.cb()
	}
}

/// Cond_t is a spinlock-protected wait queue of opaque waiter ids (task
/// indices in practice), per spec.md §4.6.
type Cond_t struct {
	mu      sync.Mutex
	waiters []int
}

/// Wait enqueues id as a waiter. The caller is responsible for having
/// already set the waiter SLEEPING before calling this (spec.md §4.6:
/// "atomically places the current task on the queue, sets state
/// SLEEPING").
func (c *Cond_t) Wait(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiters = append(c.waiters, id)
}

/// Signal moves every waiter to RUNNING by returning their ids for the
/// caller to act on, clearing the queue.
func (c *Cond_t) Signal() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.waiters
	c.waiters = nil
	return w
}
