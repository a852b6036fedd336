// Package sched implements the preemptive round-robin scheduler of
// spec.md §4.5: a tick-driven quantum over proc.TaskTable_t's ring,
// always falling back to the ring head (ktask, pid 0) as idle.
//
// The actual register/stack-pointer save-and-restore is explicitly an
// arch boundary (spec.md §1: boot/trampoline assembly is out of
// scope), so this package depends on a ContextSwitcher_i hook rather
// than touching any registers itself — the same "mockable boundary
// function" shape internal/arch.CPU_i uses for the rest of the
// hardware contract.
//
// Grounded on the index-based ring-walk bookkeeping style of
// biscuit/src/mem/mem.go's percpu freelists (per the §9 redesign
// note: ring links are arena indices, not pointers), driving
// proc.TaskTable_t directly rather than a teacher scheduler.go (none
// was retrieved for this corpus).
package sched

import "beeos/internal/proc"

/// ContextSwitcher_i performs the arch-specific half of a reschedule:
/// saving the outgoing task's callee-saved registers and kernel stack
/// pointer, then loading the incoming task's. Production code installs
/// a real implementation over the trap-frame/stack-switch assembly;
/// tests install a stub that just records the transition.
type ContextSwitcher_i interface {
	Switch(fromIdx, toIdx int)
}

/// NopSwitcher is a ContextSwitcher_i that does nothing, usable when a
/// caller only cares about the ring-walk/state-transition bookkeeping.
type NopSwitcher struct{}

func (NopSwitcher) Switch(fromIdx, toIdx int) {}

/// Scheduler_t tracks which task is current and drives preemption.
type Scheduler_t struct {
	tt      *proc.TaskTable_t
	current int
	sw      ContextSwitcher_i
}

/// New creates a scheduler with the task table's ring head (ktask) as
/// the initially running task.
func New(tt *proc.TaskTable_t, sw ContextSwitcher_i) *Scheduler_t {
	return &Scheduler_t{tt: tt, current: tt.RingHead(), sw: sw}
}

/// Current returns the arena index of the presently running task.
func (s *Scheduler_t) Current() int { return s.current }

/// Tick accounts one timer tick against the current task's quantum,
/// rescheduling when it expires. Spec.md §4.5: "each preemption tick
/// decrements the current task's counter; at zero, reschedule."
func (s *Scheduler_t) Tick() {
	cur := s.tt.Get(s.current)
	cur.Counter--
	if cur.Counter <= 0 {
		s.Reschedule()
	}
}

/// Yield forces an immediate reschedule regardless of remaining
/// quantum — the voluntary half of spec.md §5's suspension points
/// (cond_wait, nanosleep, waitpid all fall through to this).
func (s *Scheduler_t) Yield() {
	s.Reschedule()
}

/// Reschedule picks the next RUNNING task in ring order after the
/// current one, wrapping to ktask (always RUNNING) if none is found,
/// resets its quantum, and invokes the context-switch hook.
func (s *Scheduler_t) Reschedule() {
	next := s.pickNext()
	s.tt.Get(next).Counter = proc.SCHED_TIMESLICE
	if next != s.current {
		s.sw.Switch(s.current, next)
	}
	s.current = next
}

func (s *Scheduler_t) pickNext() int {
	idle := s.tt.RingHead()
	idx := s.tt.Next(s.current)
	for idx != s.current {
		if s.tt.Get(idx).State == proc.RUNNING {
			return idx
		}
		idx = s.tt.Next(idx)
	}
	if s.tt.Get(s.current).State == proc.RUNNING {
		return s.current
	}
	return idle
}
