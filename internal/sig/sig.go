// Package sig holds the pure, stateless parts of POSIX-style signal
// delivery spec.md §4.5 describes: default dispositions and the pending
// scan. internal/proc owns the actual per-task pending/mask/sigaction
// state and trap-frame rewriting, since that is where a real task lives;
// this package exists so that state machine has a single, teacher-style
// named home instead of being inlined into proc, the same split
// biscuit's own kernel keeps between e.g. defs/ and the package that
// actually acts on a defs type.
package sig

import "beeos/internal/defs"

/// Action_t is the default disposition spec.md §4.5 assigns a signal that
/// has no installed handler and is not SIG_IGN.
type Action_t int

const (
	ACT_TERM   Action_t = iota /// terminate the task
	ACT_IGNORE                 /// no-op (SIGCHLD, SIGURG)
	ACT_STOP                   /// stop the task (currently a no-op placeholder)
)

/// DefaultAction reports signum's default disposition per spec.md §4.5.
func DefaultAction(signum int) Action_t {
	switch signum {
	case defs.SIGCHLD, defs.SIGURG:
		return ACT_IGNORE
	case defs.SIGSTOP, defs.SIGTSTP, defs.SIGTTIN, defs.SIGTTOU:
		return ACT_STOP
	default:
		return ACT_TERM
	}
}

/// Sigaction_t is one entry of a task's signal-disposition table.
/// Handler == SIG_DFL or SIG_IGN selects the corresponding builtin
/// behavior; any other value is a user-space handler address.
type Sigaction_t struct {
	Handler uintptr
	Mask    uint32 /// additional signals masked while the handler runs
}

/// Lowest returns the lowest-numbered set bit in pending that mask does
/// not block, and whether one was found — the scan spec.md §4.5
/// describes happening "on return from any syscall or interrupt to user
/// mode".
func Lowest(pending, mask uint32) (int, bool) {
	deliverable := pending &^ mask
	if deliverable == 0 {
		return 0, false
	}
	for s := 1; s < defs.NSIG; s++ {
		if deliverable&(1<<uint(s)) != 0 {
			return s, true
		}
	}
	return 0, false
}

/// Bit returns the pending-set bit for signum.
func Bit(signum int) uint32 { return 1 << uint(signum) }

/// Deliver finds the lowest-numbered pending, unmasked signal and clears
/// it from pending, returning the signal and true — exactly one signal
/// is ever consumed per call, matching spec.md §4.5's "return from any
/// syscall or interrupt to user mode" scan.
func Deliver(pending, mask uint32) (newPending uint32, signum int, delivered bool) {
	s, ok := Lowest(pending, mask)
	if !ok {
		return pending, 0, false
	}
	return pending &^ Bit(s), s, true
}
