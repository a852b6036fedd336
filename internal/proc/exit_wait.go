package proc

import (
	"beeos/internal/defs"
	"beeos/internal/sig"
	"beeos/internal/util"
)

/// Exit marks idx ZOMBIE, closes its fds, releases its cwd, and wakes
/// its parent's waitpid via chld_exit plus SIGCHLD — spec.md §4.5. User
/// pages are freed lazily on Reap, not here.
func (tt *TaskTable_t) Exit(idx int, code int) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	t := tt.arena.Get(idx)
	t.State = ZOMBIE
	t.ExitCode = code
	for i, f := range t.Fds {
		if f != nil {
			f.Unref()
			t.Fds[i] = nil
		}
	}
	if t.Cwd != nil {
		t.Cwd.Unref()
		t.Cwd = nil
	}

	if t.ParentIdx == util.NilIdx {
		return
	}
	parent := tt.arena.Get(t.ParentIdx)
	parent.Pending |= sig.Bit(defs.SIGCHLD)
	for _, w := range parent.ChldExit.Signal() {
		tt.arena.Get(w).State = RUNNING
	}
}

// unlinkChild removes idx from its parent's sibling list.
func (tt *TaskTable_t) unlinkChild(idx int) {
	t := tt.arena.Get(idx)
	if t.SibPrev != util.NilIdx {
		tt.arena.Get(t.SibPrev).SibNext = t.SibNext
	} else if t.ParentIdx != util.NilIdx {
		tt.arena.Get(t.ParentIdx).ChildHead = t.SibNext
	}
	if t.SibNext != util.NilIdx {
		tt.arena.Get(t.SibNext).SibPrev = t.SibPrev
	}
}

// reap tears down a zombie completely: removes it from the ring, its
// parent's child list, the pid table, and releases its address space.
func (tt *TaskTable_t) reap(idx int) {
	t := tt.arena.Get(idx)
	dirPhys := t.DirPhys
	pid := t.Pid

	tt.ringRemove(idx)
	tt.unlinkChild(idx)
	delete(tt.pids, pid)
	tt.arena.Free(idx)

	tt.vm.PageDirDel(dirPhys)
}

/// TryWait scans parentIdx's children for a zombie matching pid (-1
/// means any child) and reaps it if found. found==false, err==0 means
/// live matching children exist but none are zombies yet — the caller
/// should block via BlockOnChildExit and retry. err==-ECHILD means no
/// matching children exist at all.
func (tt *TaskTable_t) TryWait(parentIdx, pid int) (childPid, exitCode int, found bool, err defs.Err_t) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	parent := tt.arena.Get(parentIdx)
	anyMatch := false
	for c := parent.ChildHead; c != util.NilIdx; {
		child := tt.arena.Get(c)
		next := child.SibNext
		if pid == -1 || child.Pid == pid {
			anyMatch = true
			if child.State == ZOMBIE {
				cp, code := child.Pid, child.ExitCode
				tt.reap(c)
				return cp, code, true, 0
			}
		}
		c = next
	}
	if !anyMatch {
		return 0, 0, false, -defs.ECHILD
	}
	return 0, 0, false, 0
}

/// BlockOnChildExit puts parentIdx SLEEPING on its own chld_exit
/// condition, per spec.md §4.5's "sleeps on the parent's chld_exit
/// condition" when waitpid finds no zombie and WNOHANG is not set.
func (tt *TaskTable_t) BlockOnChildExit(parentIdx int) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	t := tt.arena.Get(parentIdx)
	t.State = SLEEPING
	t.ChldExit.Wait(parentIdx)
}
