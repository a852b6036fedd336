package proc

import (
	"beeos/internal/defs"
	"beeos/internal/util"
)

/// Fork creates a new task from parentIdx: duplicated credentials, fd
/// refs (each bumped), cwd ref bumped, a deep-copied address space
/// (page_dir_dup with dup_user=1), copied signal tables, linked at the
/// ring's tail and as the youngest child of the parent — spec.md §4.5.
func (tt *TaskTable_t) Fork(parentIdx int) (childPid int, err defs.Err_t) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	parent := tt.arena.Get(parentIdx)
	dirPhys, err := tt.vm.PageDirDup(true)
	if err != 0 {
		return 0, err
	}

	child := Task_t{
		Pid:       tt.allocPid(),
		Pgid:      parent.Pgid,
		ParentIdx: parentIdx,
		ChildHead: util.NilIdx,
		SibNext:   util.NilIdx,
		SibPrev:   util.NilIdx,
		Cred:      parent.Cred,
		Cwd:       parent.Cwd,
		Brk:       parent.Brk,
		DirPhys:   dirPhys,
		State:     RUNNING,
		Counter:   SCHED_TIMESLICE,
		Mask:      parent.Mask,
		Actions:   parent.Actions,
	}
	if child.Cwd != nil {
		child.Cwd.Ref()
	}
	for i, f := range parent.Fds {
		if f != nil {
			f.Ref()
			child.Fds[i] = f
		}
	}

	idx := tt.arena.Alloc(child)
	tt.ringInsertBeforeHead(idx)
	tt.pids[child.Pid] = idx

	// re-fetch parent: Alloc may have grown the arena's backing slice,
	// invalidating the earlier *Task_t.
	parent = tt.arena.Get(parentIdx)
	oldHead := parent.ChildHead
	c := tt.arena.Get(idx)
	c.SibNext = oldHead
	if oldHead != util.NilIdx {
		tt.arena.Get(oldHead).SibPrev = idx
	}
	parent.ChildHead = idx

	return c.Pid, 0
}
