// Package proc implements the task table of spec.md §4.5: per-task
// state, the global scheduling ring, fork/exit/wait, and BSD-style
// setuid. Execve (ELF loading) lives in execve.go of this package since
// it mutates a Task_t directly; the ELF32 parsing itself is
// internal/elf.
//
// Grounded on biscuit/src/fd/fd.go (Fd_t/Cwd_t shape) and
// biscuit/src/accnt/accnt.go (Accnt_t's embedded-mutex accounting
// style), reworked around the §9 redesign notes: tasks live in an
// internal/util.Arena and are referenced by small integer indices
// everywhere — the scheduling ring, the parent/child/sibling tree, and
// every external handle this package hands out — instead of raw
// pointers.
package proc

import (
	"sync"

	"beeos/internal/defs"
	"beeos/internal/mem"
	"beeos/internal/sig"
	"beeos/internal/timer"
	"beeos/internal/util"
	"beeos/internal/vm"
)

/// State_t is one of the states spec.md §4.5 names.
type State_t int

const (
	RUNNING State_t = iota
	SLEEPING
	ZOMBIE
	TERMINATED
)

/// SCHED_TIMESLICE is the round-robin quantum, in ticks (spec.md §4.5:
/// "timeslice is reset to SCHED_TIMESLICE milliseconds, converted to
/// ticks, on switch"). One tick is modeled as one millisecond here.
const SCHED_TIMESLICE = 10

/// Credentials_t is the BSD-style real/effective/saved uid and gid
/// triple spec.md §8 scenario 6 exercises.
type Credentials_t struct {
	Uid, Euid, Suid int
	Gid, Egid, Sgid int
}

/// FileRef_i is the minimal refcounted-resource contract a task's open
/// files and cwd must satisfy; internal/vfs's File_t and Inode_t
/// implement it. Kept narrow so internal/proc does not need to import
/// internal/vfs.
type FileRef_i interface {
	Ref()
	Unref()
}

/// Task_t is one schedulable entity: spec.md §3's process plus the
/// bookkeeping the scheduler, signal delivery, and wait/exit need.
type Task_t struct {
	Pid  int
	Pgid int

	ParentIdx int /// arena index, util.NilIdx for ktask
	ChildHead int /// arena index of youngest child, util.NilIdx if none
	SibNext   int /// next-older sibling under the same parent
	SibPrev   int /// next-younger sibling under the same parent

	Cred Credentials_t
	Cwd  FileRef_i
	Fds  [defs.OPEN_MAX]FileRef_i

	Brk     uintptr
	DirPhys mem.Pa_t

	State    State_t
	Counter  int /// remaining ticks in the current timeslice
	ExitCode int

	Pending uint32
	Mask    uint32
	Actions [defs.NSIG]sig.Sigaction_t

	ChldExit timer.Cond_t /// parent blocks here in waitpid
}

/// TaskTable_t owns every live task and the ring the scheduler walks.
type TaskTable_t struct {
	mu       sync.Mutex
	arena    *util.Arena[Task_t]
	ringHead int
	pids     map[int]int
	nextPid  int
	vm       *vm.VM_t
}

/// NewTaskTable creates the table with pid 0 ("ktask", the idle task)
/// as its sole ring member, per spec.md §4.5.
func NewTaskTable(v *vm.VM_t, ktaskDir mem.Pa_t) *TaskTable_t {
	tt := &TaskTable_t{
		arena: util.NewArena[Task_t](),
		pids:  make(map[int]int),
		vm:    v,
	}
	idx := tt.arena.Alloc(Task_t{
		Pid:       0,
		ParentIdx: util.NilIdx,
		ChildHead: util.NilIdx,
		SibNext:   util.NilIdx,
		SibPrev:   util.NilIdx,
		State:     RUNNING,
		Counter:   SCHED_TIMESLICE,
		DirPhys:   ktaskDir,
	})
	tt.arena.SetNext(idx, idx)
	tt.arena.SetPrev(idx, idx)
	tt.ringHead = idx
	tt.pids[0] = idx
	tt.nextPid = 1
	return tt
}

/// Get returns the task stored at idx for in-place mutation.
func (tt *TaskTable_t) Get(idx int) *Task_t { return tt.arena.Get(idx) }

/// ByPid resolves a pid to its arena index.
func (tt *TaskTable_t) ByPid(pid int) (int, bool) {
	idx, ok := tt.pids[pid]
	return idx, ok
}

/// RingHead returns the arena index of ktask, the fixed ring anchor.
func (tt *TaskTable_t) RingHead() int { return tt.ringHead }

/// Next returns the arena index of idx's successor in ring order.
func (tt *TaskTable_t) Next(idx int) int { return tt.arena.Next(idx) }

func (tt *TaskTable_t) allocPid() int {
	p := tt.nextPid
	tt.nextPid++
	return p
}

func (tt *TaskTable_t) ringInsertBeforeHead(idx int) {
	tail := tt.arena.Prev(tt.ringHead)
	tt.arena.SetNext(tail, idx)
	tt.arena.SetPrev(idx, tail)
	tt.arena.SetNext(idx, tt.ringHead)
	tt.arena.SetPrev(tt.ringHead, idx)
}

func (tt *TaskTable_t) ringRemove(idx int) {
	p, n := tt.arena.Prev(idx), tt.arena.Next(idx)
	tt.arena.SetNext(p, n)
	tt.arena.SetPrev(n, p)
}

/// Dirs implements vm.DirObserver_i: every live task's directory frame,
/// for kernel-mapping propagation.
func (tt *TaskTable_t) Dirs() []int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	var out []int
	start := tt.ringHead
	idx := start
	for {
		out = append(out, int(tt.arena.Get(idx).DirPhys>>mem.PGSHIFT))
		idx = tt.arena.Next(idx)
		if idx == start {
			break
		}
	}
	return out
}
