package proc

import (
	"testing"

	"beeos/internal/util"
)

func TestForkExitWaitpidRoundTrip(t *testing.T) {
	tt := newTestTable(t)
	parent := tt.RingHead()

	childPid, err := tt.Fork(parent)
	if err != 0 {
		t.Fatalf("fork failed: %v", err)
	}
	childIdx, ok := tt.ByPid(childPid)
	if !ok {
		t.Fatal("child pid not registered in pid table")
	}
	if tt.Get(childIdx).State != RUNNING {
		t.Fatal("a freshly forked child should be RUNNING")
	}

	if _, _, found, err := tt.TryWait(parent, childPid); found || err != 0 {
		t.Fatalf("TryWait before exit = (found:%v err:%v), want (false, 0)", found, err)
	}

	tt.Exit(childIdx, 7)
	if tt.Get(childIdx).State != ZOMBIE {
		t.Fatal("exited task should be ZOMBIE until reaped")
	}
	if tt.Get(parent).Pending == 0 {
		t.Fatal("exiting child should raise SIGCHLD on its parent")
	}

	gotPid, gotCode, found, err := tt.TryWait(parent, childPid)
	if err != 0 || !found {
		t.Fatalf("TryWait after exit = (found:%v err:%v), want (true, 0)", found, err)
	}
	if gotPid != childPid || gotCode != 7 {
		t.Fatalf("TryWait returned (pid:%d code:%d), want (%d,7)", gotPid, gotCode, childPid)
	}

	if _, ok := tt.ByPid(childPid); ok {
		t.Fatal("reaped child should be removed from the pid table")
	}
	if tt.Get(parent).ChildHead != util.NilIdx {
		t.Fatal("parent should have no children left after reap")
	}
}

func TestWaitOnNonexistentChildReturnsECHILD(t *testing.T) {
	tt := newTestTable(t)
	parent := tt.RingHead()
	if _, _, found, err := tt.TryWait(parent, 999); found || err == 0 {
		t.Fatalf("TryWait on unknown pid = (found:%v err:%v), want (false, -ECHILD)", found, err)
	}
}

func TestBlockOnChildExitSleepsThenWakesOnExit(t *testing.T) {
	tt := newTestTable(t)
	parent := tt.RingHead()
	childPid, err := tt.Fork(parent)
	if err != 0 {
		t.Fatalf("fork failed: %v", err)
	}
	childIdx, _ := tt.ByPid(childPid)

	tt.BlockOnChildExit(parent)
	if tt.Get(parent).State != SLEEPING {
		t.Fatal("parent should be SLEEPING after BlockOnChildExit")
	}

	tt.Exit(childIdx, 0)
	if tt.Get(parent).State != RUNNING {
		t.Fatal("parent should be woken RUNNING once its child exits")
	}
}
