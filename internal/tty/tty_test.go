package tty

import (
	"testing"

	"beeos/internal/defs"
	"beeos/internal/dev"
)

func TestRingPutGetFIFOAndFullness(t *testing.T) {
	r := NewRing(4)
	for _, b := range []byte("ab") {
		if !r.PutByte(b) {
			t.Fatalf("PutByte(%q) unexpectedly failed", b)
		}
	}
	if r.Used() != 2 || r.Left() != 2 {
		t.Fatalf("Used/Left = %d/%d, want 2/2", r.Used(), r.Left())
	}
	for _, want := range []byte("ab") {
		got, ok := r.GetByte()
		if !ok || got != want {
			t.Fatalf("GetByte = %q,%v want %q,true", got, ok, want)
		}
	}
	if !r.Empty() {
		t.Fatal("ring should be empty after draining")
	}

	for i := 0; i < 4; i++ {
		if !r.PutByte(byte('x' + i)) {
			t.Fatalf("PutByte %d should have succeeded", i)
		}
	}
	if !r.Full() {
		t.Fatal("ring should be full at capacity")
	}
	if r.PutByte('z') {
		t.Fatal("PutByte on a full ring should fail")
	}
}

func TestConsoleCanonicalLineAssemblyWithBackspace(t *testing.T) {
	c := NewConsole(0, 80, 25)
	for _, ch := range []byte("helxlo") {
		c.Input(ch)
	}
	// erase the trailing "xlo" before finishing the line: "helxlo" -> 3x backspace -> "hel"
	c.Input(bs)
	c.Input(bs)
	c.Input(bs)
	for _, ch := range []byte("lo") {
		c.Input(ch)
	}
	c.Input(lf)

	buf := make([]byte, 16)
	n, wouldBlock := c.Read(buf)
	if wouldBlock {
		t.Fatal("a completed line should not report wouldBlock")
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("assembled line = %q, want %q", buf[:n], "hello")
	}
}

func TestConsoleReadWithNoLineReadyReportsWouldBlock(t *testing.T) {
	c := NewConsole(0, 80, 25)
	_, wouldBlock := c.Read(make([]byte, 8))
	if !wouldBlock {
		t.Fatal("expected wouldBlock with no completed line")
	}
}

func TestConsoleInputSignalsReadCondWaiters(t *testing.T) {
	c := NewConsole(0, 80, 25)
	c.ReadCond.Wait(42)
	woken := c.Input(lf)
	if len(woken) != 1 || woken[0] != 42 {
		t.Fatalf("woken = %v, want [42]", woken)
	}
}

func TestConsoleWriteSanitizesAndMarksDirty(t *testing.T) {
	c := NewConsole(0, 8, 1)
	c.Write([]byte("hi"))
	snap, dirty := c.TakeSnapshot()
	if !dirty {
		t.Fatal("console should be dirty after a write")
	}
	if string(snap[:2]) != "hi" {
		t.Fatalf("backbuffer = %q, want prefix %q", snap[:2], "hi")
	}
	if _, dirty := c.TakeSnapshot(); dirty {
		t.Fatal("dirty flag should clear after TakeSnapshot")
	}
}

func TestMultiplexerSwitchRoutesInputToActiveConsole(t *testing.T) {
	m := NewMultiplexer(2, 80, 25)
	if err := m.Switch(1); err != 0 {
		t.Fatalf("Switch(1) = %v, want success", err)
	}
	m.Input('a')
	m.Input(lf)

	other, _ := m.Console(0)
	if _, wouldBlock := other.Read(make([]byte, 4)); !wouldBlock {
		t.Fatal("console 0 should not have received input routed to console 1")
	}
	active := m.Active()
	buf := make([]byte, 4)
	n, wouldBlock := active.Read(buf)
	if wouldBlock || string(buf[:n]) != "a" {
		t.Fatalf("active console Read = %q, wouldBlock %v, want \"a\"", buf[:n], wouldBlock)
	}
}

func TestMultiplexerSwitchOutOfRangeIsENODEV(t *testing.T) {
	m := NewMultiplexer(1, 80, 25)
	if err := m.Switch(5); err != defs.ENODEV {
		t.Fatalf("Switch(5) = %v, want -ENODEV", err)
	}
}

func TestMultiplexerRefreshOnlyFlushesDirtyConsoles(t *testing.T) {
	m := NewMultiplexer(2, 80, 25)
	active := m.Active()
	active.Write([]byte("x"))

	flushed := map[int]bool{}
	m.Refresh(func(id int, screen []byte) { flushed[id] = true })
	if !flushed[0] || flushed[1] {
		t.Fatalf("flushed = %v, want only console 0", flushed)
	}

	flushed = map[int]bool{}
	m.Refresh(func(id int, screen []byte) { flushed[id] = true })
	if len(flushed) != 0 {
		t.Fatalf("second Refresh with nothing new dirty flushed %v", flushed)
	}
}

func TestConsoleIOImplementsDevHandlerContract(t *testing.T) {
	c := NewConsole(0, 80, 25)
	n, _, err := c.IO(dev.DEV_WRITE, 0, []byte("ok"))
	if err != 0 || n != 2 {
		t.Fatalf("write IO = (%d,%v), want (2,0)", n, err)
	}
	if _, _, err := c.IO(dev.DEV_READ, 0, make([]byte, 4)); err != defs.EAGAIN {
		t.Fatalf("read IO with nothing ready = %v, want -EAGAIN", err)
	}
}
