package tty

import (
	"sync"

	"golang.org/x/text/encoding/charmap"

	"beeos/internal/defs"
	"beeos/internal/dev"
	"beeos/internal/timer"
)

// MAX_CANON bounds one not-yet-terminated input line, per spec.md
// §4.9's canonical-mode line discipline.
const MAX_CANON = 256

const (
	cr  = 0x0d
	lf  = 0x0a
	bs  = 0x08
	del = 0x7f
	eof = 0x04
)

/// Termios_t is the subset of line-discipline flags this port honors:
/// canonical (line-buffered) mode and local echo.
type Termios_t struct {
	Canon bool
	Echo  bool
}

/// Console_t is one virtual console: a canonical line assembler (with
/// an input ring that only raw, non-canonical mode writes into), a
/// queue of completed lines awaiting a reader, a
/// foreground process group for job-control signal delivery, and a
/// dirty output backbuffer a periodic timer flushes to the real
/// framebuffer.
///
/// Grounded on biscuit/src/circbuf/circbuf.go for the input ring
/// shape; the per-console field set (termios, fgpgrp, read condvar,
/// device id) is spec.md §4.9 directly.
type Console_t struct {
	mu sync.Mutex

	Id      int
	Termios Termios_t
	FgPgrp  int

	input *Ring_t
	line  []byte
	ready [][]byte

	ReadCond timer.Cond_t

	screen []byte
	cursor int
	dirty  bool

	enc *charmap.Charmap
}

/// NewConsole allocates a console with a MAX_CANON input ring and a
/// cols*rows text backbuffer, defaulting to canonical+echo mode.
func NewConsole(id, cols, rows int) *Console_t {
	return &Console_t{
		Id:      id,
		Termios: Termios_t{Canon: true, Echo: true},
		input:   NewRing(MAX_CANON),
		screen:  make([]byte, cols*rows),
		enc:     charmap.ISO8859_1,
	}
}

/// Input feeds one byte arriving from the keyboard IRQ handler into
/// the line discipline. In canonical mode a CR/LF/EOF terminates the
/// pending line and moves it to the ready queue, waking any blocked
/// reader; DEL/backspace erases the last unterminated byte; every
/// other byte is appended to the pending line (dropped silently once
/// the line holds MAX_CANON bytes). In raw mode the byte goes into the
/// input ring instead, dropped if the ring is full, mirroring
/// circbuf.go's Copyin behavior at capacity. Returns the ids of tasks
/// woken by a completed line, if any.
func (c *Console_t) Input(ch byte) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Termios.Canon {
		c.input.PutByte(ch)
		if c.Termios.Echo {
			c.echoLocked([]byte{ch})
		}
		return nil
	}

	switch ch {
	case bs, del:
		if len(c.line) > 0 {
			c.line = c.line[:len(c.line)-1]
			if c.Termios.Echo {
				c.echoLocked([]byte{bs, ' ', bs})
			}
		}
		return nil
	case cr, lf, eof:
		if c.Termios.Echo {
			c.echoLocked([]byte{lf})
		}
		line := c.line
		c.line = nil
		c.ready = append(c.ready, line)
		return c.ReadCond.Signal()
	default:
		if len(c.line) < MAX_CANON {
			c.line = append(c.line, ch)
			if c.Termios.Echo {
				c.echoLocked([]byte{ch})
			}
		}
		return nil
	}
}

/// Read removes the oldest ready line and copies it into buf,
/// reporting wouldBlock=true if no line is ready yet — the caller is
/// expected to mark itself SLEEPING, call ReadCond.Wait, and retry on
/// wakeup, per the cooperative suspension convention of spec.md §5.
func (c *Console_t) Read(buf []byte) (n int, wouldBlock bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ready) == 0 {
		return 0, true
	}
	line := c.ready[0]
	c.ready = c.ready[1:]
	return copy(buf, line), false
}

/// Write sanitizes buf to ISO-8859-1 (the VGA text framebuffer's
/// native charset) and appends it to the circular screen backbuffer,
/// marking the console dirty for the next Refresh.
func (c *Console_t) Write(buf []byte) int {
	sanitized, _, _ := c.enc.NewEncoder().Bytes(buf)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range sanitized {
		c.screen[c.cursor] = b
		c.cursor = (c.cursor + 1) % len(c.screen)
	}
	c.dirty = true
	return len(buf)
}

func (c *Console_t) echoLocked(buf []byte) {
	for _, b := range buf {
		c.screen[c.cursor] = b
		c.cursor = (c.cursor + 1) % len(c.screen)
	}
	c.dirty = true
}

/// TakeSnapshot returns the current backbuffer and clears the dirty
/// flag, for a Refresh pass to hand to the framebuffer driver.
func (c *Console_t) TakeSnapshot() (snapshot []byte, wasDirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasDirty = c.dirty
	c.dirty = false
	snapshot = append([]byte(nil), c.screen...)
	return
}

/// IO implements dev.Handler_i for the D_CONSOLE major. pid's
/// relation to FgPgrp (job-control background-read suppression) is a
/// caller concern per spec.md §4.9's dev_io contract; this method only
/// moves bytes.
func (c *Console_t) IO(rw dev.RW_t, off int64, buf []byte) (int, bool, defs.Err_t) {
	switch rw {
	case dev.DEV_READ:
		n, wouldBlock := c.Read(buf)
		if wouldBlock {
			return 0, false, defs.EAGAIN
		}
		return n, true, 0
	case dev.DEV_WRITE:
		return c.Write(buf), false, 0
	default:
		return 0, false, defs.EINVAL
	}
}
