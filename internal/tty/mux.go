package tty

import (
	"sync"

	"beeos/internal/defs"
	"beeos/internal/dev"
)

/// Multiplexer_t owns the fixed set of virtual consoles and tracks
/// which one currently receives keyboard input (spec.md §4.9's
/// multi-console switching, e.g. Alt+Fn in a real terminal driver).
type Multiplexer_t struct {
	mu       sync.Mutex
	consoles []*Console_t
	active   int
}

/// NewMultiplexer builds n consoles of the given screen geometry,
/// starting with console 0 active.
func NewMultiplexer(n, cols, rows int) *Multiplexer_t {
	m := &Multiplexer_t{consoles: make([]*Console_t, n)}
	for i := range m.consoles {
		m.consoles[i] = NewConsole(i, cols, rows)
	}
	return m
}

/// Active returns the console currently receiving keyboard input.
func (m *Multiplexer_t) Active() *Console_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consoles[m.active]
}

/// Console returns the console at index n, for dev_io callers
/// addressing a specific console minor rather than "whichever is
/// active".
func (m *Multiplexer_t) Console(n int) (*Console_t, defs.Err_t) {
	if n < 0 || n >= len(m.consoles) {
		return nil, defs.ENODEV
	}
	return m.consoles[n], 0
}

/// Switch makes console n the one receiving keyboard input.
func (m *Multiplexer_t) Switch(n int) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= len(m.consoles) {
		return defs.ENODEV
	}
	m.active = n
	return 0
}

/// Input routes one keyboard byte to the currently active console.
func (m *Multiplexer_t) Input(ch byte) []int {
	return m.Active().Input(ch)
}

/// Refresh calls flush(id, screen) for every console whose backbuffer
/// has changed since the last call, the periodic-timer-driven path to
/// the real VGA framebuffer spec.md §4.9 describes.
func (m *Multiplexer_t) Refresh(flush func(id int, screen []byte)) {
	m.mu.Lock()
	consoles := append([]*Console_t(nil), m.consoles...)
	m.mu.Unlock()
	for _, c := range consoles {
		if snap, dirty := c.TakeSnapshot(); dirty {
			flush(c.Id, snap)
		}
	}
}

/// IO implements dev.Handler_i for the D_CONSOLE major by routing to
/// the active console; a full driver would demultiplex by minor
/// number instead, but this port only ever opens the active tty.
func (m *Multiplexer_t) IO(rw dev.RW_t, off int64, buf []byte) (int, bool, defs.Err_t) {
	return m.Active().IO(rw, off, buf)
}
