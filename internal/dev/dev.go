// Package dev implements the major/minor device dispatch of spec.md
// §4.9: dev_io routes by major number to a registered handler (TTY,
// ramdisk, stat), failing unknown majors with -ENODEV.
//
// Grounded on biscuit/src/defs/device.go's Mkdev/Unmkdev major/minor
// packing (already carried into internal/defs) and the dispatch-by-
// major shape its D_CONSOLE/D_RAWDISK/D_STAT constants imply.
package dev

import (
	"sync"

	"beeos/internal/defs"
)

/// RW_t selects the direction of a dev_io call.
type RW_t int

const (
	DEV_READ RW_t = iota
	DEV_WRITE
)

/// Handler_i is what a device major registers: spec.md §4.9's dev_io
/// contract narrowed to one major's concern.
type Handler_i interface {
	IO(rw RW_t, off int64, buf []byte) (n int, eof bool, err defs.Err_t)
}

/// Dispatch_t routes dev_io calls to the handler registered for a
/// device's major number.
type Dispatch_t struct {
	mu       sync.Mutex
	handlers map[int]Handler_i
}

/// NewDispatch creates an empty dispatcher.
func NewDispatch() *Dispatch_t {
	return &Dispatch_t{handlers: make(map[int]Handler_i)}
}

/// Register wires h as the handler for major.
func (d *Dispatch_t) Register(major int, h Handler_i) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[major] = h
}

/// IO implements spec.md §4.9's dev_io(pid, dev, rw, off, buf, size,
/// eof*): pid is accepted for the TTY foreground-process-group checks
/// a real console handler performs, but is otherwise opaque to this
/// dispatcher.
func (d *Dispatch_t) IO(pid int, devid uint, rw RW_t, off int64, buf []byte) (int, bool, defs.Err_t) {
	maj, _ := defs.Unmkdev(devid)
	d.mu.Lock()
	h, ok := d.handlers[maj]
	d.mu.Unlock()
	if !ok {
		return 0, false, defs.ENODEV
	}
	return h.IO(rw, off, buf)
}
