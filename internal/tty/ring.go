// Package tty implements the canonical-mode line discipline of
// spec.md §4.9: a per-console input ring, line assembly with
// backspace/echo handling, multi-console switching, and a dirty
// screen backbuffer a periodic timer flushes to the framebuffer.
//
// Grounded on biscuit/src/circbuf/circbuf.go's head/tail-as-ever-
// increasing-counters ring design (Full/Empty/Used computed from the
// raw counter difference, indices taken mod bufsz only when touching
// the backing array) — simplified here since this port has no
// userspace-copy (Uioread/Uiowrite) plumbing to thread through.
package tty

/// Ring_t is a fixed-capacity byte ring, head/tail as ever-increasing
/// counters per the teacher's circbuf convention.
type Ring_t struct {
	buf  []byte
	head int
	tail int
}

/// NewRing allocates a ring of the given capacity.
func NewRing(size int) *Ring_t {
	return &Ring_t{buf: make([]byte, size)}
}

func (r *Ring_t) Full() bool  { return r.head-r.tail == len(r.buf) }
func (r *Ring_t) Empty() bool { return r.head == r.tail }
func (r *Ring_t) Used() int   { return r.head - r.tail }
func (r *Ring_t) Left() int   { return len(r.buf) - r.Used() }

/// PutByte appends one byte, reporting false if the ring is full.
func (r *Ring_t) PutByte(b byte) bool {
	if r.Full() {
		return false
	}
	r.buf[r.head%len(r.buf)] = b
	r.head++
	return true
}

/// GetByte removes and returns the oldest byte, reporting false if
/// empty.
func (r *Ring_t) GetByte() (byte, bool) {
	if r.Empty() {
		return 0, false
	}
	b := r.buf[r.tail%len(r.buf)]
	r.tail++
	return b, true
}

/// DropLast removes the most recently written byte (backspace),
/// reporting false if the ring is already empty.
func (r *Ring_t) DropLast() bool {
	if r.Empty() {
		return false
	}
	r.head--
	return true
}
