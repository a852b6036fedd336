package arch

import "sync"

// Fake is an in-memory stand-in for CPU_i, used by tests that cannot run
// on real hardware. It keeps CR2/CR3 and port state in plain fields.
type Fake struct {
	mu      sync.Mutex
	cr2     uintptr
	cr3     uintptr
	ports   [1 << 16]uint8
	intsOn  bool
	invals  []uintptr
}

func NewFake() *Fake {
	return &Fake{intsOn: true}
}

func (f *Fake) ReadCR2() uintptr { return f.cr2 }
func (f *Fake) ReadCR3() uintptr { return f.cr3 }
func (f *Fake) WriteCR3(v uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cr3 = v
}

func (f *Fake) In8(port uint16) uint8 {
	return f.ports[port]
}

func (f *Fake) Out8(port uint16, v uint8) {
	f.ports[port] = v
}

func (f *Fake) DisableInts() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.intsOn
	f.intsOn = false
	return was
}

func (f *Fake) EnableInts() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intsOn = true
}

func (f *Fake) IntsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intsOn
}

func (f *Fake) InvlPG(va uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invals = append(f.invals, va)
}

// SetCR2 lets fault-handler tests inject a faulting address.
func (f *Fake) SetCR2(v uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cr2 = v
}

// Invalidations returns the recorded InvlPG history, for assertions.
func (f *Fake) Invalidations() []uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uintptr(nil), f.invals...)
}
