// Package arch states the contract this kernel core requires from the
// boot/PIC/IDT/GDT/device layer that spec.md §1 and §6 explicitly place out
// of scope. The core only ever talks to hardware through the CPU_i
// interface below, so the boot stub, the real port-I/O backend, and (for
// tests) an in-memory fake are all interchangeable implementations.
//
// Grounded on biscuit/src/mem/dmap.go's use of runtime.Rcr4/runtime.Cpuid
// as its own hardware contract, reshaped into an ordinary interface since
// this module does not fork the Go runtime the way the teacher does; the
// same "mockable boundary function" shape also appears in the retrieved
// gopher-os vmm.go (cpu.ReadCR2, mapTemporaryFn, flushTLBEntryFn).
package arch

/// CPU_i is the hardware contract the core depends on.
type CPU_i interface {
	// ReadCR2 returns the faulting address recorded by the last page fault.
	ReadCR2() uintptr
	// ReadCR3/WriteCR3 get/set the active page-directory physical base.
	ReadCR3() uintptr
	WriteCR3(uintptr)
	// In8/Out8 perform byte port I/O (VGA cursor ports, PIC, PIT, keyboard).
	In8(port uint16) uint8
	Out8(port uint16, v uint8)
	// DisableInts/EnableInts implement CLI/STI; IntsEnabled reports state.
	DisableInts() (wasEnabled bool)
	EnableInts()
	IntsEnabled() bool
	// InvlPG flushes a single TLB entry for the given virtual address.
	InvlPG(va uintptr)
}

/// Current holds the active CPU_i implementation. Production boot code
/// installs the real port-I/O backend; tests install Fake.
var Current CPU_i = NewFake()
