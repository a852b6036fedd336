// Package vm implements the recursive-mapping, 2-level, 32-bit page
// directory scheme of spec.md §4.4: page_map/page_unmap/page_dir_dup/
// page_dir_del/page_dir_switch and the page-fault handler.
//
// Grounded on biscuit/src/vm/as.go's Vm_t (Lock_pmap/Unlock_pmap method
// names, Page_insert/Page_remove/Pgfault shapes), generalized from that
// teacher's 4-level PML4 walk down to the spec's 2-level, single
// directory-plus-tables layout with a recursive self-map. There is no
// real MMU underneath this port: a page directory or table "frame" is
// just a mem.ZoneChain_t-backed byte window this package addresses
// directly, and the recursive self-map/scratch slot are maintained as
// literal PDE values for the sake of the invariants spec.md §8 tests,
// not because Go code needs them to reach the bytes.
package vm

import (
	"encoding/binary"
	"sync"

	"beeos/internal/arch"
	"beeos/internal/defs"
	"beeos/internal/mem"
)

const (
	ENTRIES     = 1024          /// PDEs/PTEs per directory or table
	PDE_SCRATCH = 1022          /// second recursion slot, foreign-directory access
	PDE_SELF    = 1023          /// recursive self-map slot
	KVBASE      = 0xC0000000    /// kernel/user split: PDE 768
	kvbasePDE   = KVBASE >> 22  /// = 768
	wildVirt    = 0xFFBFF000    /// reserved bounce-page slot (just below PDE_SELF's window)
	scratchVirt = 0xFFAFF000    /// reserved window onto the PDE_SCRATCH mapping
)

const (
	PTE_P uint32 = 1 << 0 /// present
	PTE_W uint32 = 1 << 1 /// writable
	PTE_U uint32 = 1 << 2 /// user-accessible
)

/// ANY requests page_map allocate a fresh frame instead of mapping a
/// caller-supplied physical address.
const ANY = mem.Pa_t(^uintptr(0))

func pdIndex(virt uintptr) int { return int(virt>>22) & (ENTRIES - 1) }
func ptIndex(virt uintptr) int { return int(virt>>12) & (ENTRIES - 1) }

func readEntry(b []byte, idx int) uint32 {
	return binary.LittleEndian.Uint32(b[idx*4:])
}

func writeEntry(b []byte, idx int, v uint32) {
	binary.LittleEndian.PutUint32(b[idx*4:], v)
}

func frameOf(entry uint32) int   { return int(entry >> 12) }
func present(entry uint32) bool  { return entry&PTE_P != 0 }
func writable(entry uint32) bool { return entry&PTE_W != 0 }

func mkEntry(frame int, flags uint32) uint32 {
	return uint32(frame<<12) | flags
}

func framePa(frame int) mem.Pa_t { return mem.Pa_t(frame) << mem.PGSHIFT }
func paFrame(pa mem.Pa_t) int    { return int(pa >> mem.PGSHIFT) }

// window_t serializes access through the scratch recursion slot: only
// one foreign directory may be visited at a time, matching the §9
// redesign note ("explicit page-table-window accessor forbidding
// concurrent scratch-slot use").
type window_t struct {
	sync.Mutex
}

/// VM_t is the paging subsystem for one kernel instance: all address
/// spaces share the same zone chain and CPU, differing only by which
/// directory frame is loaded into CR3.
type VM_t struct {
	zones   *mem.ZoneChain_t
	cpu     arch.CPU_i
	scratch window_t
	wild    sync.Mutex
}

/// New creates a paging subsystem drawing table and data frames from
/// zones, using cpu for CR2/CR3/TLB access.
func New(zones *mem.ZoneChain_t, cpu arch.CPU_i) *VM_t {
	return &VM_t{zones: zones, cpu: cpu}
}

/// CurrentDir returns the absolute frame number of the loaded directory.
func (vm *VM_t) CurrentDir() int {
	return paFrame(mem.Pa_t(vm.cpu.ReadCR3()))
}

/// FrameBytes exposes the backing bytes of the frame at pa, for callers
/// (execve's segment loader, in particular) that need to populate a
/// page's contents right after PageMap hands back its physical address.
func (vm *VM_t) FrameBytes(pa mem.Pa_t) []byte {
	return vm.zones.Frame(paFrame(pa))
}

/// Translate resolves virt's already-present mapping in the currently
/// loaded directory to its physical frame address, without the
/// already-mapped panic PageMap raises — execve's segment loader uses
/// this to revisit a page it mapped earlier in the same PT_LOAD range.
func (vm *VM_t) Translate(virt uintptr) (mem.Pa_t, bool) {
	dirBytes := vm.zones.Frame(vm.CurrentDir())
	pdi, pti := pdIndex(virt), ptIndex(virt)

	pde := readEntry(dirBytes, pdi)
	if !present(pde) {
		return 0, false
	}
	tableBytes := vm.zones.Frame(frameOf(pde))
	pte := readEntry(tableBytes, pti)
	if !present(pte) {
		return 0, false
	}
	return framePa(frameOf(pte)), true
}

/// InitialDir builds the boot directory: kernel identity-mapped at both
/// 0 and KVBASE for its first 4 MiB (the boot contract spec.md §6
/// describes), plus its own recursive self-map at PDE_SELF.
func (vm *VM_t) InitialDir() (mem.Pa_t, defs.Err_t) {
	dirFrame, err := vm.zones.Alloc(mem.ZONE_LOW, 0)
	if err != 0 {
		return 0, err
	}
	dirBytes := vm.zones.Frame(dirFrame)
	zero(dirBytes)

	tableFrame, err := vm.zones.Alloc(mem.ZONE_LOW, 0)
	if err != 0 {
		return 0, err
	}
	tableBytes := vm.zones.Frame(tableFrame)
	zero(tableBytes)
	for i := 0; i < ENTRIES; i++ {
		writeEntry(tableBytes, i, mkEntry(i, PTE_P|PTE_W))
	}
	writeEntry(dirBytes, 0, mkEntry(tableFrame, PTE_P|PTE_W))
	writeEntry(dirBytes, kvbasePDE, mkEntry(tableFrame, PTE_P|PTE_W))
	writeEntry(dirBytes, PDE_SELF, mkEntry(dirFrame, PTE_P|PTE_W))
	return framePa(dirFrame), 0
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

/// PageMap maps virt to phys (or a freshly allocated HIGH-zone frame
/// when phys == ANY), allocating a page table from the LOW zone if the
/// covering 4 MiB range has none yet, per spec.md §4.4.
func (vm *VM_t) PageMap(virt uintptr, phys mem.Pa_t) (mem.Pa_t, defs.Err_t) {
	dirBytes := vm.zones.Frame(vm.CurrentDir())
	pdi, pti := pdIndex(virt), ptIndex(virt)

	pde := readEntry(dirBytes, pdi)
	var tableFrame int
	if !present(pde) {
		var err defs.Err_t
		tableFrame, err = vm.zones.Alloc(mem.ZONE_LOW, 0)
		if err != 0 {
			return 0, err
		}
		zero(vm.zones.Frame(tableFrame))
		flags := PTE_P | PTE_W
		if virt < KVBASE {
			flags |= PTE_U
		}
		writeEntry(dirBytes, pdi, mkEntry(tableFrame, flags))
	} else {
		tableFrame = frameOf(pde)
	}

	tableBytes := vm.zones.Frame(tableFrame)
	pte := readEntry(tableBytes, pti)
	if present(pte) {
		if writable(pte) {
			panic("vm: page_map of an already mapped (writable) page")
		}
		panic("vm: page_map of a read-only mapping (cow not supported)")
	}

	var frameNo int
	if phys == ANY {
		var err defs.Err_t
		frameNo, err = vm.zones.Alloc(mem.ZONE_HIGH, 0)
		if err != 0 {
			return 0, err
		}
	} else {
		frameNo = paFrame(phys)
	}

	flags := PTE_P | PTE_W
	if virt < KVBASE {
		flags |= PTE_U
	}
	writeEntry(tableBytes, pti, mkEntry(frameNo, flags))
	vm.cpu.InvlPG(virt)
	return framePa(frameNo), 0
}

/// PageUnmap clears virt's mapping, freeing the frame unless retain is
/// set, and reclaims the owning table once it holds no present entries.
func (vm *VM_t) PageUnmap(virt uintptr, retain bool) {
	dirBytes := vm.zones.Frame(vm.CurrentDir())
	pdi, pti := pdIndex(virt), ptIndex(virt)

	pde := readEntry(dirBytes, pdi)
	if !present(pde) {
		panic("vm: page_unmap of unmapped range")
	}
	tableFrame := frameOf(pde)
	tableBytes := vm.zones.Frame(tableFrame)
	pte := readEntry(tableBytes, pti)
	if !present(pte) {
		panic("vm: page_unmap of unmapped page")
	}

	if !retain {
		vm.zones.Free(frameOf(pte), 0)
	}
	writeEntry(tableBytes, pti, 0)

	empty := true
	for i := 0; i < ENTRIES; i++ {
		if present(readEntry(tableBytes, i)) {
			empty = false
			break
		}
	}
	if empty {
		vm.zones.Free(tableFrame, 0)
		writeEntry(dirBytes, pdi, 0)
	}
	vm.cpu.InvlPG(virt)
}
