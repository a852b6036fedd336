package vm

import (
	"fmt"

	"beeos/internal/defs"
	"beeos/internal/mem"

	"golang.org/x/sync/singleflight"
)

/// DirObserver_i is how the scheduler's task ring is consulted for
/// kernel-mapping propagation without internal/vm importing internal/proc
/// (the §9 redesign's "propagation as an observer list" rather than a
/// raw task-ring walk baked into this package).
type DirObserver_i interface {
	/// Dirs reports the directory frame of every live task, so the new
	/// kernel PDE can be copied into each; PageFault skips the frame that
	/// is currently loaded.
	Dirs() []int
}

// sfGroup collapses duplicate concurrent faults on the same directory's
// same page into one resolution, per spec.md's note that two threads can
// simultaneously fault on the same page.
var sfGroup singleflight.Group

/// PageFault services the fault at CR2: a kernel-half address grows the
/// mapping from the LOW zone and propagates the new PDE into every other
/// task's directory; a user-half address grows it from the HIGH zone
/// (implicit stack/heap growth — spec.md §9 keeps this unconditional,
/// no legal-region check, until SIGSEGV support lands).
func (vm *VM_t) PageFault(obs DirObserver_i) defs.Err_t {
	virt := vm.cpu.ReadCR2()
	pageVirt := virt &^ uintptr(mem.PGSIZE-1)
	key := fmt.Sprintf("%d:%d", vm.CurrentDir(), pageVirt)

	v, _, _ := sfGroup.Do(key, func() (interface{}, error) {
		return vm.doFault(pageVirt, obs), nil
	})
	return v.(defs.Err_t)
}

func (vm *VM_t) doFault(pageVirt uintptr, obs DirObserver_i) defs.Err_t {
	if pageVirt >= KVBASE {
		frame, err := vm.zones.Alloc(mem.ZONE_LOW, 0)
		if err != 0 {
			panic("vm: out of memory servicing kernel fault")
		}
		if _, err := vm.PageMap(pageVirt, framePa(frame)); err != 0 {
			panic("vm: page_map failed servicing kernel fault")
		}

		curBytes := vm.zones.Frame(vm.CurrentDir())
		pdi := pdIndex(pageVirt)
		entry := readEntry(curBytes, pdi)
		for _, dir := range obs.Dirs() {
			if dir == vm.CurrentDir() {
				continue
			}
			vm.withScratch(dir, func(foreignBytes []byte) {
				writeEntry(foreignBytes, pdi, entry)
			})
		}
		return 0
	}

	frame, err := vm.zones.Alloc(mem.ZONE_HIGH, 0)
	if err != 0 {
		panic("vm: out of memory servicing user fault")
	}
	if _, err := vm.PageMap(pageVirt, framePa(frame)); err != 0 {
		panic("vm: page_map failed servicing user fault")
	}
	return 0
}
