package vm

import (
	"beeos/internal/defs"
	"beeos/internal/mem"
)

// withScratch visits a foreign directory frame through PDE_SCRATCH,
// exactly as spec.md §4.4 describes for page_dir_dup/page_dir_del: the
// slot is installed on the *currently loaded* directory, flushed,
// handed to fn, then torn down. The window_t mutex forbids a second
// concurrent visit from stepping on the same slot.
func (vm *VM_t) withScratch(foreignFrame int, fn func(foreignBytes []byte)) {
	vm.scratch.Lock()
	defer vm.scratch.Unlock()

	curBytes := vm.zones.Frame(vm.CurrentDir())
	writeEntry(curBytes, PDE_SCRATCH, mkEntry(foreignFrame, PTE_P|PTE_W))
	vm.cpu.InvlPG(scratchVirt)

	fn(vm.zones.Frame(foreignFrame))

	writeEntry(curBytes, PDE_SCRATCH, 0)
	vm.cpu.InvlPG(scratchVirt)
}

// wildCopy deep-copies one data frame's contents to another via the
// reserved "wild" bounce slot, serialized so only one deep copy is ever
// in flight, mirroring spec.md §4.4's "physical → temporarily mapped
// virtual → memcpy → unmap with retain".
func (vm *VM_t) wildCopy(dst, src int) {
	vm.wild.Lock()
	defer vm.wild.Unlock()
	vm.cpu.InvlPG(wildVirt)
	copy(vm.zones.Frame(dst), vm.zones.Frame(src))
	vm.cpu.InvlPG(wildVirt)
}

/// PageDirDup allocates a new directory, copies the kernel-half PDEs
/// (768..1021) from the current directory, installs its own recursive
/// self-map, and — when dupUser is set — deep-copies every present user
/// mapping into freshly allocated tables and frames. Only user-half PDEs
/// carrying PTE_U count as user mappings; supervisor-only ones such as
/// the boot identity map at PDE 0 are not copied.
func (vm *VM_t) PageDirDup(dupUser bool) (mem.Pa_t, defs.Err_t) {
	newFrame, err := vm.zones.Alloc(mem.ZONE_LOW, 0)
	if err != 0 {
		return 0, err
	}

	curFrame := vm.CurrentDir()
	curBytes := vm.zones.Frame(curFrame)

	vm.withScratch(newFrame, func(newBytes []byte) {
		zero(newBytes)
		for pdi := kvbasePDE; pdi < PDE_SCRATCH; pdi++ {
			writeEntry(newBytes, pdi, readEntry(curBytes, pdi))
		}
		writeEntry(newBytes, PDE_SELF, mkEntry(newFrame, PTE_P|PTE_W))
	})

	if dupUser {
		for pdi := 0; pdi < kvbasePDE; pdi++ {
			pde := readEntry(curBytes, pdi)
			if !present(pde) || pde&PTE_U == 0 {
				continue
			}
			oldTableFrame := frameOf(pde)
			oldTableBytes := vm.zones.Frame(oldTableFrame)

			newTableFrame, err := vm.zones.Alloc(mem.ZONE_LOW, 0)
			if err != 0 {
				vm.PageDirDel(framePa(newFrame))
				return 0, err
			}
			newTableBytes := vm.zones.Frame(newTableFrame)
			zero(newTableBytes)

			for pti := 0; pti < ENTRIES; pti++ {
				pte := readEntry(oldTableBytes, pti)
				if !present(pte) {
					continue
				}
				oldDataFrame := frameOf(pte)
				newDataFrame, err := vm.zones.Alloc(mem.ZONE_HIGH, 0)
				if err != 0 {
					vm.PageDirDel(framePa(newFrame))
					return 0, err
				}
				vm.wildCopy(newDataFrame, oldDataFrame)
				writeEntry(newTableBytes, pti, mkEntry(newDataFrame, pte&0xfff))
			}

			vm.withScratch(newFrame, func(newBytes []byte) {
				writeEntry(newBytes, pdi, mkEntry(newTableFrame, pde&0xfff))
			})
		}
	}

	return framePa(newFrame), 0
}

/// PageDirDel frees every present user page and page table reachable
/// from phys (user-half PDEs carrying PTE_U), then the directory frame
/// itself. The directory need not be (and usually is not) the currently
/// loaded one.
func (vm *VM_t) PageDirDel(phys mem.Pa_t) {
	dirFrame := paFrame(phys)
	var tableFrames []int
	var dataFrames []int

	vm.withScratch(dirFrame, func(dirBytes []byte) {
		for pdi := 0; pdi < kvbasePDE; pdi++ {
			pde := readEntry(dirBytes, pdi)
			if !present(pde) || pde&PTE_U == 0 {
				continue
			}
			tableFrame := frameOf(pde)
			tableFrames = append(tableFrames, tableFrame)
			tableBytes := vm.zones.Frame(tableFrame)
			for pti := 0; pti < ENTRIES; pti++ {
				pte := readEntry(tableBytes, pti)
				if present(pte) {
					dataFrames = append(dataFrames, frameOf(pte))
				}
			}
		}
	})

	for _, f := range dataFrames {
		vm.zones.Free(f, 0)
	}
	for _, f := range tableFrames {
		vm.zones.Free(f, 0)
	}
	vm.zones.Free(dirFrame, 0)
}

/// PageDirSwitch loads phys into CR3.
func (vm *VM_t) PageDirSwitch(phys mem.Pa_t) {
	vm.cpu.WriteCR3(uintptr(phys))
}
