package proc

import (
	"encoding/binary"
	"io"

	"beeos/internal/defs"
	"beeos/internal/elf"
	"beeos/internal/mem"
	"beeos/internal/sig"
	"beeos/internal/vm"
)

/// ustackTop is the user-visible top of the address space: the argv/
/// envp staging page execve installs sits just below it, and the
/// initial ESP points here minus the staged arg buffer's length.
const ustackTop = vm.KVBASE

/// TrapFrame_t is the minimal return-to-user register state this port
/// models; a real interrupt-return path would restore a whole pusha
/// frame, but the arch boundary (spec.md §1's "boot/trampoline
/// assembly... explicitly out of scope") owns the rest.
type TrapFrame_t struct {
	Eip uintptr
	Esp uintptr
}

/// Executable_i is what execve needs from an opened file: random-access
/// reads, for both internal/elf.Parse and segment population.
/// internal/vfs.File_t satisfies this directly.
type Executable_i interface {
	io.ReaderAt
}

/// Execve replaces idx's image with the ELF32 executable exe, per
/// spec.md §4.5: validate and parse the ELF header, build a fresh
/// kernel-half-only address space, map and populate every PT_LOAD
/// segment, stage argv/envp below the top of the user address range,
/// install the new brk, reset non-ignored signal dispositions to
/// SIG_DFL (POSIX execve semantics), and discard the old address
/// space. Returns the trap frame a caller should resume the task with.
func (tt *TaskTable_t) Execve(idx int, exe Executable_i, argv, envp []string) (TrapFrame_t, defs.Err_t) {
	img, err := elf.Parse(exe)
	if err != 0 {
		return TrapFrame_t{}, err
	}

	argBuf, argSlots, headerLen, err := stageArgs(argv, envp)
	if err != 0 {
		return TrapFrame_t{}, err
	}
	argTop := uintptr(len(argBuf))

	tt.mu.Lock()
	defer tt.mu.Unlock()

	t := tt.arena.Get(idx)
	oldDir := t.DirPhys

	newDir, err := tt.vm.PageDirDup(false)
	if err != 0 {
		return TrapFrame_t{}, err
	}

	tt.vm.PageDirSwitch(newDir)
	if loadErr := loadSegments(tt.vm, img, exe); loadErr != 0 {
		tt.vm.PageDirSwitch(oldDir)
		tt.vm.PageDirDel(newDir)
		return TrapFrame_t{}, loadErr
	}

	stackPa, err := tt.vm.PageMap(ustackTop-uintptr(mem.PGSIZE), vm.ANY)
	if err != 0 {
		tt.vm.PageDirSwitch(oldDir)
		tt.vm.PageDirDel(newDir)
		return TrapFrame_t{}, err
	}
	argBase := ustackTop - argTop
	patchArgPointers(argBuf, argSlots, argBase, headerLen)
	copy(tt.vm.FrameBytes(stackPa)[uintptr(mem.PGSIZE)-argTop:], argBuf)

	// newDir stays loaded: PageDirDel only needs a scratch window onto
	// oldDir, not for oldDir to be the active directory.
	tt.vm.PageDirDel(oldDir)

	t = tt.arena.Get(idx)
	t.DirPhys = newDir
	t.Brk = img.BrkFromSegments()
	for s := 1; s < defs.NSIG; s++ {
		if t.Actions[s].Handler != defs.SIG_IGN {
			t.Actions[s] = sig.Sigaction_t{}
		}
	}

	frame := TrapFrame_t{Eip: img.Entry, Esp: ustackTop - argTop}
	return frame, 0
}

// loadSegments maps and populates every PT_LOAD segment of img into
// whichever directory is currently loaded (the caller has already
// switched CR3 to the fresh one), zeroing the Memsz-Filesz tail (bss).
func loadSegments(v *vm.VM_t, img *elf.Image_t, exe Executable_i) defs.Err_t {
	for _, seg := range img.Segments {
		first := seg.Vaddr &^ (uintptr(mem.PGSIZE) - 1)
		last := (seg.Vaddr + uintptr(seg.Memsz) + uintptr(mem.PGSIZE) - 1) &^ (uintptr(mem.PGSIZE) - 1)
		for page := first; page < last; page += uintptr(mem.PGSIZE) {
			pa, err := v.PageMap(page, vm.ANY)
			if err != 0 {
				return err
			}
			zero(v.FrameBytes(pa))
		}

		remaining := seg.Filesz
		fileOff := seg.Off
		dst := seg.Vaddr
		for remaining > 0 {
			pageOff := dst &^ (uintptr(mem.PGSIZE) - 1)
			within := dst - pageOff
			n := uint64(mem.PGSIZE) - uint64(within)
			if n > remaining {
				n = remaining
			}
			buf := make([]byte, n)
			if _, rerr := exe.ReadAt(buf, fileOff); rerr != nil && rerr != io.EOF {
				return -defs.EIO
			}
			pa, ok := v.Translate(pageOff)
			if !ok {
				return -defs.EFAULT
			}
			copy(v.FrameBytes(pa)[within:], buf)
			remaining -= n
			fileOff += int64(n)
			dst += uintptr(n)
		}
	}
	return 0
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// strSlot records where one argv/envp string's pointer entry lives in
// the header (slot, in 4-byte units) and where its NUL-terminated
// bytes start in the body (bodyOff, in bytes from the body's start).
type strSlot struct {
	slot    int
	bodyOff uintptr
}

// stageArgs packs argv and envp into a single ARG_MAX-bounded buffer
// laid out as argc, an argv pointer array, a NULL, an envp pointer
// array, a NULL, then the packed NUL-terminated strings themselves —
// the classic C runtime entry layout spec.md §6 assumes ("Arg/env
// area is limited to ARG_MAX"). Pointer slots are left zero here and
// patched to their final user-virtual address by patchArgPointers
// once the buffer's eventual base address is known.
func stageArgs(argv, envp []string) (buf []byte, slots []strSlot, headerLen int, err defs.Err_t) {
	headerWords := 1 + len(argv) + 1 + len(envp) + 1
	headerLen = 4 * headerWords
	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(argv)))

	var body []byte
	slot := 1
	for _, s := range argv {
		slots = append(slots, strSlot{slot, uintptr(len(body))})
		body = append(body, s...)
		body = append(body, 0)
		slot++
	}
	slot++ // argv NULL terminator stays zero
	for _, s := range envp {
		slots = append(slots, strSlot{slot, uintptr(len(body))})
		body = append(body, s...)
		body = append(body, 0)
		slot++
	}

	buf = append(header, body...)
	if len(buf) > defs.ARG_MAX {
		return nil, nil, 0, -defs.ENAMETOOLONG
	}
	return buf, slots, headerLen, 0
}

// patchArgPointers rewrites buf's pointer slots to absolute user
// addresses now that base (the virtual address buf[0] will occupy) is
// known.
func patchArgPointers(buf []byte, slots []strSlot, base uintptr, headerLen int) {
	for _, s := range slots {
		addr := base + uintptr(headerLen) + s.bodyOff
		binary.LittleEndian.PutUint32(buf[4*s.slot:], uint32(addr))
	}
}
