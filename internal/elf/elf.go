// Package elf loads the ELF32 program headers execve needs: spec.md
// §4.5's "reads the ELF header, validates magic... walks ELF program
// headers (LOAD type only)" and §6's "must be ELF32 little-endian;
// only PT_LOAD program headers are honored."
//
// Grounded directly on the teacher's own
// biscuit/src/kernel/chentry.go, which parses and rewrites ELF images
// with the standard library's debug/elf rather than hand-rolled
// header parsing — chkELF's {Ident[0:4]=="\x7fELF", ELFDATA2LSB,
// ET_EXEC} checks are the same shape this package runs, adjusted from
// chentry's EM_X86_64 64-bit check to this kernel's 32-bit target.
package elf

import (
	"debug/elf"
	"io"

	"beeos/internal/defs"
)

/// Segment_t is one PT_LOAD program header, reduced to what execve
/// needs to map and populate a segment.
type Segment_t struct {
	Vaddr  uintptr
	Off    int64
	Filesz uint64
	Memsz  uint64
	Write  bool
	Exec   bool
}

/// Image_t is a validated, parsed executable ready for execve to map.
type Image_t struct {
	Entry    uintptr
	Segments []Segment_t
}

/// Parse validates and extracts the PT_LOAD segments of an ELF32
/// little-endian executable. Non-ELF32, big-endian, or non-ET_EXEC
/// input is rejected with -ENOEXEC, mirroring chkELF's fatal checks.
func Parse(r io.ReaderAt) (*Image_t, defs.Err_t) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, defs.ENOEXEC
	}
	if ef.Class != elf.ELFCLASS32 {
		return nil, defs.ENOEXEC
	}
	if ef.Data != elf.ELFDATA2LSB {
		return nil, defs.ENOEXEC
	}
	if ef.Type != elf.ET_EXEC {
		return nil, defs.ENOEXEC
	}

	img := &Image_t{Entry: uintptr(ef.Entry)}
	for _, p := range ef.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		img.Segments = append(img.Segments, Segment_t{
			Vaddr:  uintptr(p.Vaddr),
			Off:    int64(p.Off),
			Filesz: p.Filesz,
			Memsz:  p.Memsz,
			Write:  p.Flags&elf.PF_W != 0,
			Exec:   p.Flags&elf.PF_X != 0,
		})
	}
	return img, 0
}

/// BrkFromSegments returns the highest address of any writable
/// segment's mapped extent, the value execve installs as the task's
/// initial brk (spec.md §4.5).
func (img *Image_t) BrkFromSegments() uintptr {
	var brk uintptr
	for _, s := range img.Segments {
		if !s.Write {
			continue
		}
		end := s.Vaddr + uintptr(s.Memsz)
		if end > brk {
			brk = end
		}
	}
	return brk
}
