// Package diag provides the panic-time diagnostics spec.md §7 calls a
// "stack trace" and the reference implementation's arch/stack_trace.c:
// a symbolized call-stack walk plus a disassembly of the instruction
// window around the fault, so a kernel panic prints something a reader
// can act on before the system halts.
//
// Grounded on biscuit/src/caller/caller.go's Distinct_caller_t, which
// already walks runtime.Callers/CallersFrames to print a call chain;
// this package generalizes that walk into a reusable Backtrace and adds
// the two pieces caller.go has no need for: demangling (driver blobs
// linked into the kernel image may carry C++-mangled symbols) and x86
// disassembly of the faulting bytes.
package diag

import (
	"fmt"
	"runtime"

	"github.com/ianlancetaylor/demangle"
	"golang.org/x/arch/x86/x86asm"
)

/// Frame_t is one symbolized stack frame, already demangled.
type Frame_t struct {
	Function string
	File     string
	Line     int
}

func (f Frame_t) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

/// Backtrace walks the call stack starting skip frames above its own
/// caller, the way Distinct_caller_t.Distinct does, demangling each
/// frame's function name in case it names a C++ symbol from a linked
/// driver blob.
func Backtrace(skip int) []Frame_t {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	var out []Frame_t
	for {
		fr, more := frames.Next()
		out = append(out, Frame_t{
			Function: demangleName(fr.Function),
			File:     fr.File,
			Line:     fr.Line,
		})
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return out
}

// demangleName returns name's C++ demangling when it parses as one,
// and name unchanged otherwise (Go symbols never do).
func demangleName(name string) string {
	if s, err := demangle.ToString(name); err == nil {
		return s
	}
	return name
}

/// Disassemble decodes consecutive 32-bit x86 instructions out of code
/// (a byte window captured around a faulting EIP), one line per
/// instruction in GNU (AT&T-flavored) syntax, with a "(bad)" placeholder
/// for anything that fails to decode rather than aborting the dump.
func Disassemble(code []byte, pc uint64) []string {
	var out []string
	off := 0
	for off < len(code) {
		inst, err := x86asm.Decode(code[off:], 32)
		if err != nil || inst.Len == 0 {
			out = append(out, fmt.Sprintf("%#x:\t(bad)", pc+uint64(off)))
			off++
			continue
		}
		out = append(out, fmt.Sprintf("%#x:\t%s", pc+uint64(off), x86asm.GNUSyntax(inst, pc+uint64(off), nil)))
		off += inst.Len
	}
	return out
}

/// Dump renders a full panic report: the recovered value, a backtrace,
/// and (when code is non-empty) the disassembled fault window — the
/// text a caller writes to the console before halting.
func Dump(recovered interface{}, trace []Frame_t, code []byte, pc uint64) string {
	s := fmt.Sprintf("panic: %v\n", recovered)
	for _, f := range trace {
		s += fmt.Sprintf("\t%s\n", f)
	}
	for _, line := range Disassemble(code, pc) {
		s += fmt.Sprintf("\t%s\n", line)
	}
	return s
}

/// Guard runs fn, and on panic writes a Dump of it to report before
/// re-raising — the panic recovery path spec.md §7 places "at the top
/// of the syscall trampoline and the page-fault handler", so a halt is
/// always preceded by symbol names and the offending instruction. code
/// and pc may be supplied by the caller once it knows the faulting
/// instruction's address and surrounding bytes; either may be left
/// empty/zero when unavailable.
func Guard(report func(string), code []byte, pc uint64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if report != nil {
				report(Dump(r, Backtrace(3), code, pc))
			}
			panic(r)
		}
	}()
	fn()
}
