package diag

import (
	"strings"
	"testing"
)

func TestBacktraceIncludesCallingFunction(t *testing.T) {
	frames := Backtrace(0)
	if len(frames) == 0 {
		t.Fatal("Backtrace returned no frames")
	}
	found := false
	for _, f := range frames {
		if strings.Contains(f.Function, "TestBacktraceIncludesCallingFunction") {
			found = true
		}
	}
	if !found {
		t.Fatalf("Backtrace frames = %v, want one naming the test function", frames)
	}
}

func TestFrameStringIncludesFileAndLine(t *testing.T) {
	f := Frame_t{Function: "beeos/internal/diag.Backtrace", File: "diag.go", Line: 42}
	s := f.String()
	if !strings.Contains(s, "diag.go:42") {
		t.Fatalf("Frame_t.String() = %q, want it to contain %q", s, "diag.go:42")
	}
}

func TestDemangleNamePassesThroughOrdinaryGoSymbolsUnchanged(t *testing.T) {
	got := demangleName("beeos/internal/diag.Backtrace")
	if got != "beeos/internal/diag.Backtrace" {
		t.Fatalf("demangleName(plain Go symbol) = %q, want it unchanged", got)
	}
}

func TestDemangleNameDecodesItaniumMangledSymbol(t *testing.T) {
	// _Znwm is the Itanium mangling of "operator new(unsigned long)",
	// the sort of symbol a C++ driver blob linked into the image carries.
	got := demangleName("_Znwm")
	if got == "_Znwm" {
		t.Fatal("demangleName did not demangle a known Itanium symbol")
	}
	if !strings.Contains(got, "operator new") {
		t.Fatalf("demangleName(_Znwm) = %q, want it to mention operator new", got)
	}
}

func TestDisassembleDecodesKnownInstructionBytes(t *testing.T) {
	// 0x90 is NOP; 0xc3 is RET. Both are unambiguous across x86 modes.
	lines := Disassemble([]byte{0x90, 0xc3}, 0x1000)
	if len(lines) != 2 {
		t.Fatalf("Disassemble returned %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "nop") {
		t.Fatalf("line 0 = %q, want it to mention nop", lines[0])
	}
	if !strings.Contains(lines[1], "ret") {
		t.Fatalf("line 1 = %q, want it to mention ret", lines[1])
	}
}

func TestDisassembleEmitsBadPlaceholderForUndecodableBytes(t *testing.T) {
	lines := Disassemble([]byte{0x0f, 0xff}, 0x2000)
	if len(lines) == 0 {
		t.Fatal("Disassemble returned no lines for undecodable input")
	}
	if !strings.Contains(lines[0], "(bad)") {
		t.Fatalf("line = %q, want it to contain (bad)", lines[0])
	}
}

func TestDumpIncludesPanicValueTraceAndDisassembly(t *testing.T) {
	out := Dump("divide by zero", []Frame_t{{Function: "f", File: "f.go", Line: 1}}, []byte{0xc3}, 0x3000)
	if !strings.Contains(out, "panic: divide by zero") {
		t.Fatalf("Dump missing panic line: %q", out)
	}
	if !strings.Contains(out, "f (f.go:1)") {
		t.Fatalf("Dump missing frame: %q", out)
	}
	if !strings.Contains(out, "ret") {
		t.Fatalf("Dump missing disassembly: %q", out)
	}
}

func TestGuardReportsBeforeRePanicking(t *testing.T) {
	var reported string
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Guard should re-panic after reporting")
		}
		if !strings.Contains(reported, "panic: boom") {
			t.Fatalf("report = %q, want it to mention the panic value", reported)
		}
	}()
	Guard(func(s string) { reported = s }, nil, 0, func() {
		panic("boom")
	})
}
