// Package util holds small generic helpers shared across the kernel core.
// Grounded on biscuit/src/util/util.go.
package util

// Int is satisfied by all built-in integer types.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b.
func Rounddown[T Int](v, b T) T {
	return v - (v % b)
}

// Roundup aligns v up to the nearest multiple of b.
func Roundup[T Int](v, b T) T {
	return Rounddown(v+b-1, b)
}

// Ceilpow2 returns the smallest power of two >= v, and -1 if v is <= 0.
func Ceilpow2(v int) int {
	if v <= 0 {
		return -1
	}
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

// Log2 returns floor(log2(v)) for v > 0.
func Log2(v int) uint {
	if v <= 0 {
		panic("log2 of non-positive")
	}
	var n uint
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
