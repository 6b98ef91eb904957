package mem

import (
	"unsafe"
)

// Alignment is the allocation alignment in bytes: one cache line, and wide
// enough for AVX-512 loads.
const Alignment = 64

// AllocAligned returns a zeroed byte slice of the given size whose first
// element sits on an Alignment boundary. It returns nil for size <= 0.
func AllocAligned(size int) []byte {
	if size <= 0 {
		return nil
	}

	buf := make([]byte, size+Alignment)
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // address arithmetic for alignment
	offset := int((Alignment - (addr & (Alignment - 1))) & (Alignment - 1))

	return buf[offset : offset+size : offset+size]
}

// Uint32s reinterprets an aligned byte slice as n uint32 words.
// The slice must hold at least 4*n bytes.
func Uint32s(b []byte, n int) []uint32 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), n) //nolint:gosec // aligned reinterpretation
}

// Float32s reinterprets an aligned byte slice as n float32 values.
// The slice must hold at least 4*n bytes.
func Float32s(b []byte, n int) []float32 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n) //nolint:gosec // aligned reinterpretation
}

// Ints reinterprets an aligned byte slice as n int values.
// The slice must hold at least n*unsafe.Sizeof(int(0)) bytes.
func Ints(b []byte, n int) []int {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*int)(unsafe.Pointer(&b[0])), n) //nolint:gosec // aligned reinterpretation
}
