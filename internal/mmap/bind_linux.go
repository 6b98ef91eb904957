package mmap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	mpolBind    = 2
	mpolMFMove  = 1 << 1
	maxNodeBits = 1024
)

func osBind(data []byte, node int) error {
	if node < 0 || node >= maxNodeBits {
		return ErrInvalidNode
	}
	var mask [maxNodeBits / 64]uint64
	mask[node/64] |= 1 << (uint(node) % 64)

	_, _, errno := unix.Syscall6(unix.SYS_MBIND,
		uintptr(unsafe.Pointer(&data[0])),
		uintptr(len(data)),
		mpolBind,
		uintptr(unsafe.Pointer(&mask[0])),
		maxNodeBits+1,
		mpolMFMove,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
