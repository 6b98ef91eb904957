package numa

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	mpolDefault   = 0
	mpolPreferred = 1
	maxNodeBits   = 1024
)

// bindThread pins the calling thread to cpus and sets its preferred memory
// node (kernelNode < 0 restores the default policy).
func bindThread(cpus []int, kernelNode int) error {
	var set unix.CPUSet
	set.Zero()
	for _, c := range cpus {
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return err
	}
	return setPreferred(kernelNode)
}

func setPreferred(kernelNode int) error {
	if kernelNode < 0 {
		_, _, errno := unix.Syscall(unix.SYS_SET_MEMPOLICY, mpolDefault, 0, 0)
		if errno != 0 {
			return errno
		}
		return nil
	}
	var mask [maxNodeBits / 64]uint64
	mask[kernelNode/64] |= 1 << (uint(kernelNode) % 64)
	_, _, errno := unix.Syscall(unix.SYS_SET_MEMPOLICY, mpolPreferred,
		uintptr(unsafe.Pointer(&mask[0])), maxNodeBits+1)
	if errno != 0 {
		return errno
	}
	return nil
}

func probePolicy() error {
	var mode int32
	_, _, errno := unix.Syscall6(unix.SYS_GET_MEMPOLICY,
		uintptr(unsafe.Pointer(&mode)), 0, 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
