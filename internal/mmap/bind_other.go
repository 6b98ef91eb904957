//go:build !linux

package mmap

func osBind([]byte, int) error { return ErrBindUnsupported }
