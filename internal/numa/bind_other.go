//go:build !linux

package numa

func bindThread([]int, int) error { return ErrUnavailable }

func probePolicy() error { return ErrUnavailable }
