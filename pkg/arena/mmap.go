//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package arena

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func allocate[T Real](n int) ([]T, func() error, bool, error) {
	var zero T
	size := n * int(unsafe.Sizeof(zero))

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, false, err
	}

	data := unsafe.Slice((*T)(unsafe.Pointer(&mem[0])), n)
	return data, func() error { return unix.Munmap(mem) }, true, nil
}
