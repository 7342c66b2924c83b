//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// node is an open V4L2 device descriptor.
type node int

// openNode opens a device node for queries. O_NONBLOCK keeps a busy
// camera from stalling enumeration.
func openNode(path string) (node, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return node(fd), nil
}

// withNode opens path for the duration of fn.
func withNode(path string, fn func(node) error) error {
	n, err := openNode(path)
	if err != nil {
		return err
	}
	defer n.close()
	return fn(n)
}

func (n node) close() {
	_ = unix.Close(int(n))
}

// ioctl issues req, retrying when a signal interrupts the call.
func (n node) ioctl(req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(n), req, uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errno != unix.EINTR {
			return errno
		}
	}
}

// walk issues an enumeration request with index 0, 1, 2... until the driver
// answers EINVAL or visit returns false.
func (n node) walk(req uintptr, arg unsafe.Pointer, index *uint32, visit func() bool) error {
	for i := uint32(0); ; i++ {
		*index = i
		err := n.ioctl(req, arg)
		if errors.Is(err, unix.EINVAL) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		if !visit() {
			return nil
		}
	}
}
