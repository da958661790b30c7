//go:build linux
// +build linux

package netpoll

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Make the endianness of bytes compatible with more linux OSs under different processor-architectures,
// according to http://man7.org/linux/man-pages/man2/eventfd.2.html.
var (
	u uint64 = 1
	b        = (*(*[8]byte)(unsafe.Pointer(&u)))[:]
)

// OpenEventfd creates the non-blocking counter descriptor used for wakeups.
func OpenEventfd() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return -1, os.NewSyscallError("eventfd", err)
	}
	return fd, nil
}

// WriteEventfd increments the counter by one, making fd readable.
func WriteEventfd(fd int) (err error) {
	var n int
	for n, err = unix.Write(fd, b); err == unix.EINTR; n, err = unix.Write(fd, b) {
	}
	if err != nil {
		// EAGAIN only happens when the counter is about to overflow, the fd is readable anyway.
		if err == unix.EAGAIN {
			return nil
		}
		return os.NewSyscallError("write", err)
	}
	if n != 8 {
		return os.NewSyscallError("write", unix.EIO)
	}
	return nil
}

// ReadEventfd drains the counter back to zero.
func ReadEventfd(fd int) (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		return 0, os.NewSyscallError("read", err)
	}
	if n != 8 {
		return 0, os.NewSyscallError("read", unix.EIO)
	}
	return *(*uint64)(unsafe.Pointer(&buf[0])), nil
}
