//go:build linux
// +build linux

package netpoll

import (
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MinTimerDelay is the smallest relative delay a timerfd is armed with.
const MinTimerDelay = 100 * time.Microsecond

// OpenTimerfd creates a monotonic, non-blocking timer descriptor.
func OpenTimerfd() (int, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return -1, os.NewSyscallError("timerfd_create", err)
	}
	return fd, nil
}

// ResetTimerfd arms fd to expire once after d, clamped to MinTimerDelay.
func ResetTimerfd(fd int, d time.Duration) error {
	if d < MinTimerDelay {
		d = MinTimerDelay
	}
	its := unix.ItimerSpec{Value: unix.NsecToTimespec(int64(d))}
	return os.NewSyscallError("timerfd_settime", unix.TimerfdSettime(fd, 0, &its, nil))
}

// DisarmTimerfd stops fd from firing.
func DisarmTimerfd(fd int) error {
	var its unix.ItimerSpec
	return os.NewSyscallError("timerfd_settime", unix.TimerfdSettime(fd, 0, &its, nil))
}

// ReadTimerfd consumes the expiration count so the fd stops being readable.
func ReadTimerfd(fd int) (uint64, error) {
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
