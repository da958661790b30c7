//go:build linux
// +build linux

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

const (
	// InitPollEventsCap is the initial size of the epoll result array.
	InitPollEventsCap = 16

	ReadEvents  = unix.EPOLLIN | unix.EPOLLPRI
	WriteEvents = unix.EPOLLOUT
	NoneEvents  = 0
)

// OpenEpoll creates a close-on-exec epoll instance.
func OpenEpoll() (int, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return -1, os.NewSyscallError("epoll_create1", err)
	}
	return fd, nil
}

// EpollCtl applies one registration change, op is one of unix.EPOLL_CTL_*.
func EpollCtl(epfd, op, fd int, events uint32) error {
	var ev *unix.EpollEvent
	if op != unix.EPOLL_CTL_DEL {
		ev = &unix.EpollEvent{Events: events, Fd: int32(fd)}
	}
	return os.NewSyscallError(ctlName(op), unix.EpollCtl(epfd, op, fd, ev))
}

func ctlName(op int) string {
	switch op {
	case unix.EPOLL_CTL_ADD:
		return "epoll_ctl add"
	case unix.EPOLL_CTL_MOD:
		return "epoll_ctl mod"
	default:
		return "epoll_ctl del"
	}
}

// EpollWait waits for at most msec milliseconds, -1 blocks.
func EpollWait(epfd int, events []unix.EpollEvent, msec int) (int, error) {
	return unix.EpollWait(epfd, events, msec)
}

// EventList is the growable epoll result array.
type EventList struct {
	size   int
	Events []unix.EpollEvent
}

func NewEventList(size int) *EventList {
	return &EventList{size: size, Events: make([]unix.EpollEvent, size)}
}

// Size returns the current capacity of the result array.
func (el *EventList) Size() int {
	return el.size
}

// Expand doubles the array, it's only called once all results have been handled.
func (el *EventList) Expand() {
	el.size <<= 1
	el.Events = make([]unix.EpollEvent, el.size)
}
