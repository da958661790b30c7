//go:build linux
// +build linux

package reactor

import (
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"netreactor/internal/netpoll"
)

// Socket owns a connected descriptor and closes it exactly once.
type Socket struct {
	once sync.Once
	fd   int
}

func newSocket(fd int) *Socket {
	return &Socket{fd: fd}
}

func (s *Socket) Fd() int {
	return s.fd
}

func (s *Socket) Close() (err error) {
	s.once.Do(func() {
		err = os.NewSyscallError("close", unix.Close(s.fd))
	})
	return
}

// ShutdownWrite half-closes the socket, the peer reads EOF after the queued bytes.
func (s *Socket) ShutdownWrite() error {
	return netpoll.ShutdownWrite(s.fd)
}

func (s *Socket) SetTCPNoDelay(on bool) error {
	return netpoll.SetNoDelay(s.fd, on)
}

func (s *Socket) SetReuseAddr(on bool) error {
	return netpoll.SetReuseAddr(s.fd, on)
}

func (s *Socket) SetReusePort(on bool) error {
	return netpoll.SetReusePort(s.fd, on)
}

func (s *Socket) SetKeepAlive(period time.Duration) error {
	return netpoll.SetKeepAlive(s.fd, period)
}

func (s *Socket) LocalAddr() net.Addr {
	return netpoll.LocalAddr(s.fd)
}

func (s *Socket) PeerAddr() net.Addr {
	return netpoll.PeerAddr(s.fd)
}
