//go:build linux
// +build linux

package reactor

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"netreactor/internal/netpoll"
	"netreactor/logging"
)

// Acceptor owns a listening socket on one loop and accepts a connection every
// time the socket becomes readable.
type Acceptor struct {
	once sync.Once
	loop *EventLoop

	ln   net.Listener
	f    *os.File
	fd   int
	addr net.Addr
	// network: tcp
	// address: 127.0.0.1:9000
	network, address string

	channel   *Channel
	listening bool
	// spare descriptor released when accept hits EMFILE
	idleFd int

	newConnectionCallback NewConnectionCallback
}

// NewAcceptor binds and listens on address. SO_REUSEADDR is set by the Go
// runtime, reusePort additionally sets SO_REUSEPORT.
func NewAcceptor(loop *EventLoop, network, address string, reusePort bool) (a *Acceptor, err error) {
	a = &Acceptor{loop: loop, network: network, address: address, idleFd: -1}
	switch network {
	case "tcp", "tcp4", "tcp6":
		if reusePort {
			a.ln, err = netpoll.ReusePortListen(network, address)
		} else {
			a.ln, err = net.Listen(network, address)
		}
	default:
		err = ErrUnsupportedProtocol
	}
	if err != nil {
		return nil, fmt.Errorf("listen %s://%s: %w", network, address, err)
	}
	a.addr = a.ln.Addr()

	if err = a.renormalize(); err != nil {
		return nil, err
	}
	if a.idleFd, err = unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0); err != nil {
		a.close()
		return nil, os.NewSyscallError("open", err)
	}
	a.channel = NewChannel(loop, a.fd)
	a.channel.SetReadCallback(a.handleRead)
	return a, nil
}

// 1. 获取描述符
// 2. 设置非阻塞fd
func (a *Acceptor) renormalize() error {
	var err error
	switch netln := a.ln.(type) {
	case *net.TCPListener:
		a.f, err = netln.File()
	default:
		err = ErrUnsupportedProtocol
	}
	if err != nil {
		a.close()
		return err
	}
	a.fd = int(a.f.Fd())
	if err = unix.SetNonblock(a.fd, true); err != nil {
		a.close()
		return os.NewSyscallError("fcntl nonblock", err)
	}
	return nil
}

func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) {
	a.newConnectionCallback = cb
}

// Listen starts watching the socket, it must run on the acceptor's loop.
func (a *Acceptor) Listen() {
	a.loop.assertInLoopThread()
	a.listening = true
	a.channel.EnableReading()
}

func (a *Acceptor) Listening() bool {
	return a.listening
}

// Addr is the bound address, with the real port when listening on :0.
func (a *Acceptor) Addr() net.Addr {
	return a.addr
}

func (a *Acceptor) handleRead(time.Time) {
	a.loop.assertInLoopThread()
	connfd, peer, err := netpoll.Accept(a.fd)
	if err != nil {
		switch err {
		case unix.EAGAIN, unix.EINTR, unix.ECONNABORTED:
			return
		case unix.EMFILE, unix.ENFILE:
			// level triggered: free a slot, take the connection and drop it,
			// otherwise the loop spins on the readable listening socket.
			logging.Errorf("acceptor %s accept: %v", a.addr, err)
			if a.idleFd >= 0 {
				_ = unix.Close(a.idleFd)
				if fd, _, e := netpoll.Accept(a.fd); e == nil {
					_ = unix.Close(fd)
				}
				a.idleFd, _ = unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
			}
		default:
			logging.Errorf("acceptor %s accept: %v", a.addr, os.NewSyscallError("accept4", err))
		}
		return
	}
	if a.newConnectionCallback != nil {
		a.newConnectionCallback(connfd, peer)
	} else {
		sniffErrorAndLog(os.NewSyscallError("close", unix.Close(connfd)))
	}
}

// Close stops accepting and releases the listening socket, on the acceptor's loop.
func (a *Acceptor) Close() {
	a.loop.assertInLoopThread()
	if a.channel != nil && a.listening {
		a.channel.DisableAll()
		a.channel.Remove()
		a.listening = false
	}
	a.close()
}

func (a *Acceptor) close() {
	a.once.Do(func() {
		if a.f != nil {
			sniffErrorAndLog(a.f.Close())
		}
		if a.ln != nil {
			sniffErrorAndLog(a.ln.Close())
		}
		if a.idleFd >= 0 {
			sniffErrorAndLog(os.NewSyscallError("close", unix.Close(a.idleFd)))
		}
	})
}
