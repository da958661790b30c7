//go:build linux
// +build linux

package reactor

import (
	"errors"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"netreactor/internal/netpoll"
	"netreactor/logging"
)

type connectorState int32

const (
	connectorDisconnected connectorState = iota
	connectorConnecting
	connectorConnected
)

// backoff doubles the delay on every call to next, up to max.
type backoff struct {
	initial time.Duration
	max     time.Duration
	cur     time.Duration
}

func newBackoff(initial, max time.Duration) backoff {
	if initial <= 0 {
		initial = DefaultRetryDelay
	}
	if max < initial {
		max = DefaultMaxRetryDelay
		if max < initial {
			max = initial
		}
	}
	return backoff{initial: initial, max: max, cur: initial}
}

func (b *backoff) next() time.Duration {
	d := b.cur
	if b.cur *= 2; b.cur > b.max {
		b.cur = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.cur = b.initial
}

// Connector actively connects to a server and retries with exponential backoff.
// Start, Stop and Restart are safe from any goroutine.
type Connector struct {
	loop       *EventLoop
	serverAddr *net.TCPAddr

	connect atomic.Bool
	state   atomic.Int32
	channel *Channel

	backoff    backoff
	retryTimer TimerID

	newConnectionCallback NewConnectionCallback
}

func NewConnector(loop *EventLoop, serverAddr *net.TCPAddr, opts ...Option) *Connector {
	options := loadOptions(opts...)
	return &Connector{
		loop:       loop,
		serverAddr: serverAddr,
		backoff:    newBackoff(options.RetryDelay, options.MaxRetryDelay),
	}
}

func (c *Connector) SetNewConnectionCallback(cb NewConnectionCallback) {
	c.newConnectionCallback = cb
}

func (c *Connector) ServerAddr() *net.TCPAddr {
	return c.serverAddr
}

func (c *Connector) setState(s connectorState) {
	c.state.Store(int32(s))
}

func (c *Connector) getState() connectorState {
	return connectorState(c.state.Load())
}

func (c *Connector) Start() {
	c.connect.Store(true)
	c.loop.RunInLoop(c.startInLoop)
}

// Restart resets the backoff and connects again, it is used after an
// established connection went down.
func (c *Connector) Restart() {
	c.loop.RunInLoop(func() {
		c.loop.Cancel(c.retryTimer)
		c.setState(connectorDisconnected)
		c.backoff.reset()
		c.connect.Store(true)
		c.startInLoop()
	})
}

// Stop gives up connecting and cancels a pending retry.
func (c *Connector) Stop() {
	c.connect.Store(false)
	c.loop.QueueInLoop(c.stopInLoop)
}

func (c *Connector) startInLoop() {
	c.loop.assertInLoopThread()
	if c.getState() != connectorDisconnected {
		return
	}
	if c.connect.Load() {
		c.connectOnce()
	} else {
		logging.Debugf("connector to %s: do not connect", c.serverAddr)
	}
}

func (c *Connector) stopInLoop() {
	c.loop.assertInLoopThread()
	c.loop.Cancel(c.retryTimer)
	if c.getState() == connectorConnecting {
		c.setState(connectorDisconnected)
		fd := c.removeAndResetChannel()
		c.retry(fd)
	}
}

func (c *Connector) connectOnce() {
	fd, err := netpoll.NonblockingSocket(c.serverAddr)
	if err != nil {
		logging.Fatalf("connector to %s: %v", c.serverAddr, err)
		return
	}
	err = netpoll.Connect(fd, c.serverAddr)
	switch errno := toErrno(err); errno {
	case 0, unix.EINPROGRESS, unix.EINTR, unix.EISCONN:
		c.connecting(fd)
	case unix.EAGAIN, unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.ECONNREFUSED, unix.ENETUNREACH:
		c.retry(fd)
	case unix.EACCES, unix.EPERM, unix.EAFNOSUPPORT, unix.EALREADY, unix.EBADF, unix.EFAULT, unix.ENOTSOCK:
		logging.Errorf("connector to %s: connect error %d %v", c.serverAddr, int(errno), errno)
		sniffErrorAndLog(unix.Close(fd))
	default:
		logging.Errorf("connector to %s: unexpected connect error %d %v", c.serverAddr, int(errno), errno)
		sniffErrorAndLog(unix.Close(fd))
	}
}

func toErrno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EINVAL
}

func (c *Connector) connecting(fd int) {
	c.setState(connectorConnecting)
	ch := NewChannel(c.loop, fd)
	ch.SetWriteCallback(c.handleWrite)
	ch.SetErrorCallback(c.handleError)
	c.channel = ch
	ch.EnableWriting()
}

// removeAndResetChannel detaches the channel and returns its descriptor. The
// field is cleared on the next loop turn since we may be inside its callback.
func (c *Connector) removeAndResetChannel() int {
	ch := c.channel
	ch.DisableAll()
	ch.Remove()
	c.loop.QueueInLoop(func() {
		if c.channel == ch {
			c.channel = nil
		}
	})
	return ch.Fd()
}

func (c *Connector) handleWrite() {
	if c.getState() != connectorConnecting {
		return
	}
	fd := c.removeAndResetChannel()
	if errno := netpoll.SocketError(fd); errno != 0 {
		logging.Warnf("connector to %s: SO_ERROR = %d %v", c.serverAddr, int(errno), errno)
		c.retry(fd)
		return
	}
	if netpoll.IsSelfConnect(fd) {
		logging.Warnf("connector to %s: self connect", c.serverAddr)
		c.retry(fd)
		return
	}
	c.setState(connectorConnected)
	if c.connect.Load() && c.newConnectionCallback != nil {
		c.newConnectionCallback(fd, netpoll.PeerAddr(fd))
	} else {
		sniffErrorAndLog(unix.Close(fd))
	}
}

func (c *Connector) handleError() {
	if c.getState() != connectorConnecting {
		return
	}
	fd := c.removeAndResetChannel()
	errno := netpoll.SocketError(fd)
	logging.Debugf("connector to %s: SO_ERROR = %d %v", c.serverAddr, int(errno), errno)
	c.retry(fd)
}

func (c *Connector) retry(fd int) {
	sniffErrorAndLog(unix.Close(fd))
	c.setState(connectorDisconnected)
	if !c.connect.Load() {
		logging.Debugf("connector to %s: do not connect", c.serverAddr)
		return
	}
	delay := c.backoff.next()
	logging.Infof("connector to %s: retry connecting in %v", c.serverAddr, delay)
	c.retryTimer = c.loop.RunAfter(delay, c.startInLoop)
}
