//go:build linux
// +build linux

package reactor

import (
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"

	"netreactor/internal/netpoll"
	"netreactor/logging"
)

// ConnState is the state of a Conn, it only moves forward.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Disconnecting
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// Conn is an established TCP connection bound to one loop. Its state can be
// read from any goroutine, everything else happens on the loop's thread.
type Conn struct {
	loop    *EventLoop
	name    string
	state   atomic.Int32
	reading bool

	socket     *Socket
	channel    *Channel
	localAddr  net.Addr
	remoteAddr net.Addr

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	highWaterMarkCallback HighWaterMarkCallback
	closeCallback         CloseCallback
	highWaterMark         int

	inputBuffer  *Buffer
	outputBuffer *Buffer

	ctx       interface{}
	destroyed atomic.Bool
}

// NewConn wraps a connected non-blocking descriptor, ownership of fd moves to the Conn.
func NewConn(loop *EventLoop, name string, fd int, localAddr, remoteAddr net.Addr) *Conn {
	c := &Conn{
		loop:               loop,
		name:               name,
		reading:            true,
		socket:             newSocket(fd),
		channel:            NewChannel(loop, fd),
		localAddr:          localAddr,
		remoteAddr:         remoteAddr,
		connectionCallback: DefaultConnectionCallback,
		messageCallback:    DefaultMessageCallback,
		highWaterMark:      DefaultHighWaterMark,
		inputBuffer:        NewBuffer(),
		outputBuffer:       NewBuffer(),
	}
	c.state.Store(int32(Connecting))
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetErrorCallback(c.handleError)
	if err := c.socket.SetKeepAlive(0); err != nil {
		logging.Warnf("conn %s keep-alive: %v", name, err)
	}
	logging.Debugf("conn %s created, fd=%d", name, fd)
	return c
}

func (c *Conn) Loop() *EventLoop { return c.loop }
func (c *Conn) Name() string { return c.name }
func (c *Conn) LocalAddr() net.Addr { return c.localAddr }
func (c *Conn) RemoteAddr() net.Addr { return c.remoteAddr }
func (c *Conn) State() ConnState { return ConnState(c.state.Load()) }
func (c *Conn) Connected() bool { return c.State() == Connected }
func (c *Conn) Disconnected() bool { return c.State() == Disconnected }
func (c *Conn) Context() interface{} { return c.ctx }
func (c *Conn) SetContext(ctx interface{}) { c.ctx = ctx }

// InputBuffer and OutputBuffer may only be used on the loop's thread.
func (c *Conn) InputBuffer() *Buffer { return c.inputBuffer }
func (c *Conn) OutputBuffer() *Buffer { return c.outputBuffer }

// Alive reports false once the connection has been destroyed.
func (c *Conn) Alive() bool {
	return !c.destroyed.Load()
}

// stale reports whether a posted task arrived after connectDestroyed. The fd
// number may belong to another connection by then.
func (c *Conn) stale() bool {
	return c.destroyed.Load() || c.State() == Disconnected
}

func (c *Conn) setState(s ConnState) {
	c.state.Store(int32(s))
}

func (c *Conn) SetConnectionCallback(cb ConnectionCallback) { c.connectionCallback = cb }
func (c *Conn) SetMessageCallback(cb MessageCallback) { c.messageCallback = cb }
func (c *Conn) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.writeCompleteCallback = cb }
func (c *Conn) SetCloseCallback(cb CloseCallback) { c.closeCallback = cb }

// SetHighWaterMarkCallback sets cb to run when queued output reaches mark bytes.
func (c *Conn) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	c.highWaterMarkCallback = cb
	if mark > 0 {
		c.highWaterMark = mark
	}
}

func (c *Conn) SetTCPNoDelay(on bool) error {
	return c.socket.SetTCPNoDelay(on)
}

func (c *Conn) SetKeepAlive(period time.Duration) error {
	return c.socket.SetKeepAlive(period)
}

// Send writes p, or queues it if the socket is not writable. p can be reused
// once Send returns.
func (c *Conn) Send(p []byte) error {
	if c.State() != Connected {
		return ErrConnNotConnected
	}
	if c.loop.IsInLoopThread() {
		c.sendInLoop(p)
		return nil
	}
	bb := bytebufferpool.Get()
	_, _ = bb.Write(p)
	c.loop.QueueInLoop(func() {
		c.sendInLoop(bb.B)
		bytebufferpool.Put(bb)
	})
	return nil
}

func (c *Conn) SendString(s string) error {
	if c.State() != Connected {
		return ErrConnNotConnected
	}
	if c.loop.IsInLoopThread() {
		c.sendInLoop([]byte(s))
		return nil
	}
	bb := bytebufferpool.Get()
	_, _ = bb.WriteString(s)
	c.loop.QueueInLoop(func() {
		c.sendInLoop(bb.B)
		bytebufferpool.Put(bb)
	})
	return nil
}

// SendBuffer sends and consumes the readable bytes of buf.
func (c *Conn) SendBuffer(buf *Buffer) error {
	err := c.Send(buf.Peek())
	if err == nil {
		buf.RetrieveAll()
	}
	return err
}

func (c *Conn) sendInLoop(p []byte) {
	c.loop.assertInLoopThread()
	if c.stale() {
		logging.Warnf("conn %s is disconnected, give up writing", c.name)
		return
	}
	var (
		nwrote     int
		remaining  = len(p)
		faultError bool
	)
	if !c.channel.IsWriting() && c.outputBuffer.ReadableBytes() == 0 {
		n, err := unix.Write(c.channel.Fd(), p)
		if err == nil {
			nwrote = n
			remaining -= n
			if remaining == 0 && c.writeCompleteCallback != nil {
				c.loop.QueueInLoop(func() { c.writeCompleteCallback(c) })
			}
		} else if err != unix.EAGAIN {
			logging.Errorf("conn %s write: %v", c.name, err)
			if IsFaultError(err) {
				faultError = true
			}
		}
	}
	if faultError {
		c.handleClose()
		return
	}
	if remaining > 0 {
		oldLen := c.outputBuffer.ReadableBytes()
		if oldLen+remaining >= c.highWaterMark && oldLen < c.highWaterMark && c.highWaterMarkCallback != nil {
			queued := oldLen + remaining
			c.loop.QueueInLoop(func() { c.highWaterMarkCallback(c, queued) })
		}
		c.outputBuffer.Append(p[nwrote:])
		if !c.channel.IsWriting() {
			c.channel.EnableWriting()
		}
	}
}

// Shutdown half-closes the connection once all queued output has been written.
func (c *Conn) Shutdown() {
	if c.state.CompareAndSwap(int32(Connected), int32(Disconnecting)) {
		c.loop.RunInLoop(c.shutdownInLoop)
	}
}

func (c *Conn) shutdownInLoop() {
	c.loop.assertInLoopThread()
	if c.destroyed.Load() || c.State() != Disconnecting {
		return
	}
	if !c.channel.IsWriting() {
		sniffErrorAndLog(c.socket.ShutdownWrite())
	}
}

// ForceClose closes the connection without waiting for queued output.
func (c *Conn) ForceClose() {
	if c.state.CompareAndSwap(int32(Connected), int32(Disconnecting)) || c.State() == Disconnecting {
		c.loop.QueueInLoop(c.forceCloseInLoop)
	}
}

// ForceCloseWithDelay calls ForceClose after delay unless the connection is gone by then.
func (c *Conn) ForceCloseWithDelay(delay time.Duration) {
	if s := c.State(); s == Connected || s == Disconnecting {
		c.setState(Disconnecting)
		c.loop.RunAfter(delay, func() {
			if c.Alive() {
				c.ForceClose()
			}
		})
	}
}

func (c *Conn) forceCloseInLoop() {
	c.loop.assertInLoopThread()
	if c.destroyed.Load() {
		return
	}
	if s := c.State(); s == Connected || s == Disconnecting {
		c.handleClose()
	}
}

// StartRead resumes reading from the socket.
func (c *Conn) StartRead() {
	c.loop.RunInLoop(func() {
		if c.stale() {
			return
		}
		if !c.reading || !c.channel.IsReading() {
			c.channel.EnableReading()
			c.reading = true
		}
	})
}

// StopRead stops reading from the socket, incoming bytes stay in the kernel.
func (c *Conn) StopRead() {
	c.loop.RunInLoop(func() {
		if c.stale() {
			return
		}
		if c.reading || c.channel.IsReading() {
			c.channel.DisableReading()
			c.reading = false
		}
	})
}

func (c *Conn) IsReading() bool {
	return c.reading
}

// connectEstablished is called once by the owner, on the connection's loop.
func (c *Conn) connectEstablished() {
	c.loop.assertInLoopThread()
	c.setState(Connected)
	c.channel.Tie(c)
	c.channel.EnableReading()
	c.connectionCallback(c)
}

// connectDestroyed is the last call a Conn receives, it is always posted to the
// connection's loop and may run more than once.
func (c *Conn) connectDestroyed() {
	c.loop.assertInLoopThread()
	if c.destroyed.Load() {
		return
	}
	if s := c.State(); s == Connected || s == Disconnecting {
		c.setState(Disconnected)
		c.channel.DisableAll()
		c.connectionCallback(c)
	}
	c.destroyed.Store(true)
	c.channel.Remove()
	// the fd number is free for reuse from here on
	sniffErrorAndLog(c.socket.Close())
	logging.Debugf("conn %s destroyed", c.name)
}

func (c *Conn) handleRead(receiveTime time.Time) {
	c.loop.assertInLoopThread()
	n, err := c.inputBuffer.ReadFD(c.channel.Fd(), c.loop.packet)
	switch {
	case err == nil && n > 0:
		c.messageCallback(c, c.inputBuffer, receiveTime)
	case err == nil:
		c.handleClose()
	case err == unix.EAGAIN || err == unix.EINTR:
	case IsFaultError(err):
		logging.Debugf("conn %s read: %v", c.name, err)
		c.handleClose()
	default:
		logging.Errorf("conn %s read: %v", c.name, err)
		c.handleError()
	}
}

func (c *Conn) handleWrite() {
	c.loop.assertInLoopThread()
	if !c.channel.IsWriting() {
		logging.Debugf("conn %s fd=%d is down, no more writing", c.name, c.channel.Fd())
		return
	}
	n, err := c.outputBuffer.WriteFD(c.channel.Fd())
	if err != nil {
		if err != unix.EAGAIN {
			logging.Errorf("conn %s write: %v", c.name, err)
			if IsFaultError(err) {
				c.handleClose()
			}
		}
		return
	}
	c.outputBuffer.Retrieve(n)
	if c.outputBuffer.ReadableBytes() == 0 {
		c.channel.DisableWriting()
		if c.writeCompleteCallback != nil {
			c.loop.QueueInLoop(func() { c.writeCompleteCallback(c) })
		}
		if c.State() == Disconnecting {
			c.shutdownInLoop()
		}
	}
}

// handleClose runs at most once per connection.
func (c *Conn) handleClose() {
	c.loop.assertInLoopThread()
	s := c.State()
	if s == Disconnected {
		return
	}
	logging.Debugf("conn %s fd=%d state=%s closing", c.name, c.channel.Fd(), s)
	c.setState(Disconnected)
	c.channel.DisableAll()

	c.connectionCallback(c)
	if c.closeCallback != nil {
		c.closeCallback(c)
	}
}

func (c *Conn) handleError() {
	errno := netpoll.SocketError(c.channel.Fd())
	if errno != 0 {
		logging.Errorf("conn %s SO_ERROR = %d %v", c.name, int(errno), errno)
	}
}

// IsFaultError reports whether err means the peer is gone.
func IsFaultError(err error) bool {
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}
