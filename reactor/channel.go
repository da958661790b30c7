//go:build linux
// +build linux

package reactor

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"netreactor/internal/netpoll"
)

const (
	noneEvent  = netpoll.NoneEvents
	readEvent  = netpoll.ReadEvents
	writeEvent = netpoll.WriteEvents
)

// registration state of a Channel inside its poller.
const (
	stateNew     = -1
	stateAdded   = 1
	stateDeleted = 2
)

// Liveness is implemented by the owner a Channel is tied to.
type Liveness interface {
	Alive() bool
}

// Channel binds one descriptor to an interest set and the callbacks run when
// it becomes ready. It never closes the descriptor.
type Channel struct {
	loop    *EventLoop
	fd      int
	events  uint32
	revents uint32
	index   int

	tie  Liveness
	tied bool

	eventHandling bool
	addedToLoop   bool

	readCallback  func(receiveTime time.Time)
	writeCallback func()
	closeCallback func()
	errorCallback func()
}

func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: stateNew}
}

func (c *Channel) Fd() int { return c.fd }
func (c *Channel) Events() uint32 { return c.events }
func (c *Channel) OwnerLoop() *EventLoop { return c.loop }
func (c *Channel) IsNoneEvent() bool { return c.events == noneEvent }
func (c *Channel) IsWriting() bool { return c.events&writeEvent != 0 }
func (c *Channel) IsReading() bool { return c.events&readEvent != 0 }
func (c *Channel) setRevents(revt uint32) { c.revents = revt }

func (c *Channel) SetReadCallback(cb func(receiveTime time.Time)) { c.readCallback = cb }
func (c *Channel) SetWriteCallback(cb func()) { c.writeCallback = cb }
func (c *Channel) SetCloseCallback(cb func()) { c.closeCallback = cb }
func (c *Channel) SetErrorCallback(cb func()) { c.errorCallback = cb }

// Tie guards dispatch with owner, events are dropped once owner is no longer alive.
func (c *Channel) Tie(owner Liveness) {
	c.tie = owner
	c.tied = true
}

func (c *Channel) EnableReading() {
	c.events |= readEvent
	c.update()
}

func (c *Channel) DisableReading() {
	c.events &^= readEvent
	c.update()
}

func (c *Channel) EnableWriting() {
	c.events |= writeEvent
	c.update()
}

func (c *Channel) DisableWriting() {
	c.events &^= writeEvent
	c.update()
}

func (c *Channel) DisableAll() {
	c.events = noneEvent
	c.update()
}

func (c *Channel) update() {
	c.addedToLoop = true
	c.loop.updateChannel(c)
}

// Remove detaches the channel from its loop, the interest set must be empty.
func (c *Channel) Remove() {
	c.addedToLoop = false
	c.loop.removeChannel(c)
}

// HandleEvent dispatches the last readiness result.
func (c *Channel) HandleEvent(receiveTime time.Time) {
	if c.tied && !c.tie.Alive() {
		return
	}
	c.handleEventWithGuard(receiveTime)
}

func (c *Channel) handleEventWithGuard(receiveTime time.Time) {
	c.eventHandling = true
	defer func() { c.eventHandling = false }()

	if c.revents&unix.EPOLLHUP != 0 && c.revents&unix.EPOLLIN == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}
	if c.revents&unix.EPOLLERR != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}
	if c.revents&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		if c.readCallback != nil {
			c.readCallback(receiveTime)
		}
	}
	if c.revents&unix.EPOLLOUT != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}

func (c *Channel) String() string {
	return eventsString(c.fd, c.revents)
}

func eventsString(fd int, ev uint32) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(fd))
	sb.WriteString(": ")
	for _, e := range []struct {
		bit  uint32
		name string
	}{
		{unix.EPOLLIN, "IN "},
		{unix.EPOLLPRI, "PRI "},
		{unix.EPOLLOUT, "OUT "},
		{unix.EPOLLHUP, "HUP "},
		{unix.EPOLLRDHUP, "RDHUP "},
		{unix.EPOLLERR, "ERR "},
	} {
		if ev&e.bit != 0 {
			sb.WriteString(e.name)
		}
	}
	return sb.String()
}
