//go:build linux
// +build linux

package reactor

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"netreactor/internal/netpoll"
	"netreactor/logging"
)

type epollPoller struct {
	loop     *EventLoop
	epfd     int
	events   *netpoll.EventList
	channels map[int]*Channel
}

func newEpollPoller(loop *EventLoop) (*epollPoller, error) {
	epfd, err := netpoll.OpenEpoll()
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		loop:     loop,
		epfd:     epfd,
		events:   netpoll.NewEventList(netpoll.InitPollEventsCap),
		channels: make(map[int]*Channel),
	}, nil
}

func (p *epollPoller) Poll(timeout time.Duration, active []*Channel) (time.Time, []*Channel) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}
	n, err := netpoll.EpollWait(p.epfd, p.events.Events, msec)
	now := time.Now()
	if err != nil {
		if err != unix.EINTR {
			logging.Errorf("epoll_wait on fd=%d: %v", p.epfd, os.NewSyscallError("epoll_wait", err))
		}
		return now, active
	}
	for i := 0; i < n; i++ {
		ev := &p.events.Events[i]
		ch, ok := p.channels[int(ev.Fd)]
		if !ok {
			continue
		}
		ch.setRevents(ev.Events)
		active = append(active, ch)
	}
	if n == p.events.Size() {
		p.events.Expand()
	}
	return now, active
}

func (p *epollPoller) UpdateChannel(c *Channel) {
	p.loop.assertInLoopThread()
	switch c.index {
	case stateNew, stateDeleted:
		if c.index == stateNew {
			p.channels[c.fd] = c
		}
		c.index = stateAdded
		p.update(unix.EPOLL_CTL_ADD, c)
	default:
		if c.IsNoneEvent() {
			p.update(unix.EPOLL_CTL_DEL, c)
			c.index = stateDeleted
		} else {
			p.update(unix.EPOLL_CTL_MOD, c)
		}
	}
}

func (p *epollPoller) RemoveChannel(c *Channel) {
	p.loop.assertInLoopThread()
	if p.channels[c.fd] != c {
		return
	}
	delete(p.channels, c.fd)
	if c.index == stateAdded {
		p.update(unix.EPOLL_CTL_DEL, c)
	}
	c.index = stateNew
}

func (p *epollPoller) HasChannel(c *Channel) bool {
	p.loop.assertInLoopThread()
	ch, ok := p.channels[c.fd]
	return ok && ch == c
}

func (p *epollPoller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.epfd))
}

func (p *epollPoller) update(op int, c *Channel) {
	if err := netpoll.EpollCtl(p.epfd, op, c.fd, c.events); err != nil {
		if op == unix.EPOLL_CTL_DEL {
			logging.Errorf("fd=%d: %v", c.fd, err)
		} else {
			logging.Fatalf("fd=%d: %v", c.fd, err)
		}
	}
}
