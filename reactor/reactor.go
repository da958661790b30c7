//go:build linux
// +build linux

// Package reactor is a non-blocking TCP networking core built on epoll.
//
// Every EventLoop is pinned to one OS thread. Channels, timers and connections
// bound to a loop are only touched by that thread, other goroutines talk to a
// loop by posting tasks with RunInLoop or QueueInLoop.
package reactor

import (
	"hash/crc32"
	"net"
	"strings"
	"time"

	"netreactor/logging"
)

type (
	// ConnectionCallback is called when a connection goes up or down.
	ConnectionCallback func(c *Conn)
	// MessageCallback is called with the input buffer whenever new bytes arrive.
	MessageCallback func(c *Conn, buf *Buffer, receiveTime time.Time)
	// WriteCompleteCallback is called once the output buffer has been fully flushed.
	WriteCompleteCallback func(c *Conn)
	// HighWaterMarkCallback is called when queued output crosses the high-water mark.
	HighWaterMarkCallback func(c *Conn, queued int)
	// CloseCallback is used by servers and clients to learn about closed connections.
	CloseCallback func(c *Conn)
	// TimerCallback is run by the loop when a timer expires.
	TimerCallback func()
	// ThreadInitCallback runs on a new loop's thread before it starts looping.
	ThreadInitCallback func(loop *EventLoop)
	// NewConnectionCallback hands a connected non-blocking descriptor to its new owner.
	NewConnectionCallback func(fd int, peer net.Addr)
)

// DefaultConnectionCallback logs the connection state change.
func DefaultConnectionCallback(c *Conn) {
	state := "down"
	if c.Connected() {
		state = "up"
	}
	logging.Debugf("%v -> %v is %s", c.LocalAddr(), c.RemoteAddr(), state)
}

// DefaultMessageCallback discards everything it receives.
func DefaultMessageCallback(_ *Conn, buf *Buffer, _ time.Time) {
	buf.RetrieveAll()
}

// tcp://192.168.0.1:80
func parseAddr(addr string) (network, address string) {
	network = "tcp"
	address = strings.ToLower(addr)
	if strings.Contains(address, "://") {
		pair := strings.Split(address, "://")
		network = pair[0]
		address = pair[1]
	}
	return
}

func hashCode(s string) int {
	v := int(crc32.ChecksumIEEE([]byte(s)))
	if v >= 0 {
		return v
	}
	return -v
}

func sniffErrorAndLog(err error) {
	if err != nil {
		logging.Errorf("%v", err)
	}
}
