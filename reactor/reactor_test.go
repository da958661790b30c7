//go:build linux
// +build linux

package reactor

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// startLoopThread runs a loop on its own thread until the test ends.
func startLoopThread(t *testing.T, opts ...Option) *EventLoop {
	t.Helper()
	thread := NewEventLoopThread(nil, t.Name(), opts...)
	loop, err := thread.StartLoop()
	require.NoError(t, err)
	t.Cleanup(thread.Stop)
	return loop
}

// runSync runs f on loop and waits for it.
func runSync(t *testing.T, loop *EventLoop, f func()) {
	t.Helper()
	done := make(chan struct{})
	loop.RunInLoop(func() {
		defer close(done)
		f()
	})
	waitClosed(t, done, 5*time.Second)
}

func waitClosed(t *testing.T, ch <-chan struct{}, d time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatalf("timed out after %v", d)
	}
}

func requirePanicsWithErr(t *testing.T, target error, f func()) {
	t.Helper()
	var recovered interface{}
	func() {
		defer func() { recovered = recover() }()
		f()
	}()
	require.NotNil(t, recovered, "expected a panic")
	err, ok := recovered.(error)
	require.True(t, ok, "panic value %v is not an error", recovered)
	require.True(t, errors.Is(err, target), "panic %v is not %v", err, target)
}

// tcpPair returns the accepted side of a loopback connection as a raw
// non-blocking fd, together with the dialing side.
func tcpPair(t *testing.T) (int, *net.TCPConn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	peer, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })

	accepted, err := ln.Accept()
	require.NoError(t, err)
	f, err := accepted.(*net.TCPConn).File()
	require.NoError(t, err)
	fd, err := unix.Dup(int(f.Fd()))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, accepted.Close())
	require.NoError(t, unix.SetNonblock(fd, true))
	return fd, peer.(*net.TCPConn)
}
