//go:build linux
// +build linux

package reactor

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestBackoffDoublesToCeiling(t *testing.T) {
	b := newBackoff(DefaultRetryDelay, DefaultMaxRetryDelay)
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, d := range want {
		assert.Equal(t, d, b.next(), "retry %d", i)
	}
	b.reset()
	assert.Equal(t, 500*time.Millisecond, b.next())
}

func TestBackoffDefaults(t *testing.T) {
	b := newBackoff(0, 0)
	assert.Equal(t, DefaultRetryDelay, b.initial)
	assert.Equal(t, DefaultMaxRetryDelay, b.max)

	b = newBackoff(time.Minute, 0)
	assert.Equal(t, time.Minute, b.max)
}

// unusedAddr returns a loopback address nobody listens on.
func unusedAddr(t *testing.T) *net.TCPAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())
	return addr
}

func TestConnectorRetriesUntilListening(t *testing.T) {
	loop := startLoopThread(t)
	addr := unusedAddr(t)

	connector := NewConnector(loop, addr, WithRetryDelay(10*time.Millisecond, 40*time.Millisecond))
	connected := make(chan net.Addr, 1)
	connector.SetNewConnectionCallback(func(fd int, peer net.Addr) {
		_ = unix.Close(fd)
		connected <- peer
	})
	connector.Start()

	// refused attempts grow the delay up to the ceiling
	require.Eventually(t, func() bool {
		cur := make(chan time.Duration, 1)
		loop.RunInLoop(func() { cur <- connector.backoff.cur })
		return <-cur == 40*time.Millisecond
	}, 5*time.Second, 10*time.Millisecond)

	ln, err := net.Listen("tcp", addr.String())
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		if c, err := ln.Accept(); err == nil {
			_ = c.Close()
		}
	}()

	select {
	case peer := <-connected:
		assert.Equal(t, addr.Port, peer.(*net.TCPAddr).Port)
	case <-time.After(5 * time.Second):
		t.Fatal("connector did not connect")
	}
	runSync(t, loop, func() {
		assert.Equal(t, connectorConnected, connector.getState())
	})
}

func TestConnectorStop(t *testing.T) {
	loop := startLoopThread(t)
	connector := NewConnector(loop, unusedAddr(t), WithRetryDelay(20*time.Millisecond, 20*time.Millisecond))
	connector.SetNewConnectionCallback(func(fd int, _ net.Addr) {
		_ = unix.Close(fd)
		t.Error("connected to a closed port")
	})
	connector.Start()
	time.Sleep(50 * time.Millisecond)
	connector.Stop()

	runSync(t, loop, func() {
		assert.Equal(t, connectorDisconnected, connector.getState())
		assert.Equal(t, 0, loop.timerQueue.Len(), "retry timer cancelled")
	})
}
