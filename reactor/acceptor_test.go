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

func TestAcceptorAccepts(t *testing.T) {
	loop := startLoopThread(t)
	acceptor, err := NewAcceptor(loop, "tcp", "127.0.0.1:0", false)
	require.NoError(t, err)
	defer runSync(t, loop, acceptor.Close)

	peers := make(chan net.Addr, 1)
	acceptor.SetNewConnectionCallback(func(fd int, peer net.Addr) {
		flags, ferr := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
		if ferr == nil && flags&unix.O_NONBLOCK == 0 {
			t.Error("accepted fd is blocking")
		}
		_ = unix.Close(fd)
		peers <- peer
	})
	runSync(t, loop, acceptor.Listen)
	assert.True(t, acceptor.Listening())

	c, err := net.Dial("tcp", acceptor.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	select {
	case peer := <-peers:
		assert.Equal(t, c.LocalAddr().String(), peer.String())
	case <-time.After(5 * time.Second):
		t.Fatal("no connection accepted")
	}
}

func TestAcceptorWithoutCallbackClosesConnection(t *testing.T) {
	loop := startLoopThread(t)
	acceptor, err := NewAcceptor(loop, "tcp4", "127.0.0.1:0", true)
	require.NoError(t, err)
	defer runSync(t, loop, acceptor.Close)
	runSync(t, loop, acceptor.Listen)

	c, err := net.Dial("tcp", acceptor.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := c.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.Error(t, err)
}
