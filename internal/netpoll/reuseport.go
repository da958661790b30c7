package netpoll

import (
	"net"

	"github.com/libp2p/go-reuseport"
)

// ReusePortListen listens with SO_REUSEADDR and SO_REUSEPORT set before bind.
func ReusePortListen(proto, addr string) (net.Listener, error) {
	return reuseport.Listen(proto, addr)
}
