//go:build linux
// +build linux

package netpoll

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

var ErrUnsupportedAddr = errors.New("unsupported socket address")

// NonblockingSocket creates a non-blocking, close-on-exec TCP socket for the family of addr.
func NonblockingSocket(addr *net.TCPAddr) (int, error) {
	family := unix.AF_INET
	if addr.IP.To4() == nil && len(addr.IP) == net.IPv6len {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	return fd, nil
}

// Connect issues a non-blocking connect, the raw errno is returned for classification.
func Connect(fd int, addr *net.TCPAddr) error {
	sa, err := TCPAddrToSockaddr(addr)
	if err != nil {
		return err
	}
	return unix.Connect(fd, sa)
}

// Accept accepts one connection in non-blocking, close-on-exec mode.
func Accept(fd int) (int, net.Addr, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	return nfd, SockaddrToTCPAddr(sa), nil
}

// ShutdownWrite half-closes the write side of fd.
func ShutdownWrite(fd int) error {
	return os.NewSyscallError("shutdown", unix.Shutdown(fd, unix.SHUT_WR))
}

func LocalAddr(fd int) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return SockaddrToTCPAddr(sa)
}

func PeerAddr(fd int) net.Addr {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil
	}
	return SockaddrToTCPAddr(sa)
}

// IsSelfConnect reports whether fd got connected to itself, which happens when
// the ephemeral port picked for a loopback connect equals the target port.
func IsSelfConnect(fd int) bool {
	local, ok1 := LocalAddr(fd).(*net.TCPAddr)
	peer, ok2 := PeerAddr(fd).(*net.TCPAddr)
	if !ok1 || !ok2 || local == nil || peer == nil {
		return false
	}
	return local.Port == peer.Port && local.IP.Equal(peer.IP)
}

// SockaddrToTCPAddr converts a unix.Sockaddr into a *net.TCPAddr, nil if the family is unknown.
func SockaddrToTCPAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		var zone string
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				zone = ifi.Name
			}
		}
		return &net.TCPAddr{IP: ip, Port: sa.Port, Zone: zone}
	}
	return nil
}

// TCPAddrToSockaddr converts a *net.TCPAddr into a unix.Sockaddr.
func TCPAddrToSockaddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if addr == nil {
		return nil, ErrUnsupportedAddr
	}
	if ip4 := addr.IP.To4(); ip4 != nil || len(addr.IP) == 0 {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	if len(addr.IP) != net.IPv6len {
		return nil, ErrUnsupportedAddr
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP)
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return sa, nil
}
