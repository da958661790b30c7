//go:build linux
// +build linux

package config

import (
	"strings"

	"netreactor/reactor"
)

// Options converts the properties into server options. The properties are
// expected to be validated.
func (p *ServerProperties) Options() []reactor.Option {
	keepAlive, _ := p.keepAlive()
	pollTimeout, _ := p.pollTimeout()

	opts := []reactor.Option{
		reactor.WithNumEventLoop(p.NumEventLoop),
		reactor.WithMulticore(p.Multicore),
		reactor.WithReusePort(p.ReusePort),
		reactor.WithTCPKeepAlive(keepAlive),
		reactor.WithTCPNoDelay(p.TCPNoDelay),
		reactor.WithPollTimeout(pollTimeout),
	}
	if p.HighWaterMark > 0 {
		opts = append(opts, reactor.WithHighWaterMark(p.HighWaterMark))
	}

	switch strings.ToLower(p.LoadBalancing) {
	case LeastConnections:
		opts = append(opts, reactor.WithLoadBalancing(reactor.LeastConnections))
	case SourceAddrHash:
		opts = append(opts, reactor.WithLoadBalancing(reactor.SourceAddrHash))
	default:
		opts = append(opts, reactor.WithLoadBalancing(reactor.RoundRobin))
	}
	return opts
}
