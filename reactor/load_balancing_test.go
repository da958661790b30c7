//go:build linux
// +build linux

package reactor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeLoops(n int) []*EventLoop {
	loops := make([]*EventLoop, n)
	for i := range loops {
		loops[i] = &EventLoop{}
	}
	return loops
}

func TestRoundRobinLoadBalancer(t *testing.T) {
	lb := newLoadBalancer(RoundRobin)
	loops := fakeLoops(3)
	for _, l := range loops {
		lb.register(l)
	}
	assert.Equal(t, 3, lb.len())
	for i := 0; i < 6; i++ {
		assert.Same(t, loops[i%3], lb.next(0))
	}
}

func TestSourceAddrHashLoadBalancer(t *testing.T) {
	lb := newLoadBalancer(SourceAddrHash)
	loops := fakeLoops(4)
	for _, l := range loops {
		lb.register(l)
	}
	h := hashCode("127.0.0.1:50000")
	assert.GreaterOrEqual(t, h, 0)
	assert.Same(t, loops[h%4], lb.next(h))
	assert.Same(t, lb.next(h), lb.next(h))
	assert.Contains(t, loops, lb.next(math.MinInt))
	assert.Contains(t, loops, lb.next(-7))
}

func TestLeastConnectionsLoadBalancer(t *testing.T) {
	lb := newLoadBalancer(LeastConnections)
	loops := fakeLoops(3)
	for _, l := range loops {
		lb.register(l)
	}
	assert.Same(t, loops[0], lb.next(0))

	lb.calibrate(loops[0], 1)
	lb.calibrate(loops[1], 1)
	lb.calibrate(loops[0], 1)
	assert.Same(t, loops[2], lb.next(0))

	var total int32
	lb.iterate(func(_ int, el *EventLoop) bool {
		total += el.connCount
		return true
	})
	assert.Equal(t, int32(3), total)
}
