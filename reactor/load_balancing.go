//go:build linux
// +build linux

package reactor

import (
	"container/heap"
	"sync"
	"sync/atomic"
)

// LoadBalancing picks the I/O loop of every accepted connection.
type LoadBalancing int

const (
	// RoundRobin hands out loops in turn.
	RoundRobin LoadBalancing = iota
	// LeastConnections picks the loop holding the fewest connections.
	LeastConnections
	// SourceAddrHash picks the loop by hashing the peer address.
	SourceAddrHash
)

type (
	loadBalancer interface {
		register(*EventLoop)
		next(hashcode int) *EventLoop
		iterate(func(int, *EventLoop) bool)
		len() int
		calibrate(*EventLoop, int32)
	}

	roundRobinEventLoopSet struct {
		nextLoopIndex int
		size          int
		eventLoops    []*EventLoop
	}

	leastConnectionsEventLoopSet struct {
		// 涉及到了slice的操作
		sync.RWMutex
		// 最小堆数据结构，实现了container/heap
		minHeap minEventLoopHeap
		// cachedRoot为每次next()获取到的对象
		cachedRoot *EventLoop
		// 可以理解为connection数，在重建最小堆后会重新置零
		threshold int32
		// 最小堆的元素数，即eventloop数
		calibrateConnsThreshold int32
	}

	sourceAddrHashEventLoopSet struct {
		eventLoops []*EventLoop
		size       int
	}
)

func newLoadBalancer(lb LoadBalancing) loadBalancer {
	switch lb {
	case LeastConnections:
		return new(leastConnectionsEventLoopSet)
	case SourceAddrHash:
		return new(sourceAddrHashEventLoopSet)
	default:
		return new(roundRobinEventLoopSet)
	}
}

// ==================================== Implementation of Round-Robin load-balancer ====================================
func (set *roundRobinEventLoopSet) register(el *EventLoop) {
	el.idx = set.size
	set.eventLoops = append(set.eventLoops, el)
	set.size++
}

func (set *roundRobinEventLoopSet) next(_ int) (el *EventLoop) {
	el = set.eventLoops[set.nextLoopIndex]
	if set.nextLoopIndex++; set.nextLoopIndex >= set.size {
		set.nextLoopIndex = 0
	}
	return
}

func (set *roundRobinEventLoopSet) iterate(f func(int, *EventLoop) bool) {
	for i, el := range set.eventLoops {
		if !f(i, el) {
			break
		}
	}
}

func (set *roundRobinEventLoopSet) len() int {
	return set.size
}

func (set *roundRobinEventLoopSet) calibrate(el *EventLoop, delta int32) {
	atomic.AddInt32(&el.connCount, delta)
}

// ================================= Implementation of Least-Connections load-balancer =================================
type minEventLoopHeap []*EventLoop

func (h minEventLoopHeap) Len() int {
	return len(h)
}

func (h minEventLoopHeap) Less(i, j int) bool {
	return atomic.LoadInt32(&h[i].connCount) < atomic.LoadInt32(&h[j].connCount)
}

func (h minEventLoopHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx, h[j].idx = i, j
}

func (h *minEventLoopHeap) Push(x interface{}) {
	el := x.(*EventLoop)
	el.idx = len(*h)
	*h = append(*h, el)
}

func (h *minEventLoopHeap) Pop() interface{} {
	old := *h
	i := len(old) - 1
	x := old[i]
	// 防止内存泄露
	old[i] = nil
	x.idx = -1
	*h = old[:i]
	return x
}

func (set *leastConnectionsEventLoopSet) register(el *EventLoop) {
	set.Lock()
	heap.Push(&set.minHeap, el)
	if el.idx == 0 {
		set.cachedRoot = el
	}
	set.calibrateConnsThreshold = int32(set.minHeap.Len())
	set.Unlock()
}

func (set *leastConnectionsEventLoopSet) next(_ int) *EventLoop {
	// 每 calibrateConnsThreshold 次会重建最小堆，这样能减少锁的使用
	if atomic.LoadInt32(&set.threshold) >= set.calibrateConnsThreshold {
		set.Lock()
		heap.Init(&set.minHeap)
		set.cachedRoot = set.minHeap[0]
		atomic.StoreInt32(&set.threshold, 0)
		set.Unlock()
	}
	return set.cachedRoot
}

func (set *leastConnectionsEventLoopSet) iterate(f func(int, *EventLoop) bool) {
	set.RLock()
	for i, el := range set.minHeap {
		if !f(i, el) {
			break
		}
	}
	set.RUnlock()
}

func (set *leastConnectionsEventLoopSet) len() (size int) {
	set.RLock()
	size = set.minHeap.Len()
	set.RUnlock()
	return
}

func (set *leastConnectionsEventLoopSet) calibrate(el *EventLoop, delta int32) {
	set.Lock()
	atomic.AddInt32(&el.connCount, delta)
	atomic.AddInt32(&set.threshold, 1)
	set.Unlock()
}

// ======================================= Implementation of Hash load-balancer ========================================
func (set *sourceAddrHashEventLoopSet) register(el *EventLoop) {
	el.idx = set.size
	set.eventLoops = append(set.eventLoops, el)
	set.size++
}

func (set *sourceAddrHashEventLoopSet) next(hashcode int) *EventLoop {
	return set.eventLoops[uint(hashcode)%uint(set.size)]
}

func (set *sourceAddrHashEventLoopSet) iterate(f func(int, *EventLoop) bool) {
	for i, el := range set.eventLoops {
		if !f(i, el) {
			break
		}
	}
}

func (set *sourceAddrHashEventLoopSet) len() int {
	return set.size
}

func (set *sourceAddrHashEventLoopSet) calibrate(el *EventLoop, delta int32) {
	atomic.AddInt32(&el.connCount, delta)
}
