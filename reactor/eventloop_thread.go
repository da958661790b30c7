//go:build linux
// +build linux

package reactor

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"netreactor/logging"
)

// EventLoopThread runs an EventLoop on a dedicated goroutine locked to its own OS thread.
type EventLoopThread struct {
	mu       sync.Mutex
	cond     *sync.Cond
	loop     *EventLoop
	err      error
	started  bool
	done     chan struct{}
	name     string
	callback ThreadInitCallback
	opts     []Option
}

func NewEventLoopThread(cb ThreadInitCallback, name string, opts ...Option) *EventLoopThread {
	t := &EventLoopThread{
		done:     make(chan struct{}),
		name:     name,
		callback: cb,
		opts:     opts,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// StartLoop starts the thread and blocks until its loop has been created.
func (t *EventLoopThread) StartLoop() (*EventLoop, error) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil, fmt.Errorf("event loop thread %s already started", t.name)
	}
	t.started = true
	t.mu.Unlock()

	go t.run()

	t.mu.Lock()
	for t.loop == nil && t.err == nil {
		t.cond.Wait()
	}
	loop, err := t.loop, t.err
	t.mu.Unlock()
	return loop, err
}

func (t *EventLoopThread) run() {
	defer close(t.done)

	loop, err := NewEventLoop(t.opts...)
	if err != nil {
		t.mu.Lock()
		t.err = err
		t.cond.Broadcast()
		t.mu.Unlock()
		return
	}
	if t.callback != nil {
		t.callback(loop)
	}

	t.mu.Lock()
	t.loop = loop
	t.cond.Broadcast()
	t.mu.Unlock()

	loop.Loop()
	if err = loop.Close(); err != nil {
		logging.Errorf("event loop thread %s close loop: %v", t.name, err)
	}
}

// Loop returns the loop once StartLoop has returned, nil before.
func (t *EventLoopThread) Loop() *EventLoop {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loop
}

func (t *EventLoopThread) Name() string {
	return t.name
}

// Stop quits the loop and waits for the thread to exit.
func (t *EventLoopThread) Stop() {
	t.mu.Lock()
	loop, started := t.loop, t.started
	t.mu.Unlock()
	if loop == nil {
		if started {
			<-t.done
		}
		return
	}
	loop.Quit()
	<-t.done
}

// EventLoopThreadPool owns the I/O loops of a server. With zero threads every
// connection runs on the base loop.
type EventLoopThreadPool struct {
	baseLoop   *EventLoop
	name       string
	started    bool
	numThreads int
	threads    []*EventLoopThread
	lb         loadBalancer
	opts       []Option
}

func NewEventLoopThreadPool(baseLoop *EventLoop, name string, lb LoadBalancing, opts ...Option) *EventLoopThreadPool {
	return &EventLoopThreadPool{
		baseLoop: baseLoop,
		name:     name,
		lb:       newLoadBalancer(lb),
		opts:     opts,
	}
}

func (p *EventLoopThreadPool) SetThreadNum(numThreads int) {
	p.numThreads = numThreads
}

// Start creates the threads, cb runs on each new loop (or on the base loop
// when there are no threads).
func (p *EventLoopThreadPool) Start(cb ThreadInitCallback) error {
	if p.started {
		return nil
	}
	p.started = true
	for i := 0; i < p.numThreads; i++ {
		t := NewEventLoopThread(cb, fmt.Sprintf("%s%d", p.name, i), p.opts...)
		loop, err := t.StartLoop()
		if err != nil {
			p.Stop()
			return err
		}
		p.threads = append(p.threads, t)
		p.lb.register(loop)
	}
	if p.numThreads == 0 && cb != nil {
		cb(p.baseLoop)
	}
	return nil
}

// GetNextLoop hands out loops by the configured strategy, call it on the base loop.
func (p *EventLoopThreadPool) GetNextLoop() *EventLoop {
	return p.nextLoop(nil)
}

func (p *EventLoopThreadPool) nextLoop(peer net.Addr) *EventLoop {
	if p.lb.len() == 0 {
		return p.baseLoop
	}
	var hash int
	if peer != nil {
		hash = hashCode(peer.String())
	}
	return p.lb.next(hash)
}

// GetLoopForHash always maps the same hash code to the same loop.
func (p *EventLoopThreadPool) GetLoopForHash(hashCode int) *EventLoop {
	loops := p.GetAllLoops()
	// 负数按 uint 取模，-math.MinInt 会溢出
	return loops[uint(hashCode)%uint(len(loops))]
}

func (p *EventLoopThreadPool) GetAllLoops() []*EventLoop {
	if len(p.threads) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	loops := make([]*EventLoop, 0, len(p.threads))
	for _, t := range p.threads {
		loops = append(loops, t.Loop())
	}
	return loops
}

func (p *EventLoopThreadPool) Started() bool {
	return p.started
}

func (p *EventLoopThreadPool) Name() string {
	return p.name
}

// calibrate tracks the number of connections on el.
func (p *EventLoopThreadPool) calibrate(el *EventLoop, delta int32) {
	if p.lb.len() == 0 {
		atomic.AddInt32(&el.connCount, delta)
		return
	}
	p.lb.calibrate(el, delta)
}

// CountConnections sums the connections of every loop.
func (p *EventLoopThreadPool) CountConnections() (count int) {
	if p.lb.len() == 0 {
		return int(atomic.LoadInt32(&p.baseLoop.connCount))
	}
	p.lb.iterate(func(_ int, el *EventLoop) bool {
		count += int(atomic.LoadInt32(&el.connCount))
		return true
	})
	return
}

// Stop quits and joins every thread.
func (p *EventLoopThreadPool) Stop() {
	for _, t := range p.threads {
		t.Stop()
	}
}
