package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"netreactor/logging"
	"netreactor/pool/worker/internal"
)

// Pool accepts tasks and runs them on a limited number of goroutines.
type Pool struct {
	// capacity of the pool, a negative value means the pool is unbounded.
	capacity int32

	// running is the number of live workers, idle ones included.
	running int32

	// lock guards workers and blockingNum.
	lock sync.Locker

	// workers holds the idle workers.
	workers workerArray

	state int32

	// cond parks submitters waiting for an idle worker.
	cond *sync.Cond

	workerCache sync.Pool

	// blockingNum is the number of goroutines blocked in Submit, guarded by lock.
	blockingNum int

	options *Options
}

// NewPool generates an instance of the pool. A size <= 0 gives an unbounded pool.
func NewPool(size int, options ...Option) (*Pool, error) {
	opts := loadOptions(options...)

	if size <= 0 {
		size = -1
	}

	if expiry := opts.ExpiryDuration; expiry < 0 {
		return nil, ErrInvalidPoolExpiry
	} else if expiry == 0 {
		opts.ExpiryDuration = DefaultCleanIntervalTime
	}

	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}

	p := &Pool{
		capacity: int32(size),
		lock:     internal.NewSpinLock(),
		options:  opts,
	}
	p.workerCache.New = func() interface{} {
		return &goWorker{
			pool: p,
			task: make(chan func(), workerChanCap),
		}
	}
	if p.options.PreAlloc {
		if size == -1 {
			return nil, ErrInvalidPreAllocSize
		}
		p.workers = newWorkerArray(loopQueueType, size)
	} else {
		p.workers = newWorkerArray(stackType, 0)
	}

	p.cond = sync.NewCond(p.lock)

	go p.purgePeriodically()

	return p, nil
}

// purgePeriodically stops idle workers older than ExpiryDuration.
func (p *Pool) purgePeriodically() {
	heartbeat := time.NewTicker(p.options.ExpiryDuration)
	defer heartbeat.Stop()

	for range heartbeat.C {
		if p.IsClosed() {
			break
		}

		p.lock.Lock()
		expiredWorkers := p.workers.retrieveExpiry(p.options.ExpiryDuration)
		p.lock.Unlock()

		// 通知过期的 worker 退出，发送在锁外进行
		for i := range expiredWorkers {
			expiredWorkers[i].task <- nil
			expiredWorkers[i] = nil
		}

		// every worker may have been purged while submitters still wait
		if p.Running() == 0 {
			p.lock.Lock()
			p.cond.Broadcast()
			p.lock.Unlock()
		}
	}
}

// Submit hands a task to an idle or a new worker. It blocks when the pool is
// full unless Nonblocking is set or MaxBlockingTasks is reached.
func (p *Pool) Submit(task func()) error {
	if p.IsClosed() {
		return ErrPoolClosed
	}
	w := p.retrieveWorker()
	if w == nil {
		if p.IsClosed() {
			return ErrPoolClosed
		}
		return ErrPoolOverload
	}
	w.task <- task
	return nil
}

// Running returns the number of live workers.
func (p *Pool) Running() int {
	return int(atomic.LoadInt32(&p.running))
}

// Free returns the number of workers that can still be started, -1 for an unbounded pool.
func (p *Pool) Free() int {
	c := p.Cap()
	if c < 0 {
		return -1
	}
	return c - p.Running()
}

// Cap returns the capacity of the pool.
func (p *Pool) Cap() int {
	return int(atomic.LoadInt32(&p.capacity))
}

// Tune changes the capacity. It has no effect on unbounded or preallocated pools.
func (p *Pool) Tune(size int) {
	capacity := p.Cap()
	if capacity == -1 || size <= 0 || size == capacity || p.options.PreAlloc {
		return
	}
	atomic.StoreInt32(&p.capacity, int32(size))
	if size > capacity {
		p.lock.Lock()
		if size-capacity == 1 {
			p.cond.Signal()
		} else {
			p.cond.Broadcast()
		}
		p.lock.Unlock()
	}
}

// IsClosed reports whether the pool has been released.
func (p *Pool) IsClosed() bool {
	return atomic.LoadInt32(&p.state) == CLOSED
}

// Release closes the pool and stops the idle workers. Busy workers exit after
// their current task.
func (p *Pool) Release() {
	if !atomic.CompareAndSwapInt32(&p.state, OPENED, CLOSED) {
		return
	}
	p.lock.Lock()
	p.workers.reset()
	// wake the submitters so they observe CLOSED
	p.cond.Broadcast()
	p.lock.Unlock()
}

// Reboot reopens a released pool.
func (p *Pool) Reboot() {
	if atomic.CompareAndSwapInt32(&p.state, CLOSED, OPENED) {
		go p.purgePeriodically()
	}
}

func (p *Pool) incRunning() {
	atomic.AddInt32(&p.running, 1)
}

func (p *Pool) decRunning() {
	atomic.AddInt32(&p.running, -1)
}

func (p *Pool) blocking() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.blockingNum
}

// retrieveWorker returns an available worker, or nil when the pool is
// overloaded or closed.
func (p *Pool) retrieveWorker() (w *goWorker) {
	spawnWorker := func() {
		w = p.workerCache.Get().(*goWorker)
		w.run()
	}

	p.lock.Lock()
	for {
		if p.IsClosed() {
			p.lock.Unlock()
			return nil
		}

		if w = p.workers.detach(); w != nil {
			p.lock.Unlock()
			return
		}

		if capacity := p.Cap(); capacity == -1 || capacity > p.Running() {
			p.lock.Unlock()
			spawnWorker()
			return
		}

		if p.options.Nonblocking {
			p.lock.Unlock()
			return nil
		}
		if p.options.MaxBlockingTasks != 0 && p.blockingNum >= p.options.MaxBlockingTasks {
			p.lock.Unlock()
			return nil
		}

		p.blockingNum++
		p.cond.Wait()
		p.blockingNum--
	}
}

// revertWorker puts a worker back into the idle list.
func (p *Pool) revertWorker(worker *goWorker) bool {
	if capacity := p.Cap(); (capacity > 0 && p.Running() > capacity) || p.IsClosed() {
		return false
	}
	worker.recycleTime = time.Now()
	p.lock.Lock()

	// re-check under the lock, Release may have reset the workers meanwhile
	if p.IsClosed() {
		p.lock.Unlock()
		return false
	}

	if err := p.workers.insert(worker); err != nil {
		p.lock.Unlock()
		return false
	}

	p.cond.Signal()
	p.lock.Unlock()
	return true
}
