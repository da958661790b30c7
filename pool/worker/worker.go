// Package worker is a goroutine pool: tasks are submitted without a result
// and run on a bounded set of reused goroutines.
package worker

import (
	"errors"
	"math"
	"runtime"
	"time"
)

const (
	// DefaultCleanIntervalTime is the interval of the idle worker purge.
	DefaultCleanIntervalTime = time.Second

	// DefaultPoolSize is the capacity of the package level pool.
	DefaultPoolSize = math.MaxInt32
)

const (
	OPENED = iota
	CLOSED
)

var (
	// ErrInvalidPoolExpiry will be returned when setting a negative number as the periodic duration to purge goroutines.
	ErrInvalidPoolExpiry = errors.New("invalid expiry for pool")

	// ErrPoolClosed will be returned when submitting task to a closed pool.
	ErrPoolClosed = errors.New("this pool has been closed")

	// ErrPoolOverload will be returned when the pool is full and no workers available.
	ErrPoolOverload = errors.New("too many goroutines blocked on submit or Nonblocking is set")

	// ErrInvalidPreAllocSize will be returned when trying to set up a negative capacity under PreAlloc mode.
	ErrInvalidPreAllocSize = errors.New("can not set up a negative capacity under PreAlloc mode")

	defaultWorkerPool, _ = NewPool(DefaultPoolSize)

	// a worker is held by one submitter at a time, it never queues more than one task
	workerChanCap = func() int {
		if runtime.GOMAXPROCS(0) == 1 {
			return 0
		}
		return 1
	}()
)

// goWorker runs tasks until it is purged or the pool is released.
type goWorker struct {
	pool        *Pool
	task        chan func()
	recycleTime time.Time
}

func (w *goWorker) run() {
	w.pool.incRunning()
	go func() {
		defer func() {
			w.pool.decRunning()
			w.pool.workerCache.Put(w)
			if p := recover(); p != nil {
				if ph := w.pool.options.PanicHandler; ph != nil {
					ph(p)
				} else {
					var buf [4096]byte
					n := runtime.Stack(buf[:], false)
					w.pool.options.Logger.Errorf("worker exits from a panic: %v\n%s", p, buf[:n])
				}
			}
			// a blocked submitter may be waiting for this slot
			w.pool.lock.Lock()
			w.pool.cond.Signal()
			w.pool.lock.Unlock()
		}()

		for f := range w.task {
			// nil means purged or released
			if f == nil {
				return
			}
			f()
			if ok := w.pool.revertWorker(w); !ok {
				return
			}
		}
	}()
}

// Submit submits a task to the package level pool.
func Submit(task func()) error {
	return defaultWorkerPool.Submit(task)
}

// Running returns the number of the currently running goroutines.
func Running() int {
	return defaultWorkerPool.Running()
}

// Cap returns the capacity of the package level pool.
func Cap() int {
	return defaultWorkerPool.Cap()
}

// Free returns the available goroutines to work.
func Free() int {
	return defaultWorkerPool.Free()
}

// Release closes the package level pool.
func Release() {
	defaultWorkerPool.Release()
}

// Reboot reopens the package level pool.
func Reboot() {
	defaultWorkerPool.Reboot()
}
