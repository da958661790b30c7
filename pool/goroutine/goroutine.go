// Package goroutine builds the worker pool used to offload work from event loops.
package goroutine

import (
	"time"

	"netreactor/pool/worker"
)

const (
	// DefaultWorkerPoolSize is the default capacity for a default goroutine pool.
	DefaultWorkerPoolSize = 1 << 18

	// ExpiryDuration is the interval time to clean up those expired workers.
	ExpiryDuration = 10 * time.Second

	// Nonblocking decides what to do when submitting a new task to a full pool: waiting or returning an error.
	Nonblocking = true
)

// Pool is the alias of worker.Pool.
type Pool = worker.Pool

// Default instantiates a non-blocking pool with the capacity of DefaultWorkerPoolSize.
func Default() *Pool {
	options := worker.Options{
		ExpiryDuration: ExpiryDuration,
		Nonblocking:    Nonblocking,
	}
	p, _ := worker.NewPool(DefaultWorkerPoolSize, worker.WithOptions(options))
	return p
}
