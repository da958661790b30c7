//go:build linux
// +build linux

package main

import "sync"

// echoQueue keeps the offloaded echo of one connection in arrival order.
// Pool tasks may run in any order, each one drains everything pending.
type echoQueue struct {
	mu      sync.Mutex
	pending []string
}

// push is called on the connection's loop.
func (q *echoQueue) push(data string) {
	q.mu.Lock()
	q.pending = append(q.pending, data)
	q.mu.Unlock()
}

// flush sends every pending chunk in order. It holds the lock while sending so
// two flushes never interleave.
func (q *echoQueue) flush(send func(string) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var err error
	for i, data := range q.pending {
		if e := send(data); e != nil && err == nil {
			err = e
		}
		q.pending[i] = ""
	}
	q.pending = q.pending[:0]
	return err
}
