//go:build linux
// +build linux

package reactor

import (
	"sync/atomic"
	"time"
)

var numTimersCreated atomic.Int64

// Timer is a callback scheduled on a loop, ordered by (expiration, sequence).
type Timer struct {
	callback   TimerCallback
	expiration time.Time
	interval   time.Duration
	repeat     bool
	sequence   int64
	// index in the timer heap, -1 when not queued
	index int
}

func newTimer(cb TimerCallback, when time.Time, interval time.Duration) *Timer {
	return &Timer{
		callback:   cb,
		expiration: when,
		interval:   interval,
		repeat:     interval > 0,
		sequence:   numTimersCreated.Add(1),
		index:      -1,
	}
}

func (t *Timer) run() {
	t.callback()
}

// restart computes the next expiration from now, not from the previous one,
// so a late loop does not fire a burst of expired timers.
func (t *Timer) restart(now time.Time) {
	if t.repeat {
		t.expiration = now.Add(t.interval)
	} else {
		t.expiration = time.Time{}
	}
}

func (t *Timer) less(o *Timer) bool {
	if t.expiration.Equal(o.expiration) {
		return t.sequence < o.sequence
	}
	return t.expiration.Before(o.expiration)
}

// TimerID identifies a timer for cancellation only.
type TimerID struct {
	sequence int64
}

// Valid reports whether id was returned by a scheduling call.
func (id TimerID) Valid() bool {
	return id.sequence > 0
}

// 最小堆，堆顶即为最先到期的定时器
type timerHeap []*Timer

func (h timerHeap) Len() int {
	return len(h)
}

func (h timerHeap) Less(i, j int) bool {
	return h[i].less(h[j])
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	i := len(old) - 1
	t := old[i]
	old[i] = nil
	t.index = -1
	*h = old[:i]
	return t
}
