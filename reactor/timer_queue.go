//go:build linux
// +build linux

package reactor

import (
	"container/heap"
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"netreactor/internal/netpoll"
	"netreactor/logging"
)

// TimerQueue keeps the timers of one loop behind a single timerfd. The heap
// and the index always hold the same live timers, and the timerfd is armed
// for the heap minimum, or disarmed when there is none.
type TimerQueue struct {
	loop           *EventLoop
	timerfd        int
	timerfdChannel *Channel

	timers       timerHeap
	activeTimers map[int64]*Timer

	callingExpiredTimers bool
	cancelingTimers      map[int64]struct{}
}

func newTimerQueue(loop *EventLoop) (*TimerQueue, error) {
	fd, err := netpoll.OpenTimerfd()
	if err != nil {
		return nil, err
	}
	tq := &TimerQueue{
		loop:            loop,
		timerfd:         fd,
		timerfdChannel:  NewChannel(loop, fd),
		activeTimers:    make(map[int64]*Timer),
		cancelingTimers: make(map[int64]struct{}),
	}
	tq.timerfdChannel.SetReadCallback(tq.handleRead)
	tq.timerfdChannel.EnableReading()
	return tq, nil
}

func (tq *TimerQueue) addTimer(cb TimerCallback, when time.Time, interval time.Duration) TimerID {
	t := newTimer(cb, when, interval)
	tq.loop.RunInLoop(func() {
		tq.addTimerInLoop(t)
	})
	return TimerID{sequence: t.sequence}
}

func (tq *TimerQueue) cancel(id TimerID) {
	tq.loop.RunInLoop(func() {
		tq.cancelInLoop(id)
	})
}

func (tq *TimerQueue) addTimerInLoop(t *Timer) {
	tq.loop.assertInLoopThread()
	if tq.activeTimers == nil {
		return
	}
	if tq.insert(t) {
		tq.resetTimerfd()
	}
}

func (tq *TimerQueue) cancelInLoop(id TimerID) {
	tq.loop.assertInLoopThread()
	if t, ok := tq.activeTimers[id.sequence]; ok {
		wasEarliest := t.index == 0
		heap.Remove(&tq.timers, t.index)
		delete(tq.activeTimers, id.sequence)
		if wasEarliest {
			tq.resetTimerfd()
		}
	} else if tq.callingExpiredTimers {
		// the timer is running right now, don't let reset put it back
		tq.cancelingTimers[id.sequence] = struct{}{}
	}
}

func (tq *TimerQueue) handleRead(time.Time) {
	tq.loop.assertInLoopThread()
	if _, err := netpoll.ReadTimerfd(tq.timerfd); err != nil && !errors.Is(err, unix.EAGAIN) {
		logging.Errorf("timer queue read timerfd=%d: %v", tq.timerfd, err)
	}
	now := time.Now()
	expired := tq.getExpired(now)

	tq.callingExpiredTimers = true
	for k := range tq.cancelingTimers {
		delete(tq.cancelingTimers, k)
	}
	for _, t := range expired {
		t.run()
	}
	tq.callingExpiredTimers = false

	tq.reset(expired, now)
}

// getExpired pops every timer with expiration <= now, removing it from both indexes.
func (tq *TimerQueue) getExpired(now time.Time) (expired []*Timer) {
	for len(tq.timers) > 0 && !tq.timers[0].expiration.After(now) {
		t := heap.Pop(&tq.timers).(*Timer)
		delete(tq.activeTimers, t.sequence)
		expired = append(expired, t)
	}
	return
}

func (tq *TimerQueue) reset(expired []*Timer, now time.Time) {
	for _, t := range expired {
		if _, canceled := tq.cancelingTimers[t.sequence]; t.repeat && !canceled {
			t.restart(now)
			tq.insert(t)
		}
	}
	tq.resetTimerfd()
}

// insert reports whether t became the earliest timer.
func (tq *TimerQueue) insert(t *Timer) bool {
	earliestChanged := len(tq.timers) == 0 || t.less(tq.timers[0])
	heap.Push(&tq.timers, t)
	tq.activeTimers[t.sequence] = t
	return earliestChanged
}

func (tq *TimerQueue) resetTimerfd() {
	var err error
	if len(tq.timers) > 0 {
		err = netpoll.ResetTimerfd(tq.timerfd, time.Until(tq.timers[0].expiration))
	} else {
		err = netpoll.DisarmTimerfd(tq.timerfd)
	}
	if err != nil {
		logging.Errorf("timer queue reset timerfd=%d: %v", tq.timerfd, err)
	}
}

// Len returns the number of live timers.
func (tq *TimerQueue) Len() int {
	return len(tq.activeTimers)
}

func (tq *TimerQueue) close() {
	tq.timerfdChannel.DisableAll()
	tq.timerfdChannel.Remove()
	sniffErrorAndLog(unix.Close(tq.timerfd))
	tq.timers = nil
	tq.activeTimers = nil
}
