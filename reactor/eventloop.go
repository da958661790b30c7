//go:build linux
// +build linux

package reactor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"netreactor/internal"
	"netreactor/internal/netpoll"
	"netreactor/logging"
)

// one loop per OS thread, keyed by thread id.
var (
	loopsMu       sync.Mutex
	loopsByThread = make(map[int]*EventLoop)
)

// EventLoop is a reactor pinned to the OS thread that created it.
type EventLoop struct {
	tid int

	looping             atomic.Bool
	quit                atomic.Bool
	callingPendingTasks atomic.Bool
	eventHandling       bool
	iteration           atomic.Int64

	pollTimeout    time.Duration
	pollReturnTime time.Time
	poller         Poller
	timerQueue     *TimerQueue

	wakeupFd      int
	wakeupChannel *Channel

	activeChannels       []*Channel
	currentActiveChannel *Channel

	// mu guards closed against task posting.
	mu     sync.RWMutex
	closed bool
	tasks  internal.TaskQueue

	// read scratch shared by every connection of this loop
	packet []byte

	// load balancing
	idx       int
	connCount int32
}

// NewEventLoop locks the calling goroutine to its OS thread and creates a loop
// for that thread. Loop and Close must later be called from the same goroutine.
func NewEventLoop(opts ...Option) (*EventLoop, error) {
	options := loadOptions(opts...)

	runtime.LockOSThread()
	tid := unix.Gettid()

	loopsMu.Lock()
	if other, ok := loopsByThread[tid]; ok {
		loopsMu.Unlock()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("thread %d already runs loop %p: %w", tid, other, ErrLoopExists)
	}
	el := &EventLoop{
		tid:         tid,
		pollTimeout: options.pollTimeout(),
		packet:      make([]byte, 0x10000),
	}
	loopsByThread[tid] = el
	loopsMu.Unlock()

	if err := el.init(); err != nil {
		loopsMu.Lock()
		delete(loopsByThread, tid)
		loopsMu.Unlock()
		runtime.UnlockOSThread()
		return nil, err
	}
	logging.Debugf("event loop %p created in thread %d", el, tid)
	return el, nil
}

func (el *EventLoop) init() (err error) {
	if el.poller, err = newDefaultPoller(el); err != nil {
		return
	}
	if el.wakeupFd, err = netpoll.OpenEventfd(); err != nil {
		_ = el.poller.Close()
		return
	}
	if el.timerQueue, err = newTimerQueue(el); err != nil {
		_ = unix.Close(el.wakeupFd)
		_ = el.poller.Close()
		return
	}
	el.wakeupChannel = NewChannel(el, el.wakeupFd)
	el.wakeupChannel.SetReadCallback(el.handleWakeup)
	el.wakeupChannel.EnableReading()
	return
}

// Loop runs until Quit is called. It must be called from the creating goroutine.
func (el *EventLoop) Loop() {
	el.assertInLoopThread()
	if el.isClosed() {
		panic(ErrLoopClosed)
	}
	el.looping.Store(true)
	logging.Debugf("event loop %p start looping", el)

	for !el.quit.Load() {
		el.activeChannels = el.activeChannels[:0]
		el.pollReturnTime, el.activeChannels = el.poller.Poll(el.pollTimeout, el.activeChannels)
		el.iteration.Add(1)

		el.eventHandling = true
		for _, ch := range el.activeChannels {
			el.currentActiveChannel = ch
			ch.HandleEvent(el.pollReturnTime)
		}
		el.currentActiveChannel = nil
		el.eventHandling = false

		el.doPendingTasks()
	}
	// tasks posted together with Quit
	el.doPendingTasks()

	logging.Debugf("event loop %p stop looping", el)
	el.looping.Store(false)
}

// Quit makes Loop return after the current iteration. Safe from any goroutine.
func (el *EventLoop) Quit() {
	el.quit.Store(true)
	if !el.IsInLoopThread() {
		el.Wakeup()
	}
}

// Close releases the loop's descriptors and unlocks the OS thread. It must be
// called from the creating goroutine once Loop has returned.
func (el *EventLoop) Close() error {
	if el.isClosed() {
		return ErrLoopClosed
	}
	el.assertInLoopThread()
	if el.looping.Load() {
		return fmt.Errorf("event loop %p is still looping", el)
	}
	el.mu.Lock()
	if el.closed {
		el.mu.Unlock()
		return ErrLoopClosed
	}
	el.closed = true
	el.mu.Unlock()

	el.doPendingTasks()
	el.wakeupChannel.DisableAll()
	el.wakeupChannel.Remove()
	el.timerQueue.close()
	err := el.poller.Close()
	if e := unix.Close(el.wakeupFd); e != nil && err == nil {
		err = e
	}

	loopsMu.Lock()
	delete(loopsByThread, el.tid)
	loopsMu.Unlock()
	runtime.UnlockOSThread()
	return err
}

// RunInLoop runs task now if called on the loop thread, otherwise queues it.
func (el *EventLoop) RunInLoop(task func()) {
	if el.IsInLoopThread() {
		task()
	} else {
		el.QueueInLoop(task)
	}
}

// QueueInLoop queues task to run after the current batch of events.
func (el *EventLoop) QueueInLoop(task func()) {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if el.closed {
		logging.Warnf("event loop %p is closed, task dropped", el)
		return
	}
	el.tasks.Push(task)
	if !el.IsInLoopThread() || el.callingPendingTasks.Load() {
		el.wakeup()
	}
}

// QueueSize returns the number of pending tasks.
func (el *EventLoop) QueueSize() int {
	return el.tasks.Len()
}

// RunAt runs cb at time t.
func (el *EventLoop) RunAt(t time.Time, cb TimerCallback) TimerID {
	return el.timerQueue.addTimer(cb, t, 0)
}

// RunAfter runs cb after delay.
func (el *EventLoop) RunAfter(delay time.Duration, cb TimerCallback) TimerID {
	return el.RunAt(time.Now().Add(delay), cb)
}

// RunEvery runs cb every interval, starting one interval from now.
func (el *EventLoop) RunEvery(interval time.Duration, cb TimerCallback) TimerID {
	return el.timerQueue.addTimer(cb, time.Now().Add(interval), interval)
}

// Cancel stops the timer behind id, unknown or expired ids are ignored.
func (el *EventLoop) Cancel(id TimerID) {
	el.timerQueue.cancel(id)
}

// Wakeup interrupts the readiness wait of the loop.
func (el *EventLoop) Wakeup() {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if el.closed {
		return
	}
	el.wakeup()
}

func (el *EventLoop) wakeup() {
	if err := netpoll.WriteEventfd(el.wakeupFd); err != nil {
		logging.Errorf("event loop %p wakeup: %v", el, err)
	}
}

func (el *EventLoop) handleWakeup(time.Time) {
	if _, err := netpoll.ReadEventfd(el.wakeupFd); err != nil {
		logging.Errorf("event loop %p handle wakeup: %v", el, err)
	}
}

func (el *EventLoop) doPendingTasks() {
	el.callingPendingTasks.Store(true)
	for _, task := range el.tasks.Swap() {
		task()
	}
	el.callingPendingTasks.Store(false)
}

func (el *EventLoop) IsInLoopThread() bool {
	return unix.Gettid() == el.tid
}

// PollReturnTime is the time the last readiness wait returned.
func (el *EventLoop) PollReturnTime() time.Time {
	return el.pollReturnTime
}

// Iteration counts the readiness waits so far.
func (el *EventLoop) Iteration() int64 {
	return el.iteration.Load()
}

func (el *EventLoop) EventHandling() bool {
	return el.eventHandling
}

func (el *EventLoop) updateChannel(c *Channel) {
	if c.loop != el {
		panic(fmt.Errorf("channel fd=%d belongs to loop %p, not %p", c.fd, c.loop, el))
	}
	el.assertInLoopThread()
	el.poller.UpdateChannel(c)
}

func (el *EventLoop) removeChannel(c *Channel) {
	if c.loop != el {
		panic(fmt.Errorf("channel fd=%d belongs to loop %p, not %p", c.fd, c.loop, el))
	}
	el.assertInLoopThread()
	el.poller.RemoveChannel(c)
}

func (el *EventLoop) hasChannel(c *Channel) bool {
	el.assertInLoopThread()
	return el.poller.HasChannel(c)
}

func (el *EventLoop) assertInLoopThread() {
	if !el.IsInLoopThread() {
		panic(fmt.Errorf("event loop %p was created in thread %d, current thread is %d: %w",
			el, el.tid, unix.Gettid(), ErrNotInLoopThread))
	}
}

func (el *EventLoop) isClosed() bool {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.closed
}
