package internal

import (
	"sync"
)

// Task is a unit of work posted to an event loop.
type Task func()

// TaskQueue collects tasks from any goroutine, the owner drains them in one swap.
type TaskQueue struct {
	lock  sync.Mutex
	tasks []Task
}

// Push appends task and returns the number of queued tasks.
func (q *TaskQueue) Push(task Task) (tasksNum int) {
	q.lock.Lock()
	q.tasks = append(q.tasks, task)
	tasksNum = len(q.tasks)
	q.lock.Unlock()
	return
}

// Swap takes every queued task out, leaving the queue empty.
// 只在临界区内交换切片，执行任务时不持锁
func (q *TaskQueue) Swap() (tasks []Task) {
	q.lock.Lock()
	tasks = q.tasks
	q.tasks = nil
	q.lock.Unlock()
	return
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() (n int) {
	q.lock.Lock()
	n = len(q.tasks)
	q.lock.Unlock()
	return
}
