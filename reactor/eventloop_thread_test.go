//go:build linux
// +build linux

package reactor

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoopThreadInitCallback(t *testing.T) {
	var initInLoop atomic.Bool
	thread := NewEventLoopThread(func(loop *EventLoop) {
		initInLoop.Store(loop.IsInLoopThread())
	}, "init")
	loop, err := thread.StartLoop()
	require.NoError(t, err)
	require.NotNil(t, loop)
	assert.True(t, initInLoop.Load())
	assert.Same(t, loop, thread.Loop())

	_, err = thread.StartLoop()
	assert.Error(t, err)

	thread.Stop()
	thread.Stop()
}

func TestEventLoopThreadPoolRoundRobin(t *testing.T) {
	base := startLoopThread(t)
	pool := NewEventLoopThreadPool(base, "pool", RoundRobin)
	pool.SetThreadNum(3)

	var inits atomic.Int32
	require.NoError(t, pool.Start(func(*EventLoop) { inits.Add(1) }))
	defer pool.Stop()
	assert.True(t, pool.Started())
	assert.Equal(t, int32(3), inits.Load())

	loops := pool.GetAllLoops()
	require.Len(t, loops, 3)
	for _, l := range loops {
		assert.NotSame(t, base, l)
	}
	for i := 0; i < 7; i++ {
		assert.Same(t, loops[i%3], pool.GetNextLoop())
	}
	assert.Same(t, pool.GetLoopForHash(42), pool.GetLoopForHash(42))
	assert.Same(t, loops[42%3], pool.GetLoopForHash(42))

	// negative hashes never index out of range
	for _, h := range []int{-1, -42, math.MinInt, math.MaxInt} {
		l := pool.GetLoopForHash(h)
		assert.Contains(t, loops, l)
		assert.Same(t, l, pool.GetLoopForHash(h))
	}
}

func TestEventLoopThreadPoolWithoutThreads(t *testing.T) {
	base := startLoopThread(t)
	pool := NewEventLoopThreadPool(base, "empty", RoundRobin)

	var initLoop atomic.Pointer[EventLoop]
	require.NoError(t, pool.Start(func(l *EventLoop) { initLoop.Store(l) }))
	assert.Same(t, base, initLoop.Load())
	assert.Same(t, base, pool.GetNextLoop())
	assert.Same(t, base, pool.GetLoopForHash(7))
	assert.Equal(t, []*EventLoop{base}, pool.GetAllLoops())
	pool.Stop()
}
