package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerStack(t *testing.T) {
	q := newWorkerArray(stackType, 0)
	assert.True(t, q.isEmpty())

	old := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.insert(&goWorker{recycleTime: old}))
	}
	fresh := &goWorker{recycleTime: time.Now()}
	require.NoError(t, q.insert(fresh))
	assert.Equal(t, 6, q.len())

	expired := q.retrieveExpiry(time.Minute)
	assert.Len(t, expired, 5)
	assert.Equal(t, 1, q.len())
	assert.Same(t, fresh, q.detach())
	assert.Nil(t, q.detach())
}

func TestWorkerLoopQueue(t *testing.T) {
	q := newWorkerArray(loopQueueType, 3)
	old := time.Now().Add(-time.Hour)

	require.NoError(t, q.insert(&goWorker{recycleTime: old}))
	require.NoError(t, q.insert(&goWorker{recycleTime: old}))
	fresh := &goWorker{recycleTime: time.Now()}
	require.NoError(t, q.insert(fresh))
	assert.Equal(t, 3, q.len())
	assert.ErrorIs(t, q.insert(&goWorker{}), errQueueIsFull)

	expired := q.retrieveExpiry(time.Minute)
	assert.Len(t, expired, 2)
	assert.Equal(t, 1, q.len())

	// wraps around the ring
	require.NoError(t, q.insert(&goWorker{recycleTime: time.Now()}))
	require.NoError(t, q.insert(&goWorker{recycleTime: time.Now()}))
	assert.Equal(t, 3, q.len())
	assert.Same(t, fresh, q.detach())
	assert.Equal(t, 2, q.len())

	assert.ErrorIs(t, newWorkerLoopQueue(0).insert(&goWorker{}), errQueueIsReleased)
}
