package internal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskQueueOrder(t *testing.T) {
	var q TaskQueue
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		assert.Equal(t, i+1, q.Push(func() { got = append(got, i) }))
	}
	for _, task := range q.Swap() {
		task()
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Swap())
}

func TestTaskQueueConcurrentPush(t *testing.T) {
	var (
		q  TaskQueue
		wg sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(func() {})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, q.Swap(), 800)
}
