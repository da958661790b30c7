//go:build linux
// +build linux

package main

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netreactor/pool/worker"
)

func TestEchoQueueKeepsOrder(t *testing.T) {
	p, err := worker.NewPool(16)
	require.NoError(t, err)
	defer p.Release()

	var (
		q    echoQueue
		mu   sync.Mutex
		sent []string
		wg   sync.WaitGroup
		want []string
	)
	send := func(s string) error {
		mu.Lock()
		sent = append(sent, s)
		mu.Unlock()
		return nil
	}
	for i := 0; i < 2000; i++ {
		data := strconv.Itoa(i)
		want = append(want, data)
		q.push(data)
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			assert.NoError(t, q.flush(send))
		}))
	}
	wg.Wait()
	assert.Equal(t, want, sent)
}
