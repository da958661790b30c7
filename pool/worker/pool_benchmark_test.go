package worker

import (
	"sync"
	"testing"
	"time"
)

const (
	runTimes     = 100000
	benchParam   = 10
	poolCapacity = 20000
)

func demoFunc() {
	time.Sleep(time.Duration(benchParam) * time.Millisecond)
}

func BenchmarkGoroutines(b *testing.B) {
	var wg sync.WaitGroup
	for i := 0; i < b.N; i++ {
		wg.Add(runTimes)
		for j := 0; j < runTimes; j++ {
			go func() {
				demoFunc()
				wg.Done()
			}()
		}
		wg.Wait()
	}
}

func BenchmarkPool(b *testing.B) {
	var wg sync.WaitGroup
	p, _ := NewPool(poolCapacity, WithExpiryDuration(DefaultCleanIntervalTime))
	defer p.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wg.Add(runTimes)
		for j := 0; j < runTimes; j++ {
			_ = p.Submit(func() {
				demoFunc()
				wg.Done()
			})
		}
		wg.Wait()
	}
}

func BenchmarkPoolThroughput(b *testing.B) {
	p, _ := NewPool(poolCapacity)
	defer p.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < runTimes; j++ {
			_ = p.Submit(demoFunc)
		}
	}
}
