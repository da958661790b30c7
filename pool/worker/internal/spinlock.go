// 锁持有时间极短（只包住 workerArray 的操作），自旋 + Gosched 比 sync.Mutex 的 park/ready 更轻

package internal

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type spinlock uint32

func (sl *spinlock) Lock() {
	for !atomic.CompareAndSwapUint32((*uint32)(sl), 0, 1) {
		runtime.Gosched()
	}
}

func (sl *spinlock) Unlock() {
	atomic.StoreUint32((*uint32)(sl), 0)
}

// NewSpinLock returns a sync.Locker that yields the processor while spinning.
func NewSpinLock() sync.Locker {
	return new(spinlock)
}
