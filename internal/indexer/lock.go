package indexer

import "sync/atomic"

// IndexLock guards a workspace pass. A second pass started while one is
// running fails fast instead of queueing behind it.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Held reports whether a pass is running
func (l *IndexLock) Held() bool {
	return l.held.Load()
}
