// Package lock provides keyed in-process locks. Round transitions hold a
// table key and side-bet placement holds the bettor's user key, so the store
// only sees one such unit of work per key at a time.
package lock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// keyMutex wraps a mutex with reference counting for cleanup.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyLock provides per-key locking. Keys are namespaced strings such as
// "user:42" or "table:roulette-vip".
type KeyLock struct {
	locks sync.Map // map[string]*keyMutex
	pool  sync.Pool
}

// New creates a new KeyLock instance.
func New() *KeyLock {
	return &KeyLock{
		pool: sync.Pool{
			New: func() any {
				return &keyMutex{}
			},
		},
	}
}

// UserKey returns the lock key of a wallet.
func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// TableKey returns the lock key of a table.
func TableKey(tableID string) string {
	return "table:" + tableID
}

// getLock retrieves or creates the mutex for key.
func (kl *KeyLock) getLock(key string) *keyMutex {
	if v, ok := kl.locks.Load(key); ok {
		return v.(*keyMutex)
	}

	newLock := kl.pool.Get().(*keyMutex)
	newLock.refCount = 0

	// Store or load existing (handles race condition)
	actual, loaded := kl.locks.LoadOrStore(key, newLock)
	if loaded {
		kl.pool.Put(newLock)
	}
	return actual.(*keyMutex)
}

// Lock acquires the lock for key.
func (kl *KeyLock) Lock(key string) {
	l := kl.getLock(key)
	l.mu.Lock()
	l.refCount++
}

// Unlock releases the lock for key.
func (kl *KeyLock) Unlock(key string) {
	if v, ok := kl.locks.Load(key); ok {
		l := v.(*keyMutex)
		l.refCount--
		l.mu.Unlock()
	}
}

// LockWithTimeout attempts to acquire the lock until timeout or ctx is done.
// Returns true if the lock was acquired.
func (kl *KeyLock) LockWithTimeout(ctx context.Context, key string, timeout time.Duration) bool {
	l := kl.getLock(key)

	done := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		l.refCount++
		return true
	case <-timeoutCtx.Done():
		// The waiter still acquires eventually; release it once it does.
		go func() {
			<-done
			l.mu.Unlock()
		}()
		return false
	}
}

// WithLockContext executes fn while holding every key, acquired in sorted
// order so that overlapping key sets cannot deadlock.
func (kl *KeyLock) WithLockContext(ctx context.Context, timeout time.Duration, fn func() error, keys ...string) error {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	acquired := make([]string, 0, len(keys))
	defer func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			kl.Unlock(acquired[i])
		}
	}()

	for _, key := range keys {
		if !kl.LockWithTimeout(ctx, key, timeout) {
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrLockTimeout
		}
		acquired = append(acquired, key)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

