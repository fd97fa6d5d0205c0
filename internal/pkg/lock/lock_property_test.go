// Package lock property-based tests for keyed locking.
package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty: for any concurrent balance operations on
// the same key, the final balance equals sequential execution of all operations.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initialBalance
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		key := UserKey(rapid.Int64Range(1, 1000000).Draw(t, "userID"))
		kl := New()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				kl.Lock(key)
				defer kl.Unlock(key)
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
	})
}

// TestWithLockContextMultiKeyProperty: transfers between overlapping key sets,
// locked in any argument order, never deadlock and conserve the total.
func TestWithLockContextMultiKeyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(2, 6).Draw(t, "numUsers")
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")

		balances := make(map[int64]*int64, numUsers)
		var total int64
		for i := 1; i <= numUsers; i++ {
			b := int64(1000)
			balances[int64(i)] = &b
			total += b
		}

		type transfer struct{ from, to, amount int64 }
		ops := make([]transfer, numOps)
		for i := range ops {
			from := rapid.Int64Range(1, int64(numUsers)).Draw(t, "from")
			to := rapid.Int64Range(1, int64(numUsers)).Draw(t, "to")
			ops[i] = transfer{from, to, rapid.Int64Range(1, 50).Draw(t, "amount")}
		}

		kl := New()
		ctx := context.Background()
		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, op := range ops {
			go func(op transfer) {
				defer wg.Done()
				_ = kl.WithLockContext(ctx, 5*time.Second, func() error {
					*balances[op.from] -= op.amount
					*balances[op.to] += op.amount
					return nil
				}, UserKey(op.to), UserKey(op.from))
			}(op)
		}
		wg.Wait()

		var sum int64
		for _, b := range balances {
			sum += *b
		}
		if sum != total {
			t.Fatalf("total not conserved: expected %d, got %d", total, sum)
		}
	})
}

// TestWithLockContextExclusiveProperty: callers holding the same key never
// overlap, and the key is free once they are done.
func TestWithLockContextExclusiveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := TableKey(rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "table"))
		numCallers := rapid.IntRange(5, 20).Draw(t, "numCallers")

		kl := New()
		ctx := context.Background()
		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numCallers)
		startCh := make(chan struct{})

		for i := 0; i < numCallers; i++ {
			go func() {
				defer wg.Done()
				<-startCh
				_ = kl.WithLockContext(ctx, 5*time.Second, func() error {
					n := inside.Add(1)
					for {
						m := maxInside.Load()
						if n <= m || maxInside.CompareAndSwap(m, n) {
							break
						}
					}
					time.Sleep(time.Microsecond)
					inside.Add(-1)
					return nil
				}, key)
			}()
		}
		close(startCh)
		wg.Wait()

		if got := maxInside.Load(); got != 1 {
			t.Fatalf("expected one holder at a time, saw %d", got)
		}
		if !kl.LockWithTimeout(ctx, key, time.Second) {
			t.Fatal("lock should be available after all callers complete")
		}
		kl.Unlock(key)
	})
}

// free reports whether key can be taken right now. It releases the key again.
func free(kl *KeyLock, key string) bool {
	if !kl.LockWithTimeout(context.Background(), key, 5*time.Millisecond) {
		return false
	}
	kl.Unlock(key)
	return true
}

func TestLockWithTimeoutExpires(t *testing.T) {
	kl := New()
	kl.Lock("k")

	ok := kl.LockWithTimeout(context.Background(), "k", 20*time.Millisecond)
	assert.False(t, ok)

	kl.Unlock("k")
	require.Eventually(t, func() bool { return free(kl, "k") }, time.Second, 10*time.Millisecond)
}

func TestWithLockContextTimeout(t *testing.T) {
	kl := New()
	kl.Lock(UserKey(1))
	defer kl.Unlock(UserKey(1))

	called := false
	err := kl.WithLockContext(context.Background(), 10*time.Millisecond, func() error {
		called = true
		return nil
	}, UserKey(2), UserKey(1))

	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)
	assert.True(t, free(kl, UserKey(2)))
}

func TestWithLockContextCancelled(t *testing.T) {
	kl := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := kl.WithLockContext(ctx, time.Second, func() error { return nil }, UserKey(7))
	assert.ErrorIs(t, err, context.Canceled)
	require.Eventually(t, func() bool { return free(kl, UserKey(7)) }, time.Second, 10*time.Millisecond)
}
