package lane

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_AcquireFreeLane(t *testing.T) {
	s := NewSerializer()
	key := Key{Scope: "aws-cognito", ResourceID: "pool-1"}

	release, err := s.Acquire(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, s.IsLocked(key))
	assert.Equal(t, 1, s.HeldCount())

	release()
	assert.False(t, s.IsLocked(key))
	assert.Equal(t, 0, s.HeldCount())
}

func TestSerializer_MutualExclusion(t *testing.T) {
	s := NewSerializer()
	key := Key{Scope: "aws-cognito", ResourceID: "pool-1"}

	release1, err := s.Acquire(context.Background(), key)
	require.NoError(t, err)

	secondAcquired := make(chan struct{})
	go func() {
		release2, err := s.Acquire(context.Background(), key)
		require.NoError(t, err)
		close(secondAcquired)
		release2()
	}()

	// The second acquire must not resolve while the first holds the lane.
	select {
	case <-secondAcquired:
		t.Fatal("second acquire resolved while lane was held")
	case <-time.After(50 * time.Millisecond):
	}

	release1()

	select {
	case <-secondAcquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never resolved after release")
	}
}

func TestSerializer_DistinctKeysNeverBlock(t *testing.T) {
	s := NewSerializer()

	releaseA, err := s.Acquire(context.Background(), Key{Scope: "p", ResourceID: "A"})
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := s.Acquire(context.Background(), Key{Scope: "p", ResourceID: "B"})
		require.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire of independent key blocked")
	}
	assert.True(t, s.IsLocked(Key{Scope: "p", ResourceID: "A"}))
}

func TestSerializer_FIFOOrdering(t *testing.T) {
	s := NewSerializer()
	key := Key{Scope: "p", ResourceID: "r"}

	release, err := s.Acquire(context.Background(), key)
	require.NoError(t, err)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Queue waiters one at a time so their FIFO positions are fixed.
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		started := make(chan struct{})
		go func(n int) {
			defer wg.Done()
			close(started)
			r, err := s.Acquire(context.Background(), key)
			require.NoError(t, err)
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			r()
		}(i)
		<-started
		time.Sleep(20 * time.Millisecond)
	}

	release()
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSerializer_DoubleReleaseIsSafe(t *testing.T) {
	s := NewSerializer()
	key := Key{Scope: "p", ResourceID: "r"}

	release1, err := s.Acquire(context.Background(), key)
	require.NoError(t, err)

	waiterHolds := make(chan struct{})
	waiterDone := make(chan struct{})
	go func() {
		r, err := s.Acquire(context.Background(), key)
		require.NoError(t, err)
		close(waiterHolds)
		<-waiterDone
		r()
	}()

	release1()
	<-waiterHolds

	// A stale second release of the first handle must not steal the lane
	// from the current holder.
	release1()
	assert.True(t, s.IsLocked(key))

	close(waiterDone)
}

func TestSerializer_CancelledWaiter(t *testing.T) {
	s := NewSerializer()
	key := Key{Scope: "p", ResourceID: "r"}

	release, err := s.Acquire(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Acquire(ctx, key)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err = <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned waiter must not absorb the release.
	release()
	assert.False(t, s.IsLocked(key))
}

func TestSerializer_ConcurrentAcquireReleaseCycles(t *testing.T) {
	s := NewSerializer()
	key := Key{Scope: "p", ResourceID: "shared"}

	var inCritical atomic.Int32
	var violations atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				release, err := s.Acquire(context.Background(), key)
				if err != nil {
					violations.Add(1)
					return
				}
				if inCritical.Add(1) != 1 {
					violations.Add(1)
				}
				inCritical.Add(-1)
				release()
			}
		}()
	}

	wg.Wait()
	assert.Zero(t, violations.Load())
	assert.False(t, s.IsLocked(key))
	assert.Empty(t, s.HeldKeys())
}

func TestKey_Composite(t *testing.T) {
	key := Key{Scope: "aws-s3", ResourceID: "bucket-7"}
	assert.Equal(t, "aws-s3:bucket-7", key.Composite())
}
