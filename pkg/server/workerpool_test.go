package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSerializesBeyondItsSize(t *testing.T) {
	pool := NewPool(1)
	require.Equal(t, 1, pool.Size())

	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	done := make(chan struct{})

	run := func() {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}

	for i := 0; i < 3; i++ {
		go func() {
			_ = pool.Run(context.Background(), run)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestPoolRunReturnsContextErrorWhenSlotsExhausted(t *testing.T) {
	pool := NewPool(1)

	blocker := make(chan struct{})
	go pool.Run(context.Background(), func() { <-blocker })
	time.Sleep(5 * time.Millisecond) // let the first Run claim the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := pool.Run(ctx, func() { t.Fatal("fn must not run without a free slot") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(blocker)
}

func TestNewPoolDefaultsToGOMAXPROCS(t *testing.T) {
	pool := NewPool(0)
	assert.Positive(t, pool.Size())
}
