package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConcurrencyLimit(t *testing.T) {
	pool := New(2)
	defer func() {
		_ = pool.Shutdown(context.Background())
	}()

	var current int32
	var max int32

	work := func() {
		val := atomic.AddInt32(&current, 1)
		for {
			prev := atomic.LoadInt32(&max)
			if val <= prev {
				break
			}
			if atomic.CompareAndSwapInt32(&max, prev, val) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&current, -1)
	}

	for i := 0; i < 6; i++ {
		if err := pool.TrySubmit(work); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	_ = pool.Shutdown(context.Background())
	if max > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", max)
	}
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	pool := New(1)
	_ = pool.Shutdown(context.Background())
	assert.ErrorIs(t, pool.TrySubmit(func() {}), ErrPoolClosed)
	pool.StopNow()
}

func TestPoolSize(t *testing.T) {
	pool := New(0)
	defer func() {
		_ = pool.Shutdown(context.Background())
	}()
	assert.Equal(t, 1, pool.Size())
}

func TestPoolTrySubmitQueueFull(t *testing.T) {
	pool := New(1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, pool.TrySubmit(func() {
		close(started)
		<-release
	}))
	<-started

	var queued int
	var full bool
	for i := 0; i < 100; i++ {
		if err := pool.TrySubmit(func() {}); err != nil {
			require.ErrorIs(t, err, ErrQueueFull)
			full = true
			break
		}
		queued++
	}
	assert.True(t, full)
	assert.Equal(t, 8, queued)

	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPoolShutdownContextTimeout(t *testing.T) {
	pool := New(1)
	release := make(chan struct{})
	require.NoError(t, pool.TrySubmit(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)
	close(release)
}
