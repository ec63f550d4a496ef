package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
)

func TestMutex_Lock_Unlock(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("loan:abc", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))
	assert.True(t, mr.Exists("eduloan:lock:loan:abc"))

	ttl, err := lock.TTL(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Second, ttl)

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists("eduloan:lock:loan:abc"))
}

func TestMutex_Lock_Contention(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock1 := factory.NewMutex("loan:abc", WithRetryCount(1), WithRetryDelay(10*time.Millisecond))
	lock2 := factory.NewMutex("loan:abc", WithRetryCount(1), WithRetryDelay(10*time.Millisecond))

	require.NoError(t, lock1.Lock(ctx))
	assert.ErrorIs(t, lock2.Lock(ctx), ErrLockNotAcquired)

	require.NoError(t, lock1.Unlock(ctx))
	assert.NoError(t, lock2.Lock(ctx))
}

func TestMutex_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock1 := factory.NewMutex("loan:abc", WithLockTTL(time.Second))
	lock2 := factory.NewMutex("loan:abc", WithLockTTL(time.Second), WithRetryCount(1))
	require.NoError(t, lock1.Lock(ctx))

	mr.FastForward(2 * time.Second)
	require.NoError(t, lock2.Lock(ctx))

	assert.ErrorIs(t, lock1.Unlock(ctx), ErrLockNotHeld)
	assert.True(t, mr.Exists("eduloan:lock:loan:abc"))

	ok, err := lock1.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockFactory_AcquireSerializes(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger(), WithRetryDelay(time.Millisecond), WithRetryCount(5000))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := factory.Acquire(ctx, "loan:abc")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.False(t, mr.Exists("eduloan:lock:loan:abc"))
}

func TestLockFactory_AcquireHonoursContext(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger(), WithRetryDelay(50*time.Millisecond))

	release, err := factory.Acquire(context.Background(), "loan:abc")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = factory.Acquire(ctx, "loan:abc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

//Personal.AI order the ending
