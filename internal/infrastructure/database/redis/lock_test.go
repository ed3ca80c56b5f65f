package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

func TestMutex_LockUnlock(t *testing.T) {
	c, mr := newTestClient(t)
	locker := NewLocker(c, logging.NewNopLogger())
	ctx := context.Background()

	a := locker.NewMutex("case:c1", WithLockTTL(time.Second))
	require.NoError(t, a.Lock(ctx))
	assert.True(t, mr.Exists("test:lock:case:c1"))

	b := locker.NewMutex("case:c1", WithRetryCount(2), WithRetryDelay(time.Millisecond))
	err := b.Lock(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCaseLocked))

	assert.True(t, errors.IsCode(b.Unlock(ctx), errors.CodeConflict), "only the owner may unlock")

	require.NoError(t, a.Unlock(ctx))
	ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMutex_ExpiresAndExtends(t *testing.T) {
	c, mr := newTestClient(t)
	locker := NewLocker(c, logging.NewNopLogger())
	ctx := context.Background()

	m := locker.NewMutex("case:c2", WithLockTTL(time.Second))
	require.NoError(t, m.Lock(ctx))

	ok, err := m.Extend(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, mr.TTL("test:lock:case:c2"))

	mr.FastForward(11 * time.Second)
	ok, err = m.Extend(ctx, time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "expired lock cannot be extended")
}

func TestMutex_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t)
	locker := NewLocker(c, logging.NewNopLogger())

	holder := locker.NewMutex("case:c3")
	require.NoError(t, holder.Lock(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	waiter := locker.NewMutex("case:c3", WithRetryDelay(time.Second))
	assert.ErrorIs(t, waiter.Lock(ctx), context.Canceled)
}
