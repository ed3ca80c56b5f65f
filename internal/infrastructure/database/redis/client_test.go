package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewClient_Success(t *testing.T) {
	c, _ := newTestClient(t)
	assert.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "test:x", c.Key("x"))
	assert.NotNil(t, c.PoolStats())
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	c, err := NewClient(config.RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}, logging.NewNopLogger())
	assert.Nil(t, c)
	assert.True(t, errors.IsCode(err, errors.CodeCacheError))
}

func TestClient_Close(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "second close is a no-op")
	assert.ErrorIs(t, c.Ping(context.Background()), ErrClientClosed)

	_, err := c.SetNX(context.Background(), "k", 1, time.Second)
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, c.Del(context.Background(), "k"), ErrClientClosed)
}

func TestClient_SetNX(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "reminder:c1", "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "reminder:c1", "1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("test:reminder:c1"))
	mr.FastForward(2 * time.Hour)
	ok, err = c.SetNX(ctx, "reminder:c1", "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_Del(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "reminder:c1", "1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Del(ctx, "reminder:c1", "reminder:absent"))
	assert.False(t, mr.Exists("test:reminder:c1"))

	ok, err = c.SetNX(ctx, "reminder:c1", "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "key is free again after Del")
}
