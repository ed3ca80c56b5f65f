package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeCaseLocked, "resource is being modified by another request")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// Locker hands out short-lived mutexes, e.g. one per case id.
type Locker interface {
	NewMutex(name string, opts ...LockOption) Mutex
}

// Mutex is a single-owner lock with an expiry.
type Mutex interface {
	Lock(ctx context.Context) error
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
}

type LockOption func(*lockConfig)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

func WithRetryDelay(d time.Duration) LockOption {
	return func(c *lockConfig) { c.retryDelay = d }
}

func WithRetryCount(n int) LockOption {
	return func(c *lockConfig) { c.retryCount = n }
}

type lockConfig struct {
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
}

type redisLocker struct {
	client *Client
	log    logging.Logger
}

func NewLocker(client *Client, log logging.Logger) Locker {
	return &redisLocker{client: client, log: log}
}

func (f *redisLocker) NewMutex(name string, opts ...LockOption) Mutex {
	cfg := lockConfig{ttl: 15 * time.Second, retryDelay: 50 * time.Millisecond, retryCount: 40}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.retryCount < 1 {
		cfg.retryCount = 1
	}
	return &redisMutex{
		client: f.client,
		key:    f.client.Key("lock:" + name),
		value:  uuid.NewString(),
		config: cfg,
		logger: f.log,
	}
}

type redisMutex struct {
	client *Client
	key    string
	value  string
	config lockConfig
	logger logging.Logger
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

func (m *redisMutex) Lock(ctx context.Context) error {
	for i := 0; i < m.config.retryCount; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.retryDelay):
		}
	}
	return ErrLockNotAcquired.WithDetail(m.key)
}

func (m *redisMutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.rdb.SetNX(ctx, m.key, m.value, m.config.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeCacheError, "failed to set lock")
	}
	return ok, nil
}

func (m *redisMutex) Unlock(ctx context.Context) error {
	res, err := unlockScript.Run(ctx, m.client.rdb, []string{m.key}, m.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail(m.key)
	}
	return nil
}

func (m *redisMutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, m.client.rdb, []string{m.key}, m.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeCacheError, "failed to extend lock")
	}
	return res == 1, nil
}
