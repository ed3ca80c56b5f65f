package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")

// nullMarker caches a loader's "nothing found" for a short time so repeated
// lookups of a missing key do not reach the database.
const nullMarker = "__null__"

// Cache is a JSON read-through cache.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// GetOrLoad fills dest from the cache, or calls loader once per key across
	// concurrent callers and caches its result. A loader returning
	// (nil, nil) caches a short-lived miss and yields ErrCacheMiss.
	GetOrLoad(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

type redisCache struct {
	client       *Client
	logger       logging.Logger
	defaultTTL   time.Duration
	nullCacheTTL time.Duration
	group        singleflight.Group
}

type CacheOption func(*redisCache)

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

func WithNullCacheTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.nullCacheTTL = ttl }
}

func NewCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	c := &redisCache{
		client:       client,
		logger:       log,
		defaultTTL:   10 * time.Minute,
		nullCacheTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// jitter spreads expiry by +/-10% so entries written together do not all
// expire together.
func jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(float64(ttl)*0.1*(rand.Float64()*2-1))
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client.isClosed() {
		return ErrClientClosed
	}
	data, err := c.client.rdb.Get(ctx, c.client.Key(key)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to get from cache")
	}
	if string(data) == nullMarker {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode cached value")
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client.isClosed() {
		return ErrClientClosed
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode cache value")
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.rdb.Set(ctx, c.client.Key(key), data, jitter(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to set cache")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.client.Key(k)
	}
	if err := c.client.rdb.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to delete from cache")
	}
	return nil
}

func (c *redisCache) GetOrLoad(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if err != ErrCacheMiss {
		// Cache trouble must not take reads down; fall through to the loader.
		c.logger.Warn("Cache read failed, loading from source", logging.String("key", key), logging.Err(err))
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		val, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if val == nil {
			c.client.rdb.Set(ctx, c.client.Key(key), nullMarker, c.nullCacheTTL)
			return nil, nil
		}
		data, encErr := json.Marshal(val)
		if encErr != nil {
			return nil, errors.Wrap(encErr, errors.ErrCodeSerialization, "failed to encode cache value")
		}
		if ttl == 0 {
			ttl = c.defaultTTL
		}
		if setErr := c.client.rdb.Set(ctx, c.client.Key(key), data, jitter(ttl)).Err(); setErr != nil {
			c.logger.Warn("Failed to populate cache", logging.String("key", key), logging.Err(setErr))
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if v == nil {
		return ErrCacheMiss
	}
	return json.Unmarshal(v.([]byte), dest)
}

func (c *redisCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	var cursor uint64
	match := c.client.Key(prefix) + "*"
	for {
		keys, next, err := c.client.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, errors.Wrap(err, errors.CodeCacheError, "failed to scan cache keys")
		}
		if len(keys) > 0 {
			if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
				return deleted, errors.Wrap(err, errors.CodeCacheError, "failed to delete cache keys")
			}
			deleted += int64(len(keys))
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
