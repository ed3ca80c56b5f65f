package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8081
  mode: debug
database:
  host: db.internal
  user: landlord
  password: secret
  db_name: landlordcomply
redis:
  addr: redis.internal:6379
  rule_cache_ttl: 2m
kafka:
  brokers: ["k1:9092", "k2:9092"]
minio:
  bucket: docs
auth:
  jwt_secret: "a-very-long-test-secret"
rate_limit:
  email_max_per_window: 3
  email_window: 30m
log:
  level: debug
  format: console
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, DefaultDBPort, cfg.Database.Port)
	assert.Equal(t, 2*time.Minute, cfg.Redis.RuleCacheTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.RateLimit.EmailMaxPerWindow)
	assert.Equal(t, 30*time.Minute, cfg.RateLimit.EmailWindow)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("LANDLORD_DATABASE_HOST", "override.internal")
	t.Setenv("LANDLORD_SERVER_PORT", "9090")
	t.Setenv("LANDLORD_WORKER_SWEEP_INTERVAL", "1m")

	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Worker.SweepInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LANDLORD_AUTH_JWT_SECRET", "env-only-secret-value")
	t.Setenv("LANDLORD_REDIS_ADDR", "cache:6380")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultMinIOBucket, cfg.MinIO.Bucket)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "log:\n  level: verbose\nauth:\n  jwt_secret: a-very-long-test-secret\n"))
	assert.ErrorContains(t, err, "log.level")
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	var level atomic.Value
	require.NoError(t, Watch(path, func(c *Config) { level.Store(c.Log.Level) }, nil))

	updated := strings.Replace(validConfigYAML, "level: debug", "level: warn", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	assert.Eventually(t, func() bool {
		v, _ := level.Load().(string)
		return v == "warn"
	}, 5*time.Second, 50*time.Millisecond)
}
