package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBUser     = "landlord"
	DefaultDBName     = "landlordcomply"
	DefaultDBMaxConns = 20

	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisPrefix  = "lc:"
	DefaultRuleCacheTTL = 10 * time.Minute
	DefaultCaseLockTTL  = 15 * time.Second

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "landlordcomply-worker"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "landlordcomply-documents"

	DefaultTokenTTL = 12 * time.Hour

	DefaultRequestsPerWindow = 120
	DefaultEmailMaxPerWindow = 5
	DefaultEmailWindow       = time.Hour

	DefaultSweepInterval      = 15 * time.Minute
	DefaultReminderWindowDays = 3

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// setDefaults registers every default with v. Registering keys is also what
// lets AutomaticEnv resolve LANDLORD_* variables during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", int64(1<<20))
	v.SetDefault("server.shutdown_timeout", 20*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.host", DefaultDBHost)
	v.SetDefault("database.port", DefaultDBPort)
	v.SetDefault("database.user", DefaultDBUser)
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", DefaultDBName)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", DefaultDBMaxConns)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.key_prefix", DefaultRedisPrefix)
	v.SetDefault("redis.rule_cache_ttl", DefaultRuleCacheTTL)
	v.SetDefault("redis.case_lock_ttl", DefaultCaseLockTTL)

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("kafka.group_id", DefaultKafkaGroupID)
	v.SetDefault("kafka.client_id", "landlordcomply")
	v.SetDefault("kafka.topic_prefix", "")
	v.SetDefault("kafka.batch_timeout", 50*time.Millisecond)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.auto_create_topics", true)
	v.SetDefault("kafka.num_partitions", 3)

	v.SetDefault("minio.endpoint", DefaultMinIOEndpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", DefaultMinIOBucket)
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.presign_expiry", 15*time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "landlordcomply")
	v.SetDefault("auth.audience", "landlordcomply-api")
	v.SetDefault("auth.token_ttl", DefaultTokenTTL)

	v.SetDefault("rate_limit.requests_per_window", DefaultRequestsPerWindow)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.email_max_per_window", DefaultEmailMaxPerWindow)
	v.SetDefault("rate_limit.email_window", DefaultEmailWindow)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.sweep_interval", DefaultSweepInterval)
	v.SetDefault("worker.reminder_window_days", DefaultReminderWindowDays)
	v.SetDefault("worker.sweep_batch_size", 200)
	v.SetDefault("worker.max_retries", 3)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "landlordcomply")
	v.SetDefault("metrics.path", "/metrics")
}

// ApplyDefaults fills zero-value fields of a Config built without viper,
// e.g. in tests. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisPrefix
	}
	if cfg.Redis.RuleCacheTTL == 0 {
		cfg.Redis.RuleCacheTTL = DefaultRuleCacheTTL
	}
	if cfg.Redis.CaseLockTTL == 0 {
		cfg.Redis.CaseLockTTL = DefaultCaseLockTTL
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 15 * time.Minute
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit.RequestsPerWindow = DefaultRequestsPerWindow
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.EmailMaxPerWindow == 0 {
		cfg.RateLimit.EmailMaxPerWindow = DefaultEmailMaxPerWindow
	}
	if cfg.RateLimit.EmailWindow == 0 {
		cfg.RateLimit.EmailWindow = DefaultEmailWindow
	}
	if cfg.Worker.SweepInterval == 0 {
		cfg.Worker.SweepInterval = DefaultSweepInterval
	}
	if cfg.Worker.ReminderWindowDays == 0 {
		cfg.Worker.ReminderWindowDays = DefaultReminderWindowDays
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
