// Command apiserver serves the LandlordComply HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/application/cases"
	"github.com/landlordcomply/landlordcomply/internal/application/notification"
	"github.com/landlordcomply/landlordcomply/internal/application/rules"
	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/auth"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres/repositories"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/redis"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/messaging/kafka"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/storage/minio"
	httpserver "github.com/landlordcomply/landlordcomply/internal/interfaces/http"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/handlers"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	migrate := flag.Bool("migrate", true, "apply pending database migrations at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(logging.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("apiserver")
	logging.SetDefault(logger)

	if err := run(cfg, *configPath, *migrate, logger); err != nil {
		logger.Fatal("API server stopped with error", logging.Err(err))
	}
	logger.Info("API server stopped")
}

func run(cfg *config.Config, configPath string, migrate bool, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting LandlordComply API server",
		logging.String("version", version),
		logging.String("addr", cfg.Server.Addr()),
		logging.String("mode", cfg.Server.Mode))

	namespace := cfg.Metrics.Namespace
	if namespace == "" {
		namespace = "landlordcomply"
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metrics := prometheus.NewAppMetrics(collector)

	if migrate {
		if err := postgres.RunMigrations(cfg.Database.DSN(), logger); err != nil {
			return err
		}
	}
	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	rc, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	mc, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		return err
	}
	defer mc.Close()
	if err := mc.EnsureBucket(ctx); err != nil {
		return err
	}

	pub, err := newPublisher(ctx, cfg.Kafka, metrics, logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	caseRepo := repositories.NewCaseRepo(conn.Pool(), logger)
	ruleSvc := rules.NewService(repositories.NewJurisdictionRepo(conn.Pool(), logger), logger,
		rules.WithCache(redis.NewCache(rc, logger), cfg.Redis.RuleCacheTTL),
		rules.WithMetrics(metrics))
	caseSvc := cases.NewService(caseRepo, ruleSvc, minio.NewDocumentStore(mc, logger), logger,
		cases.WithLocker(redis.NewLocker(rc, logger), cfg.Redis.CaseLockTTL),
		cases.WithPublisher(pub),
		cases.WithMetrics(metrics),
		cases.WithPresignExpiry(cfg.MinIO.PresignExpiry))
	mailSvc := notification.NewService(caseSvc, caseRepo, redis.NewRateLimiter(rc), pub, logger,
		notification.WithLimit(cfg.RateLimit.EmailMaxPerWindow, cfg.RateLimit.EmailWindow),
		notification.WithMetrics(metrics))

	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return err
	}

	limiter := middleware.NewFixedWindowLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window, time.Minute)
	defer limiter.Stop()

	if configPath != "" {
		err := config.Watch(configPath, func(next *config.Config) {
			limiter.SetLimit(next.RateLimit.RequestsPerWindow, next.RateLimit.Window)
			logger.Info("Applied configuration change",
				logging.Int("requests_per_window", next.RateLimit.RequestsPerWindow),
				logging.Duration("window", next.RateLimit.Window))
		}, func(err error) {
			logger.Warn("Ignoring invalid configuration change", logging.Err(err))
		})
		if err != nil {
			logger.Warn("Configuration hot reload disabled", logging.Err(err))
		}
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.CORSOrigins

	router := httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version,
			&postgresHealthAdapter{conn: conn},
			&redisHealthAdapter{client: rc},
			&minioHealthAdapter{client: mc}),
		CalculatorHandler:   handlers.NewCalculatorHandler(ruleSvc, time.Now),
		JurisdictionHandler: handlers.NewJurisdictionHandler(ruleSvc),
		PropertyHandler:     handlers.NewPropertyHandler(caseSvc),
		CaseHandler:         handlers.NewCaseHandler(caseSvc),
		DocumentHandler:     handlers.NewDocumentHandler(caseSvc, mailSvc),
		AuthMiddleware:      middleware.NewAuthMiddleware(tokens, logger),
		RateLimiter:         limiter,
		CORS:                cors,
		Logging:             middleware.DefaultLoggingConfig(),
		Logger:              logger,
		Metrics:             metrics,
		MetricsCollector:    collector,
		Mode:                cfg.Server.Mode,
	})

	srv := httpserver.NewServer(cfg.Server, router, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return srv.Stop(context.Background())
}

// newPublisher returns a Kafka producer, or a publisher that drops events
// when kafka.enabled is false.
func newPublisher(ctx context.Context, cfg config.KafkaConfig, metrics *prometheus.AppMetrics, logger logging.Logger) (kafka.Publisher, error) {
	if !cfg.Enabled {
		logger.Warn("Kafka disabled, domain events will be dropped")
		return kafka.NewNopPublisher(logger), nil
	}
	if cfg.AutoCreateTopics {
		tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
		if err != nil {
			return nil, err
		}
		err = tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.TopicPrefix, cfg.NumPartitions))
		_ = tm.Close()
		if err != nil {
			return nil, err
		}
	}
	return kafka.NewProducer(cfg, logger,
		kafka.WithObserver(metrics.PublishObserver()),
		kafka.WithSource("apiserver"))
}
