// Command worker consumes email and reminder events and runs the deadline
// reminder sweep.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/landlordcomply/landlordcomply/internal/application/notification"
	"github.com/landlordcomply/landlordcomply/internal/application/reminders"
	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres/repositories"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/redis"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/messaging/kafka"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
)

const defaultHealthAddr = ":8081"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	healthAddr := flag.String("health-addr", defaultHealthAddr, "listen address for /healthz and /metrics")
	noSweep := flag.Bool("no-sweep", false, "consume events only, without the reminder sweep")
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
	logger = logger.Named("worker")
	logging.SetDefault(logger)

	if err := run(cfg, *healthAddr, !*noSweep, logger); err != nil {
		logger.Fatal("Worker stopped with error", logging.Err(err))
	}
	logger.Info("Worker stopped")
}

func run(cfg *config.Config, healthAddr string, sweep bool, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	var pub kafka.Publisher = kafka.NewNopPublisher(logger)
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, logger,
			kafka.WithObserver(metrics.PublishObserver()),
			kafka.WithSource("worker"))
		if err != nil {
			return err
		}
		pub = producer

		consumer, err = kafka.NewConsumer(cfg.Kafka,
			[]string{kafka.TopicEmailRequested, kafka.TopicDeadlineReminder}, logger)
		if err != nil {
			_ = producer.Close()
			return err
		}
		defer consumer.Close()
		notification.NewDispatcher(notification.NewLogMailer(logger), metrics, logger).Register(consumer)
	} else {
		logger.Warn("Kafka disabled, no events will be consumed and reminders will not be delivered")
	}
	defer pub.Close()

	g, gctx := errgroup.WithContext(ctx)

	if consumer != nil {
		if err := consumer.Start(gctx); err != nil {
			return err
		}
	}

	if sweep {
		sweeper := reminders.NewSweeper(repositories.NewCaseRepo(conn.Pool(), logger), rc, pub, reminders.Config{
			Interval:   cfg.Worker.SweepInterval,
			WindowDays: cfg.Worker.ReminderWindowDays,
			BatchSize:  cfg.Worker.SweepBatchSize,
		}, metrics, logger)
		g.Go(func() error {
			if err := sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	healthSrv := newHealthServer(healthAddr, collector, conn, rc)
	g.Go(func() error {
		logger.Info("Health server listening", logging.String("addr", healthAddr))
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	logger.Info("Worker started",
		logging.Bool("consumer", consumer != nil),
		logging.Bool("sweep", sweep))
	return g.Wait()
}

func newHealthServer(addr string, collector prometheus.MetricsCollector, conn *postgres.Connection, rc *redis.Client) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := conn.HealthCheck(ctx); err != nil {
			http.Error(w, "postgres: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		if err := rc.Ping(ctx); err != nil {
			http.Error(w, "redis: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", collector.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
