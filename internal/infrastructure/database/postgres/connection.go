// Package postgres owns the pgx connection pool, transactions and the
// embedded schema migrations.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so repository code runs
// unchanged inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts transactions; *pgxpool.Pool implements it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Connection wraps the pool.
type Connection struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	once   sync.Once
}

// NewConnection builds the pool and pings it.
func NewConnection(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger) (*Connection, error) {
	poolCfg, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "invalid database configuration")
	}
	configurePool(poolCfg, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "database connection failed").
			WithDetail(fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.DBName))
	}

	log.Info("Connected to PostgreSQL",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.DBName),
		logging.Int("max_conns", int(poolCfg.MaxConns)))
	return &Connection{pool: pool, logger: log}, nil
}

func buildConnString(cfg config.DatabaseConfig) string {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	return cfg.DSN()
}

func configurePool(poolCfg *pgxpool.Config, cfg config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
}

func (c *Connection) Pool() *pgxpool.Pool { return c.pool }

// HealthCheck pings and warns when most pooled connections are busy.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "database health check failed")
	}
	st := c.pool.Stat()
	if st.MaxConns() > 0 && float64(st.AcquiredConns())/float64(st.MaxConns()) > 0.8 {
		c.logger.Warn("High database pool usage",
			logging.Int("acquired", int(st.AcquiredConns())),
			logging.Int("max", int(st.MaxConns())))
	}
	return nil
}

// PoolCounts reports total, idle and acquired connections.
func (c *Connection) PoolCounts() (total, idle, acquired int32) {
	st := c.pool.Stat()
	return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
}

func (c *Connection) Close() {
	c.once.Do(func() {
		c.pool.Close()
		c.logger.Info("Closed PostgreSQL pool")
	})
}

// WithTransaction runs fn in a read-committed transaction. It commits when
// fn returns nil and rolls back on error or panic (re-raising the panic).
func WithTransaction(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			logging.FromContext(ctx, nil).Warn("Rollback failed", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}
