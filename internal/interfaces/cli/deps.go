package cli

import (
	"context"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/application/rules"
	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres/repositories"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/redis"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
)

// MigrationRunner is the subset of postgres.Migrator the migrate commands use.
type MigrationRunner interface {
	Up() error
	Down(steps int) error
	Status() (postgres.MigrationStatus, error)
	Force(version int) error
	Close() error
}

// RuleSeeder stores a parsed seed file.
type RuleSeeder interface {
	Seed(ctx context.Context, f *rules.SeedFile) (*rules.SeedResult, error)
}

// Dependencies are the constructors behind the commands that reach
// infrastructure. Tests replace them; nil fields get the real ones.
type Dependencies struct {
	LoadConfig   func(path string) (*config.Config, error)
	OpenMigrator func(cfg *config.Config, log logging.Logger) (MigrationRunner, error)
	// OpenSeeder returns the seeder and a func releasing its connections.
	OpenSeeder func(ctx context.Context, cfg *config.Config, log logging.Logger) (RuleSeeder, func(), error)
	Now        func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.LoadConfig == nil {
		d.LoadConfig = config.Load
	}
	if d.OpenMigrator == nil {
		d.OpenMigrator = openMigrator
	}
	if d.OpenSeeder == nil {
		d.OpenSeeder = openSeeder
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func openMigrator(cfg *config.Config, log logging.Logger) (MigrationRunner, error) {
	return postgres.NewMigrator(cfg.Database.DSN(), log)
}

// openSeeder wires the rules service over Postgres. Redis is optional here:
// when it is reachable the rule cache is invalidated after seeding.
func openSeeder(ctx context.Context, cfg *config.Config, log logging.Logger) (RuleSeeder, func(), error) {
	conn, err := postgres.NewConnection(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){conn.Close}
	opts := []rules.Option{}
	if rc, err := redis.NewClient(cfg.Redis, log); err != nil {
		log.Warn("Redis unavailable, rule cache will not be invalidated", logging.Err(err))
	} else {
		opts = append(opts, rules.WithCache(redis.NewCache(rc, log), cfg.Redis.RuleCacheTTL))
		closers = append(closers, func() { _ = rc.Close() })
	}
	svc := rules.NewService(repositories.NewJurisdictionRepo(conn.Pool(), log), log, opts...)
	return svc, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
