package postgres

import (
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // database/sql driver used by the migrate postgres driver

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationStatus is the schema version as recorded by golang-migrate.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// Migrator applies the embedded migrations. It holds its own database/sql
// handle because golang-migrate's postgres driver is built on lib/pq.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

func NewMigrator(dsn string, log logging.Logger) (*Migrator, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return &Migrator{m: m, logger: log}, nil
}

// Up applies all pending migrations. No pending migrations is not an error.
func (g *Migrator) Up() error {
	if err := g.m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		st, _ := g.Status()
		return fmt.Errorf("run migrations (version %d, dirty %t): %w", st.Version, st.Dirty, err)
	}
	st, err := g.Status()
	if err != nil {
		return err
	}
	g.logger.Info("Database migrations applied", logging.Int64("version", int64(st.Version)), logging.Bool("dirty", st.Dirty))
	return nil
}

// Down rolls back steps migrations.
func (g *Migrator) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than 0, got %d", steps)
	}
	if err := g.m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("no migrations to roll back")
		}
		return fmt.Errorf("roll back %d step(s): %w", steps, err)
	}
	return nil
}

func (g *Migrator) Status() (MigrationStatus, error) {
	v, dirty, err := g.m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}

// Force records version without running anything; recovery from a dirty
// state only.
func (g *Migrator) Force(version int) error {
	if err := g.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// RunMigrations is the startup path: open, apply, close.
func RunMigrations(dsn string, log logging.Logger) error {
	g, err := NewMigrator(dsn, log)
	if err != nil {
		return err
	}
	defer g.Close()
	return g.Up()
}
