package cli

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
)

type fakeMigrator struct {
	version uint
	dirty   bool
	latest  uint
	upErr   error
	closed  bool
}

func (f *fakeMigrator) Up() error {
	if f.upErr != nil {
		f.dirty = true
		return f.upErr
	}
	f.version = f.latest
	return nil
}

func (f *fakeMigrator) Down(steps int) error {
	if uint(steps) > f.version {
		return stderrors.New("no migrations to roll back")
	}
	f.version -= uint(steps)
	return nil
}

func (f *fakeMigrator) Status() (postgres.MigrationStatus, error) {
	return postgres.MigrationStatus{Version: f.version, Dirty: f.dirty}, nil
}

func (f *fakeMigrator) Force(v int) error {
	f.version, f.dirty = uint(v), false
	return nil
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func migrateDeps(m *fakeMigrator) Dependencies {
	deps := testDeps()
	deps.OpenMigrator = func(*config.Config, logging.Logger) (MigrationRunner, error) { return m, nil }
	return deps
}

func TestMigrate(t *testing.T) {
	m := &fakeMigrator{latest: 3}

	out, _, err := run(t, migrateDeps(m), "migrate", "status")
	require.NoError(t, err)
	assert.Equal(t, "no migrations applied\n", out)

	out, _, err = run(t, migrateDeps(m), "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "version 3\n", out)

	out, _, err = run(t, migrateDeps(m), "-o", "json", "migrate", "down", "--steps", "2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"dirty":false}`, out)
	assert.True(t, m.closed)
}

func TestMigrate_DownValidatesSteps(t *testing.T) {
	m := &fakeMigrator{version: 1}
	_, _, err := run(t, migrateDeps(m), "migrate", "down", "--steps", "0")
	require.Error(t, err)
	assert.False(t, m.closed, "migrator must not be opened for invalid input")
}

func TestMigrate_DirtyThenForce(t *testing.T) {
	m := &fakeMigrator{version: 2, latest: 3, upErr: stderrors.New("syntax error")}
	_, _, err := run(t, migrateDeps(m), "migrate", "up")
	require.Error(t, err)

	out, _, err := run(t, migrateDeps(m), "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "dirty")

	out, _, err = run(t, migrateDeps(m), "migrate", "force", "--version", "2")
	require.NoError(t, err)
	assert.Equal(t, "version 2\n", out)
}

func TestMigrate_ConfigError(t *testing.T) {
	deps := migrateDeps(&fakeMigrator{})
	deps.LoadConfig = func(string) (*config.Config, error) { return nil, stderrors.New("config: database.host is required") }
	_, _, err := run(t, deps, "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
}
