package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// MigrationState is printed by migrate status.
type MigrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s MigrationState) String() string {
	if s.Version == 0 {
		return "no migrations applied"
	}
	if s.Dirty {
		return fmt.Sprintf("version %d (dirty: fix the failed migration, then run migrate force)", s.Version)
	}
	return fmt.Sprintf("version %d", s.Version)
}

// NewMigrateCmd manages the Postgres schema with the embedded migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(newMigrateUpCmd(), newMigrateDownCmd(), newMigrateStatusCmd(), newMigrateForceCmd())
	return cmd
}

// withMigrator opens a runner from configuration, runs fn and closes it.
func withMigrator(cmd *cobra.Command, fn func(MigrationRunner) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cliCtx.Config()
	if err != nil {
		return err
	}
	m, err := cliCtx.Deps.OpenMigrator(cfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			cliCtx.Logger.Warn("Failed to close migrator", logging.Err(cerr))
		}
	}()
	return fn(m)
}

func printStatus(cmd *cobra.Command, m MigrationRunner) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	return PrintResult(cmd, MigrationState{Version: st.Version, Dirty: st.Dirty})
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m MigrationRunner) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return errors.InvalidParam("--steps must be greater than 0")
			}
			return withMigrator(cmd, func(m MigrationRunner) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m MigrationRunner) error {
				return printStatus(cmd, m)
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "force",
		Short: "Record a schema version without running migrations",
		Long:  "Clears the dirty flag after a failed migration has been repaired by hand.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m MigrationRunner) error {
				if err := m.Force(version); err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "schema version to record")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
