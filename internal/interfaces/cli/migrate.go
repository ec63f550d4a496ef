package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// MigrationRunner applies golang-migrate operations against a database URL.
type MigrationRunner interface {
	Up(dbURL, path string) error
	Down(dbURL, path string, steps int) error
	Status(dbURL, path string) (postgres.MigrationState, error)
	Force(dbURL, path string, version int) error
}

type postgresMigrations struct{}

func (postgresMigrations) Up(dbURL, path string) error { return postgres.RunMigrations(dbURL, path) }
func (postgresMigrations) Down(dbURL, path string, steps int) error {
	return postgres.RollbackMigration(dbURL, path, steps)
}
func (postgresMigrations) Status(dbURL, path string) (postgres.MigrationState, error) {
	return postgres.MigrationStatus(dbURL, path)
}
func (postgresMigrations) Force(dbURL, path string, version int) error {
	return postgres.ForceMigrationVersion(dbURL, path, version)
}

// NewMigrateCmd manages the schema under the configured database.
func NewMigrateCmd(runner MigrationRunner) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default: database.migration_path)")

	target := func(cmd *cobra.Command) (*CLIContext, string, string, error) {
		cliCtx, err := GetCLIContext(cmd)
		if err != nil {
			return nil, "", "", err
		}
		dir := path
		if dir == "" {
			dir = cliCtx.Config.Database.MigrationPath
		}
		return cliCtx, postgres.FromConfig(cliCtx.Config.Database).DSN(), dir, nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, dbURL, dir, err := target(cmd)
			if err != nil {
				return err
			}
			if err := runner.Up(dbURL, dir); err != nil {
				return err
			}
			cliCtx.Logger.Info("Migrations applied", logging.String("path", dir))
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, dbURL, dir, err := target(cmd)
			if err != nil {
				return err
			}
			if err := runner.Down(dbURL, dir, steps); err != nil {
				return err
			}
			cliCtx.Logger.Info("Migrations rolled back", logging.Int("steps", steps))
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, dbURL, dir, err := target(cmd)
			if err != nil {
				return err
			}
			state, err := runner.Status(dbURL, dir)
			if err != nil {
				return err
			}
			return PrintResult(cmd, migrationStatus(state))
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Record VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < -1 {
				return errors.InvalidParam(fmt.Sprintf("invalid migration version %q", args[0]))
			}
			cliCtx, dbURL, dir, err := target(cmd)
			if err != nil {
				return err
			}
			if err := runner.Force(dbURL, dir, version); err != nil {
				return err
			}
			cliCtx.Logger.Warn("Migration version forced", logging.Int("version", version))
			PrintSuccess(cmd, fmt.Sprintf("forced version %d", version))
			return nil
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

type migrationStatus postgres.MigrationState

func (s migrationStatus) String() string {
	switch {
	case s.Empty:
		return "no migrations applied"
	case s.Dirty:
		return fmt.Sprintf("version %d (dirty)", s.Version)
	default:
		return fmt.Sprintf("version %d", s.Version)
	}
}

func (s migrationStatus) TableHeaders() []string { return []string{"VERSION", "DIRTY", "EMPTY"} }

func (s migrationStatus) TableRows() [][]string {
	return [][]string{{strconv.FormatUint(uint64(s.Version), 10), strconv.FormatBool(s.Dirty), strconv.FormatBool(s.Empty)}}
}

//Personal.AI order the ending
