// Package postgres owns the PostgreSQL connection pool, schema migrations and
// the repositories built on top of them.
package postgres

import (
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// MigrationState reports the schema version recorded by golang-migrate.
type MigrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	// Empty is true when no migration has ever been applied.
	Empty bool `json:"empty"`
}

// sourceURL turns a directory into a file:// source URL.
func sourceURL(path string) string {
	if len(path) >= 7 && path[:7] == "file://" {
		return path
	}
	return "file://" + path
}

func openMigrator(dbURL, migrationsPath string) (*migrate.Migrate, error) {
	m, err := migrate.New(sourceURL(migrationsPath), dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}

// RunMigrations applies every pending up migration. No pending migrations is
// not an error.
func RunMigrations(dbURL, migrationsPath string) error {
	m, err := openMigrator(dbURL, migrationsPath)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations")
	}
	return nil
}

// RollbackMigration reverts steps migrations.
func RollbackMigration(dbURL, migrationsPath string, steps int) error {
	if steps <= 0 {
		return errors.InvalidParam("rollback steps must be positive")
	}
	m, err := openMigrator(dbURL, migrationsPath)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Steps(-steps); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	return nil
}

// MigrationStatus returns the current schema version.
func MigrationStatus(dbURL, migrationsPath string) (MigrationState, error) {
	m, err := openMigrator(dbURL, migrationsPath)
	if err != nil {
		return MigrationState{}, err
	}
	defer closeMigrator(m)

	version, dirty, err := m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return MigrationState{Empty: true}, nil
	}
	if err != nil {
		return MigrationState{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read migration version")
	}
	return MigrationState{Version: version, Dirty: dirty}, nil
}

// ForceMigrationVersion records version without running any migration. It is
// the recovery path for a dirty schema after a failed migration was fixed by
// hand.
func ForceMigrationVersion(dbURL, migrationsPath string, version int) error {
	m, err := openMigrator(dbURL, migrationsPath)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to force migration version")
	}
	return nil
}

//Personal.AI order the ending
