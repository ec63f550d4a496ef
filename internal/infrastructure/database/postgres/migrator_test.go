//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
)

const migrationsPath = "../../../../migrations"

// startPostgres launches a PostgreSQL 16 container and returns its config.
func startPostgres(t *testing.T) postgres.PostgresConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "eduloan_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return postgres.PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "eduloan_test",
		Username: "test",
		Password: "test",
	}
}

func TestMigrations_UpRollbackForce(t *testing.T) {
	cfg := startPostgres(t)
	dsn := cfg.DSN()

	state, err := postgres.MigrationStatus(dsn, migrationsPath)
	require.NoError(t, err)
	assert.True(t, state.Empty)

	require.NoError(t, postgres.RunMigrations(dsn, migrationsPath))
	require.NoError(t, postgres.RunMigrations(dsn, migrationsPath), "second run is a no-op")

	state, err = postgres.MigrationStatus(dsn, migrationsPath)
	require.NoError(t, err)
	assert.Equal(t, uint(2), state.Version)
	assert.False(t, state.Dirty)

	require.NoError(t, postgres.RollbackMigration(dsn, migrationsPath, 1))
	state, err = postgres.MigrationStatus(dsn, migrationsPath)
	require.NoError(t, err)
	assert.Equal(t, uint(1), state.Version)

	require.Error(t, postgres.RollbackMigration(dsn, migrationsPath, 0))

	require.NoError(t, postgres.ForceMigrationVersion(dsn, migrationsPath, 1))
	require.NoError(t, postgres.RunMigrations(dsn, migrationsPath))
}

func TestConnection_RunMigrationsAndTables(t *testing.T) {
	for _, driver := range []string{postgres.DriverPGX, postgres.DriverPQ} {
		t.Run(driver, func(t *testing.T) {
			cfg := startPostgres(t)
			cfg.Driver = driver

			conn, err := postgres.NewConnection(cfg, logging.NewNopLogger())
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, conn.RunMigrations(migrationsPath))
			require.NoError(t, conn.HealthCheck(context.Background()))

			for _, table := range []string{"users", "learner_profiles", "training_providers", "courses", "loans", "disbursements", "repayments"} {
				var exists bool
				err := conn.DB().QueryRowContext(context.Background(), `
					SELECT EXISTS (
						SELECT FROM information_schema.tables
						WHERE table_schema = 'public' AND table_name = $1
					)`, table).Scan(&exists)
				require.NoError(t, err)
				assert.True(t, exists, fmt.Sprintf("table %s should exist", table))
			}
		})
	}
}

//Personal.AI order the ending
