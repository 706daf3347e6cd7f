//go:build integration

// Package integration runs the PostgreSQL repositories against a real
// database. Set INTEGRATION_DATABASE_URL to reuse a server; otherwise a
// container is started with Docker.
package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/empathic/podiatry/internal/domain/facility"
	"github.com/empathic/podiatry/internal/domain/patient"
	"github.com/empathic/podiatry/internal/platform/db"
	"github.com/empathic/podiatry/migrations"
)

var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pool, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupDatabase(ctx context.Context) (*pgxpool.Pool, func(), error) {
	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		var err error
		connStr, stop, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, connStr, 5, 1)
	if err != nil {
		stop()
		return nil, nil, err
	}

	if _, err := db.NewMigrator(pool, migrations.FS, "public").Up(ctx); err != nil {
		pool.Close()
		stop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return pool, func() {
		pool.Close()
		stop()
	}, nil
}

// services wires the PostgreSQL-backed services over a clean database.
func services(t *testing.T) (*facility.Service, *patient.Service, *patient.Policy) {
	t.Helper()
	if _, err := globalPool.Exec(context.Background(), `TRUNCATE patients, facilities`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	facilities := facility.NewService(facility.NewRepo(globalPool))
	patients := patient.NewService(patient.NewRepo(globalPool), facilities)
	facilities.SetPatientCounter(patients)
	return facilities, patients, patient.NewPolicy(patients, zerolog.Nop())
}
