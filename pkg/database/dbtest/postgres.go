// Package dbtest starts a disposable PostgreSQL for integration tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nimeshabuddhika/storefront-orders/pkg/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	user     = "storefront"
	password = "storefront"
	dbName   = "storefront_orders"
)

// StartPostgres runs a postgres container, applies the migrations and returns its DSN.
// The test is skipped under -short or when no container runtime is reachable.
func StartPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": password,
			"POSTGRES_DB":       dbName,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres test container")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = pgC.Terminate(ctx)
	})

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port.Port(), dbName)
	require.NoError(t, database.RunMigrations(zap.NewNop(), dsn))
	return dsn
}

// NewDB opens a pool of maxConns connections against dsn and closes it when the test ends.
func NewDB(t *testing.T, dsn string, maxConns int32) *database.DB {
	t.Helper()
	db, closer, err := database.New(context.Background(), zap.NewNop(), database.Config{
		PrimaryDSN:     dsn,
		MaxConns:       maxConns,
		MinConns:       1,
		AcquireTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(closer)
	return db
}
