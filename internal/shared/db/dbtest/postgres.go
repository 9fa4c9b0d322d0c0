// Package dbtest sobe um Postgres descartável (testcontainers) com o schema aplicado.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

// Open retorna uma conexão para um banco novo e migrado.
// Testes de integração são pulados com -short.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	dsn := Start(t)

	_, err := db.MigrateUp(dsn)
	require.NoError(t, err)

	conn, err := db.ConnectPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// Start sobe um Postgres vazio, sem schema, e devolve o DSN.
func Start(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: requires docker")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bet_ledger_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{"test-name": t.Name()}),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}
