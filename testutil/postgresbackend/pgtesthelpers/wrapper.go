package pgtesthelpers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/realtime-observable-go/postgresbackend"
	"github.com/AntonStoeckl/realtime-observable-go/testutil/postgresbackend/config"
)

const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"

	connectTimeout = 3 * time.Second
)

// execFunc runs a statement on the database handle of a wrapper.
type execFunc func(ctx context.Context, statement string) error

// Wrapper bundles a Client with the database handle it was created on.
type Wrapper struct {
	client    *postgresbackend.Client
	tableName string
	exec      execFunc
	closeDB   func()
}

// Client returns the Client under test.
func (w *Wrapper) Client() *postgresbackend.Client {
	return w.client
}

// TableName returns the table the Client works on.
func (w *Wrapper) TableName() string {
	return w.tableName
}

// CreateWrapperWithTestConfig connects with the adapter selected by ADAPTER_TYPE, creates a Client on a unique table,
// and installs the schema. Everything is torn down with t.Cleanup.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresbackend.Option) *Wrapper {
	t.Helper()

	tableName := GivenUniqueTableName(t)
	options = append(options, postgresbackend.WithTableName(tableName))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	w := connect(t, ctx, options)
	w.tableName = tableName

	t.Cleanup(func() {
		_ = w.client.Close()

		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cleanupCancel()

		for _, statement := range dropStatements(tableName) {
			_ = w.exec(cleanupCtx, statement) // best effort
		}

		w.closeDB()
	})

	require.NoError(t, w.client.InstallSchema(ctx), "error installing the schema in test setup")

	return w
}

func connect(t testing.TB, ctx context.Context, options []postgresbackend.Option) *Wrapper {
	t.Helper()

	adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch adapterType {
	case typePGXPool, "":
		poolConfig, err := config.PostgresPGXPoolTestConfig()
		require.NoError(t, err, "error parsing the test DSN")

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		require.NoError(t, err, "error creating the DB pool in test setup")

		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			t.Skipf("postgres not reachable: %v", pingErr)
		}

		client, err := postgresbackend.NewClientFromPGXPool(pool, options...)
		require.NoError(t, err)

		return &Wrapper{
			client: client,
			exec: func(ctx context.Context, statement string) error {
				_, execErr := pool.Exec(ctx, statement)
				return execErr
			},
			closeDB: pool.Close,
		}

	case typeSQLDB:
		db, err := config.PostgresSQLDBTestConfig(ctx)
		if err != nil {
			t.Skipf("postgres not reachable: %v", err)
		}

		client, err := postgresbackend.NewClientFromSQLDB(db, config.PostgresTestDSN(), options...)
		require.NoError(t, err)

		return &Wrapper{
			client: client,
			exec: func(ctx context.Context, statement string) error {
				_, execErr := db.ExecContext(ctx, statement)
				return execErr
			},
			closeDB: func() { _ = db.Close() },
		}

	case typeSQLXDB:
		db, err := config.PostgresSQLXTestConfig(ctx)
		if err != nil {
			t.Skipf("postgres not reachable: %v", err)
		}

		client, err := postgresbackend.NewClientFromSQLX(db, config.PostgresTestDSN(), options...)
		require.NoError(t, err)

		return &Wrapper{
			client: client,
			exec: func(ctx context.Context, statement string) error {
				_, execErr := db.ExecContext(ctx, statement)
				return execErr
			},
			closeDB: func() { _ = db.Close() },
		}

	default:
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapterType))
	}
}

// GivenUniqueTableName returns a table name no other test uses.
func GivenUniqueTableName(t testing.TB) string {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return "rt_" + strings.ReplaceAll(id.String(), "-", "")
}

func dropStatements(tableName string) []string {
	return []string{
		"DROP TABLE IF EXISTS " + pq.QuoteIdentifier(tableName),
		"DROP FUNCTION IF EXISTS " + pq.QuoteIdentifier(tableName+"_notify") + "()",
	}
}
