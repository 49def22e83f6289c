// Package pgtesthelpers provides integration test utilities for the postgres backend with multi-adapter support.
//
// The adapter under test is selected with the ADAPTER_TYPE environment variable:
//
//	pgx.pool (default): pgxpool.Pool, notifications on a hijacked pool connection
//	sql.db: database/sql, notifications through lib/pq
//	sqlx.db: sqlx.DB, notifications through lib/pq
//
// Every wrapper works on its own freshly installed table, which is dropped when the test ends.
// Tests are skipped when the database from TEST_DSN cannot be reached.
package pgtesthelpers
