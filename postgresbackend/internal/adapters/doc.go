// Package adapters provides the database adapters of the Postgres realtime backend.
//
// Queries and writes go through DBAdapter, which is implemented for pgxpool.Pool, sql.DB, and sqlx.DB.
// Change notifications arrive through Listener, which is implemented on a dedicated pgx connection
// and on lib/pq's Listener for the database/sql based clients.
package adapters
