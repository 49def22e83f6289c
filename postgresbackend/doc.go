// Package postgresbackend implements the realtime backend contracts on PostgreSQL.
//
// Values are JSON documents addressed by slash separated paths. The Client stores them in one table,
// spreading objects over the paths of their leaves, so that writing "books/dune" leaves "books/emma" intact
// and reading "books" assembles both. A trigger on the table publishes every changed path with pg_notify,
// and the Client keeps one LISTEN session to wake the listeners whose value a change can affect.
//
// Listeners reload their value after every relevant change and compare it with the previous load,
// so notifications are never lost but consecutive changes may be coalesced.
//
// Usage:
//
//	client, err := postgresbackend.NewClientFromPGXPool(pool, postgresbackend.WithLogger(logger))
//	if err != nil { ... }
//	defer client.Close()
//
//	if err = client.InstallSchema(ctx); err != nil { ... }
//
//	observable, err := realtime.NewValueObservable[any](
//		func(context.Context) (realtime.Client, error) { return client, nil },
//		"/books",
//	)
//
// Three database handles are supported: pgx pools, database/sql, and sqlx. The database/sql based
// constructors need a DSN in addition, as the notification session is opened with lib/pq.
package postgresbackend
