package postgresbackend

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/realtime-observable-go/postgresbackend/internal/adapters"
	"github.com/AntonStoeckl/realtime-observable-go/realtime"
)

const (
	defaultTableName = "realtime_values"

	pqMinReconnectInterval = 100 * time.Millisecond
	pqMaxReconnectInterval = 10 * time.Second
)

// Client stores JSON values in a Postgres table and notifies listeners about changes
// through LISTEN/NOTIFY. It implements realtime.Client.
//
// A Client holds one notification session, opened lazily when the first listener is added.
// Close stops all listeners. Close must not be called from inside a listener handler.
type Client struct {
	db               adapters.DBAdapter
	newListener      adapters.ListenerFactory
	tableName        string
	logger           realtime.Logger
	contextualLogger realtime.ContextualLogger
	metricsCollector realtime.MetricsCollector
	tracingCollector realtime.TracingCollector
	backoff          backoff
	hub              *hub
	closed           atomic.Bool
}

var _ realtime.Client = (*Client)(nil)

// NewClientFromPGXPool creates a Client on a pgx pool.
// The notification session runs on a connection taken from the pool.
func NewClientFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Client, error) {
	if pool == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newClient(adapters.NewPGXAdapter(pool), adapters.NewPGXListenerFactory(pool), options...)
}

// NewClientFromSQLDB creates a Client on a database/sql handle.
// database/sql cannot LISTEN, so the notification session is opened by lib/pq on dsn.
func NewClientFromSQLDB(db *sql.DB, dsn string, options ...Option) (*Client, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	return newClient(
		adapters.NewSQLAdapter(db),
		adapters.NewPQListenerFactory(dsn, pqMinReconnectInterval, pqMaxReconnectInterval),
		options...,
	)
}

// NewClientFromSQLX creates a Client on a sqlx handle, with the notification session opened by lib/pq on dsn.
func NewClientFromSQLX(db *sqlx.DB, dsn string, options ...Option) (*Client, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	return newClient(
		adapters.NewSQLXAdapter(db),
		adapters.NewPQListenerFactory(dsn, pqMinReconnectInterval, pqMaxReconnectInterval),
		options...,
	)
}

func newClient(db adapters.DBAdapter, newListener adapters.ListenerFactory, options ...Option) (*Client, error) {
	c := &Client{
		db:          db,
		newListener: newListener,
		tableName:   defaultTableName,
		backoff:     defaultBackoff(),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	c.hub = newHub(c, notifyChannel(c.tableName))

	return c, nil
}

// InstallSchema creates the values table and its change notification trigger if they do not exist.
func (c *Client) InstallSchema(ctx context.Context) error {
	for _, statement := range schemaStatements(c.tableName) {
		start := time.Now()
		_, execErr := c.db.Exec(ctx, statement)
		c.logQueryWithDuration(ctx, statement, operationInstall, time.Since(start))

		if execErr != nil {
			return c.failOperation(ctx, operationInstall, errorTypeExec, errors.Join(ErrInstallingSchemaFailed, execErr))
		}
	}

	c.logInfo(ctx, logMsgSchemaInstalled, logAttrTable, c.tableName)

	return nil
}

// Ref returns a Reference to path. Leading, trailing, and repeated slashes are ignored.
func (c *Client) Ref(path string) (realtime.Reference, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	return c.ref(path), nil
}

// Reference is the typed variant of Ref.
func (c *Client) Reference(path string) *Reference {
	return c.ref(path)
}

func (c *Client) ref(path string) *Reference {
	return newReference(c, normalizePath(path), query{})
}

// Get reads the value at path.
func (c *Client) Get(ctx context.Context, path string) (*Snapshot, error) {
	path = normalizePath(path)

	ctx, span := c.startSpan(ctx, spanNameGet, path)
	value, err := c.load(ctx, operationGet, path)
	c.finishSpan(span, err)

	if err != nil {
		return nil, err
	}

	return newSnapshot(lastSegment(path), value)
}

// Set replaces the value at path. Values are encoded as JSON first, so any value jsoniter can encode is accepted.
// Objects are merged into their ancestors: setting "books/dune" keeps "books/emma".
// Setting nil or an empty object removes the value.
func (c *Client) Set(ctx context.Context, path string, value any) error {
	path = normalizePath(path)

	ctx, span := c.startSpan(ctx, spanNameSet, path)
	err := c.set(ctx, path, value)
	c.finishSpan(span, err)

	return err
}

func (c *Client) set(ctx context.Context, path string, value any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	tree, err := toJSONTree(value)
	if err != nil {
		return c.failOperation(ctx, operationSet, errorTypeEncode, err, logAttrPath, path)
	}

	leaves, err := flatten(path, tree)
	if err != nil {
		return c.failOperation(ctx, operationSet, errorTypeEncode, err, logAttrPath, path)
	}

	sqlQuery, err := c.buildSetQuery(path, leaves)
	if err != nil {
		return c.failOperation(ctx, operationSet, errorTypeBuildQuery, err, logAttrPath, path)
	}

	return c.exec(ctx, operationSet, path, sqlQuery)
}

// Remove deletes the value at path and everything beneath it.
func (c *Client) Remove(ctx context.Context, path string) error {
	path = normalizePath(path)

	ctx, span := c.startSpan(ctx, spanNameRemove, path)
	err := c.remove(ctx, path)
	c.finishSpan(span, err)

	return err
}

func (c *Client) remove(ctx context.Context, path string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	sqlQuery, err := c.buildRemoveQuery(path)
	if err != nil {
		return c.failOperation(ctx, operationRemove, errorTypeBuildQuery, err, logAttrPath, path)
	}

	return c.exec(ctx, operationRemove, path, sqlQuery)
}

// Close stops the notification session and all listeners and waits for them to return.
// The database handle stays open. Calling Close again is a no-op.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.hub.close()

	return nil
}

func (c *Client) exec(ctx context.Context, operation, path, sqlQuery string) error {
	start := time.Now()
	_, execErr := c.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	c.logQueryWithDuration(ctx, sqlQuery, operation, duration)

	if execErr != nil {
		c.recordQueryDuration(ctx, operation, statusError, duration)
		return c.failOperation(ctx, operation, errorTypeExec, errors.Join(ErrWritingValueFailed, execErr), logAttrPath, path)
	}

	c.recordQueryDuration(ctx, operation, statusSuccess, duration)

	return nil
}

// load reads all rows at or beneath path and assembles them into one value.
func (c *Client) load(ctx context.Context, operation, path string) (any, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	sqlQuery, err := c.buildSelectSubtreeQuery(path)
	if err != nil {
		return nil, c.failOperation(ctx, operation, errorTypeBuildQuery, err, logAttrPath, path)
	}

	start := time.Now()
	stored, err := c.queryRows(ctx, sqlQuery)
	duration := time.Since(start)
	c.logQueryWithDuration(ctx, sqlQuery, operation, duration)

	if err != nil {
		c.recordQueryDuration(ctx, operation, statusError, duration)
		return nil, c.failOperation(ctx, operation, errorTypeQuery, err, logAttrPath, path)
	}

	c.recordQueryDuration(ctx, operation, statusSuccess, duration)

	value, err := assemble(path, stored)
	if err != nil {
		return nil, c.failOperation(ctx, operation, errorTypeDecode, err, logAttrPath, path)
	}

	return value, nil
}

func (c *Client) queryRows(ctx context.Context, sqlQuery string) (stored []storedRow, err error) {
	rows, queryErr := c.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return nil, errors.Join(ErrQueryingValueFailed, queryErr)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = errors.Join(ErrQueryingValueFailed, closeErr)
		}
	}()

	for rows.Next() {
		var row storedRow
		if scanErr := rows.Scan(&row.path, &row.value); scanErr != nil {
			return nil, errors.Join(ErrQueryingValueFailed, scanErr)
		}

		stored = append(stored, row)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(ErrQueryingValueFailed, rowsErr)
	}

	return stored, nil
}
