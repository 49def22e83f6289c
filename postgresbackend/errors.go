package postgresbackend

import "errors"

// ErrNilDatabaseConnection is returned when a nil database connection is supplied.
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")

// ErrEmptyTableName is returned when an empty table name is supplied to WithTableName.
var ErrEmptyTableName = errors.New("table name must not be empty")

// ErrEmptyDSN is returned when the database/sql based constructors get no DSN for the notification listener.
var ErrEmptyDSN = errors.New("dsn must not be empty")

// ErrInvalidBackoff is returned when WithReconnectBackoff gets a non-positive base or a max below base.
var ErrInvalidBackoff = errors.New("invalid reconnect backoff")

// ErrUnsupportedEventKind is returned by Reference.On for event kinds the backend cannot serve.
var ErrUnsupportedEventKind = errors.New("unsupported event kind")

// ErrInvalidLimit is returned by Reference.On for query references with a limit below 1.
var ErrInvalidLimit = errors.New("limit must be positive")

// ErrInvalidKey is returned by Set when a value contains an object key that is empty or contains a slash.
var ErrInvalidKey = errors.New("object keys must be non-empty and must not contain '/'")

// ErrBuildingQueryFailed is returned when goqu cannot render a statement.
var ErrBuildingQueryFailed = errors.New("building query failed")

// ErrQueryingValueFailed is returned when reading values from the database fails.
var ErrQueryingValueFailed = errors.New("querying value failed")

// ErrWritingValueFailed is returned when writing or removing values fails.
var ErrWritingValueFailed = errors.New("writing value failed")

// ErrEncodingValueFailed is returned when a value cannot be encoded as JSON.
var ErrEncodingValueFailed = errors.New("encoding value failed")

// ErrDecodingValueFailed is returned when a stored value cannot be decoded.
var ErrDecodingValueFailed = errors.New("decoding value failed")

// ErrInstallingSchemaFailed is returned when InstallSchema fails.
var ErrInstallingSchemaFailed = errors.New("installing schema failed")

// ErrListeningFailed is returned when the notification session cannot be established.
var ErrListeningFailed = errors.New("listening for notifications failed")

// ErrClientClosed is returned by operations on a closed Client.
var ErrClientClosed = errors.New("client is closed")

// ErrNilHandler is returned by Reference.On when no handler is supplied.
var ErrNilHandler = errors.New("handler must not be nil")

// ErrForeignReference is returned by the mapper built with MapReference for references of another backend.
var ErrForeignReference = errors.New("reference does not belong to the postgres backend")
