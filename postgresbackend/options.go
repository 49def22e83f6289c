package postgresbackend

import (
	"time"

	"github.com/AntonStoeckl/realtime-observable-go/realtime"
)

// Option defines a functional option for configuring a Client.
type Option func(*Client) error

// WithTableName sets the name of the values table. The notification channel is derived from it.
func WithTableName(tableName string) Option {
	return func(c *Client) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		c.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Client.
//
// Debug level: SQL statements with execution timing, listener registration
// Info level: schema installation, notification sessions
// Warn level: lost sessions, failed listener syncs, malformed notifications
// Error level: failed Get, Set, and Remove calls.
func WithLogger(logger realtime.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for the Client.
func WithContextualLogger(logger realtime.ContextualLogger) Option {
	return func(c *Client) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Client.
// It receives query durations, database errors, notification counts, and listener reconnects.
func WithMetrics(collector realtime.MetricsCollector) Option {
	return func(c *Client) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector, which receives one span per Get, Set, and Remove.
func WithTracing(collector realtime.TracingCollector) Option {
	return func(c *Client) error {
		c.tracingCollector = collector
		return nil
	}
}

// WithReconnectBackoff sets the delays used when the notification session or a listener sync fails.
// Delays grow as base*2^attempt up to maxDelay, plus up to 30% jitter.
func WithReconnectBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) error {
		if base <= 0 || maxDelay < base {
			return ErrInvalidBackoff
		}

		c.backoff.base = base
		c.backoff.max = maxDelay

		return nil
	}
}
