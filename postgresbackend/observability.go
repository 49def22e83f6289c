package postgresbackend

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/AntonStoeckl/realtime-observable-go/realtime"
)

const (
	metricQueryDuration     = "realtime_pg_query_duration_seconds"
	metricNotifications     = "realtime_pg_notifications_total"
	metricListenerReconnect = "realtime_pg_listener_reconnects_total"
	metricDatabaseErrors    = "realtime_pg_database_errors_total"
	metricSyncErrors        = "realtime_pg_sync_errors_total"

	spanNameGet    = "realtime.pg.get"
	spanNameSet    = "realtime.pg.set"
	spanNameRemove = "realtime.pg.remove"

	labelOperation = "operation"
	labelStatus    = "status"
	labelErrorType = "error_type"
	labelOp        = "op"
	labelEventKind = "event_kind"

	operationGet     = "get"
	operationSet     = "set"
	operationRemove  = "remove"
	operationSync    = "sync"
	operationInstall = "install_schema"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBuildQuery = "build_query"
	errorTypeQuery      = "query"
	errorTypeExec       = "exec"
	errorTypeScan       = "scan"
	errorTypeDecode     = "decode"
	errorTypeEncode     = "encode"
	errorTypeCanceled   = "context_canceled"
	errorTypeDeadline   = "context_deadline_exceeded"

	logMsgSQLExecuted          = "executed sql for: "
	logMsgOperationFailed      = "postgres backend operation failed"
	logMsgListening            = "listening for change notifications"
	logMsgListenerSessionLost  = "notification session lost, reconnecting"
	logMsgMalformedPayload     = "malformed change notification, resyncing all listeners"
	logMsgListenerAdded        = "listener added"
	logMsgListenerRemoved      = "listener removed"
	logMsgSyncFailed           = "syncing listener failed, retrying"
	logMsgSessionCloseFailed   = "closing notification session failed"
	logMsgSchemaInstalled      = "schema installed"
	logMsgNotificationReceived = "change notification received"

	logAttrError      = "error"
	logAttrErrorType  = "error_type"
	logAttrQuery      = "query"
	logAttrDurationMS = "duration_ms"
	logAttrPath       = "path"
	logAttrEventKind  = "event_kind"
	logAttrChannel    = "channel"
	logAttrAttempt    = "attempt"
	logAttrDelayMS    = "delay_ms"
	logAttrOp         = "op"
	logAttrTable      = "table"
)

func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (c *Client) logInfo(ctx context.Context, msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (c *Client) logWarn(ctx context.Context, msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

// logError logs err together with args at the error level.
func (c *Client) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if c.logger != nil {
		c.logger.Error(msg, allArgs...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (c *Client) logQueryWithDuration(ctx context.Context, sqlQuery, operation string, duration time.Duration) {
	c.logDebug(ctx, logMsgSQLExecuted+operation, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
}

func (c *Client) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if c.metricsCollector == nil {
		return
	}

	if contextual, ok := c.metricsCollector.(realtime.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	c.metricsCollector.IncrementCounter(metric, labels)
}

func (c *Client) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if c.metricsCollector == nil {
		return
	}

	if contextual, ok := c.metricsCollector.(realtime.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	c.metricsCollector.RecordDuration(metric, duration, labels)
}

// recordQueryDuration records the duration of one database round trip.
func (c *Client) recordQueryDuration(ctx context.Context, operation, status string, duration time.Duration) {
	c.recordDuration(ctx, metricQueryDuration, duration, map[string]string{
		labelOperation: operation,
		labelStatus:    status,
	})
}

func (c *Client) recordDatabaseError(ctx context.Context, operation, errorType string) {
	c.incrementCounter(ctx, metricDatabaseErrors, map[string]string{
		labelOperation: operation,
		labelStatus:    statusError,
		labelErrorType: errorType,
	})
}

// failOperation logs and counts a failed operation and hands err back.
func (c *Client) failOperation(ctx context.Context, operation, errorType string, err error, args ...any) error {
	if errorType == errorTypeQuery || errorType == errorTypeExec {
		errorType = contextErrorType(err, errorType)
	}

	c.logError(ctx, logMsgOperationFailed, err, append([]any{labelOperation, operation, logAttrErrorType, errorType}, args...)...)
	c.recordDatabaseError(ctx, operation, errorType)

	return err
}

func (c *Client) startSpan(ctx context.Context, name, path string) (context.Context, realtime.SpanContext) {
	if c.tracingCollector == nil {
		return ctx, nil
	}

	return c.tracingCollector.StartSpan(ctx, name, map[string]string{logAttrPath: path})
}

func (c *Client) finishSpan(span realtime.SpanContext, err error) {
	if c.tracingCollector == nil || span == nil {
		return
	}

	if err != nil {
		span.SetStatus(statusError)
		c.tracingCollector.FinishSpan(span, statusError, map[string]string{labelErrorType: contextErrorType(err, "other")})

		return
	}

	span.SetStatus(statusSuccess)
	c.tracingCollector.FinishSpan(span, statusSuccess, nil)
}

// contextErrorType distinguishes cancellation and timeouts from other failures.
func contextErrorType(err error, fallback string) string {
	switch {
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeDeadline
	default:
		return fallback
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
