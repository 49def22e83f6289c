package realtime

import (
	"context"
	"math"
	"time"
)

// Logger interface for subscription lifecycle logging, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// This interface follows the same dependency-free pattern as MetricsCollector and TracingCollector,
// allowing users to integrate with any logging backend (OpenTelemetry, structured loggers, etc.)
// that supports context-based correlation and automatic trace/span ID inclusion.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting subscription and notification metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods for better tracing integration.
// This interface is optional - the context-aware methods are used when available, falling back to
// the base MetricsCollector interface otherwise.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information.
// Users integrate with any tracing backend (OpenTelemetry, Jaeger, Zipkin, etc.) by implementing this interface.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

const (
	metricSubscriptions       = "realtime_subscriptions_total"
	metricResolveDuration     = "realtime_resolve_duration_seconds"
	metricNotifications       = "realtime_notifications_total"
	metricValueMappingErrors  = "realtime_value_mapping_errors_total"
	metricActiveSubscriptions = "realtime_active_subscriptions"

	spanNameResolve = "realtime.resolve"

	labelEventKind = "event_kind"
	labelStatus    = "status"
	labelErrorType = "error_type"

	statusSuccess  = "success"
	statusError    = "error"
	statusCanceled = "canceled"
	statusOpened   = "opened"
	statusClosed   = "closed"

	errorTypeResolveClient   = "resolve_client"
	errorTypeLookupReference = "lookup_reference"
	errorTypeMapReference    = "map_reference"
	errorTypeRegister        = "register_listener"
	errorTypeMapValue        = "map_value"
	errorTypeValueType       = "value_type"

	logMsgSubscriptionOpened   = "subscription opened"
	logMsgSubscriptionClosed   = "subscription closed"
	logMsgResolveStarted       = "resolving reference"
	logMsgListenerRegistered   = "listener registered"
	logMsgRegistrationSkipped  = "registration skipped, already unsubscribed"
	logMsgResolveFailed        = "resolving reference failed"
	logMsgNotificationDropped  = "notification dropped"
	logMsgNotificationDelivery = "notification delivered"

	logAttrSubscriptionID = "subscription_id"
	logAttrPath           = "path"
	logAttrEventKind      = "event_kind"
	logAttrError          = "error"
	logAttrErrorType      = "error_type"
	logAttrIsFirst        = "is_first"
	logAttrDurationMS     = "duration_ms"
)

// observer bundles the optional observability collaborators of an Observable.
// All methods are nil-safe with respect to unconfigured collaborators.
type observer struct {
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

func (o observer) logDebug(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (o observer) logInfo(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (o observer) logWarn(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (o observer) logError(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Error(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

// incrementCounter uses the context-aware method if the collector supports it.
func (o observer) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextual, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	o.metricsCollector.IncrementCounter(metric, labels)
}

// recordDuration uses the context-aware method if the collector supports it.
func (o observer) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextual, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	o.metricsCollector.RecordDuration(metric, duration, labels)
}

// recordValue uses the context-aware method if the collector supports it.
func (o observer) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextual, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	o.metricsCollector.RecordValue(metric, value, labels)
}

func (o observer) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if o.tracingCollector == nil {
		return ctx, nil
	}

	return o.tracingCollector.StartSpan(ctx, name, attrs)
}

func (o observer) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if o.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)
	o.tracingCollector.FinishSpan(span, status, attrs)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
