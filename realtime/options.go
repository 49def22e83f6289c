package realtime

import "context"

// settings holds the optional configuration shared by all subscriptions of an Observable.
type settings struct {
	baseCtx      context.Context
	mapReference ReferenceMapper
	mapValue     ValueMapper
	errorHandler func(err error)
	observer     observer
}

func defaultSettings() settings {
	return settings{
		baseCtx:      context.Background(),
		mapReference: identityReference,
		mapValue:     identityValue,
	}
}

// Option defines a functional option for configuring an Observable.
type Option func(*settings) error

// WithReferenceMapper sets the function that is applied to the resolved reference before
// the listener gets registered. It is invoked exactly once per subscription.
func WithReferenceMapper(mapper ReferenceMapper) Option {
	return func(s *settings) error {
		if mapper == nil {
			return ErrNilReferenceMapper
		}

		s.mapReference = mapper

		return nil
	}
}

// WithValueMapper sets the function that is applied to every raw value before delivery.
// Its result must have the value type of the Observable.
func WithValueMapper(mapper ValueMapper) Option {
	return func(s *settings) error {
		if mapper == nil {
			return ErrNilValueMapper
		}

		s.mapValue = mapper

		return nil
	}
}

// WithErrorHandler sets a handler that receives resolution failures and value mapping failures.
// Without it, such failures are only visible through logging, metrics, and Subscription.Err.
//
// The handler is called from the resolution goroutine or the backend's notification goroutine.
func WithErrorHandler(handler func(err error)) Option {
	return func(s *settings) error {
		if handler == nil {
			return ErrNilErrorHandler
		}

		s.errorHandler = handler

		return nil
	}
}

// WithBaseContext sets the context that is handed to the ClientGetter and used for logging and tracing.
// Unsubscribe does not cancel it.
func WithBaseContext(ctx context.Context) Option {
	return func(s *settings) error {
		if ctx == nil {
			return ErrNilBaseContext
		}

		s.baseCtx = ctx

		return nil
	}
}

// WithLogger sets the logger for the Observable.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: resolution steps and single deliveries (development use)
// Info level: subscriptions opened and closed (production-safe)
// Warn level: dropped notifications
// Error level: failures of the resolution chain.
func WithLogger(logger Logger) Option {
	return func(s *settings) error {
		s.observer.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Observable.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *settings) error {
		s.observer.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Observable.
// It receives subscription counts, resolution durations, notification counts, and mapping errors.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *settings) error {
		s.observer.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Observable.
// One span is recorded per subscription, covering the resolution chain up to registration.
func WithTracing(collector TracingCollector) Option {
	return func(s *settings) error {
		s.observer.tracingCollector = collector
		return nil
	}
}
