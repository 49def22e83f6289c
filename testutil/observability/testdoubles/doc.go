// Package testdoubles provides test doubles (spies) for the observability interfaces of package realtime.
//
//   - LogHandlerSpy: a slog.Handler capturing log records
//   - ContextualLoggerSpy: captures context-aware logging calls
//   - MetricsCollectorSpy: captures metrics recording calls
//   - TracingCollectorSpy: captures spans and their final status
//
// These test doubles enable testing of observability instrumentation without telemetry backends.
package testdoubles
