// Package config provides in-memory OpenTelemetry providers for testing the realtime observability adapters.
//
// The providers keep all telemetry in memory: metrics are read on demand with a manual reader and spans
// are collected by an in-memory exporter, so tests need no external observability infrastructure.
package config
