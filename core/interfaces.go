package core

import (
	"context"
	"sync"
)

// Logger is the minimal structured logging interface used across every
// VERITAS package. Two implementations ship in this module: NoOpLogger
// (used by default in tests and library embeddings) and
// telemetry.TelemetryLogger (used by cmd/veritasd and resilience).
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with a component tag that shows up on
// every structured log line, e.g. "pipeline/gather_evidence" or "fuji/gate".
//
// Component naming convention:
//   - "pipeline/<stage>"  - a Decision Pipeline stage
//   - "fuji/<layer>"      - a FUJI safety layer
//   - "trustlog"          - the audit log
//   - "llmclient/<name>"  - an LLM or safety-head collaborator
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry is the optional tracing/metrics facade. VERITAS wraps every
// pipeline stage and every FUJI layer in a span obtained from this
// interface; when telemetry is unavailable NoOpTelemetry keeps the call
// sites unchanged.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a single telemetry span.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// Default no-op implementations.

// NoOpLogger discards everything. It is the zero-value-safe default for
// Config.Logger so callers never need a nil check before logging.
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}

// NoOpTelemetry discards spans and metrics.
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan discards attributes and errors.
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// Service models an external collaborator that may or may not be wired up
// for a given deployment: Available(v) or Unavailable(reason). Pipeline
// stages take the collaborator through Value(), whose second result (like
// IsAvailable()) reports availability, and degrade to the stage's
// documented fallback when it is false, rather than branching on a nil
// pointer.
type Service[T any] struct {
	value T
	err   error
}

// Available wraps a ready-to-use collaborator.
func Available[T any](v T) Service[T] {
	return Service[T]{value: v}
}

// Unavailable wraps a reason a collaborator could not be constructed.
func Unavailable[T any](reason error) Service[T] {
	return Service[T]{err: reason}
}

func (s Service[T]) IsAvailable() bool { return s.err == nil }

// Value returns the wrapped collaborator and whether it is available.
func (s Service[T]) Value() (T, bool) {
	return s.value, s.err == nil
}

// Reason returns why the collaborator is unavailable, or nil if it is.
func (s Service[T]) Reason() error { return s.err }

// ============================================================================
// Global registry pattern for telemetry integration (mirrors the way a
// logger created before telemetry initializes still lights up once it does).
// ============================================================================

// MetricsRegistry lets the telemetry package register itself with core
// without core importing telemetry back.
type MetricsRegistry interface {
	Counter(name string, labels ...string)
	Gauge(name string, value float64, labels ...string)
	Histogram(name string, value float64, labels ...string)
	EmitWithContext(ctx context.Context, name string, value float64, labels ...string)
}

var globalMetricsRegistry MetricsRegistry
var registryMu sync.RWMutex

// SetMetricsRegistry is called by telemetry.Initialize (through
// EnableMetricsBridge) and with nil by telemetry.Shutdown.
func SetMetricsRegistry(registry MetricsRegistry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	globalMetricsRegistry = registry
}

// GetGlobalMetricsRegistry returns the registered MetricsRegistry, or nil if
// telemetry has not initialized yet.
func GetGlobalMetricsRegistry() MetricsRegistry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return globalMetricsRegistry
}
