package telemetry

import (
	"context"

	"github.com/veritasfuji-japan/veritas/core"
)

// metricsRegistryBridge implements core.MetricsRegistry on top of this
// package's global Emit/EmitWithContext functions, so pipeline/fuji/trustlog
// code can emit metrics through core without importing telemetry directly.
type metricsRegistryBridge struct {
	logger *TelemetryLogger
}

// newMetricsRegistryBridge creates a new bridge registry.
func newMetricsRegistryBridge(logger *TelemetryLogger) *metricsRegistryBridge {
	return &metricsRegistryBridge{logger: logger}
}

func (f *metricsRegistryBridge) Counter(name string, labels ...string) {
	Emit(name, 1.0, labels...)
}

func (f *metricsRegistryBridge) Gauge(name string, value float64, labels ...string) {
	Emit(name, value, labels...)
}

func (f *metricsRegistryBridge) Histogram(name string, value float64, labels ...string) {
	Emit(name, value, labels...)
}

func (f *metricsRegistryBridge) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
	EmitWithContext(ctx, name, value, labels...)
}

func (f *metricsRegistryBridge) GetBaggage(ctx context.Context) map[string]string {
	return GetBaggage(ctx)
}

// EnableMetricsBridge registers this package's Emit functions with core so
// every VERITAS package can emit metrics through core.GetGlobalMetricsRegistry
// without importing telemetry directly. Called once from Initialize().
func EnableMetricsBridge(logger *TelemetryLogger) {
	registry := newMetricsRegistryBridge(logger)
	core.SetMetricsRegistry(registry)

	if logger != nil {
		logger.Info("metrics bridge enabled", map[string]interface{}{
			"integration": "core.MetricsRegistry",
		})
	}
}
