// Package observability wires structured logging, OpenTelemetry tracing
// and metrics, and the Prometheus pipeline counters for batch runs.
package observability

import "log/slog"

// RunMode distinguishes strict from lenient batch execution in telemetry
// attributes.
type RunMode string

// Run modes.
const (
	ModeStrict  RunMode = "strict"
	ModeLenient RunMode = "lenient"
)

// defaultShutdownTimeoutSec bounds telemetry flush on exit.
const defaultShutdownTimeoutSec = 10

// Config controls observability initialization.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           RunMode

	LogLevel slog.Level
	LogJSON  bool

	// OTLPEndpoint enables OTLP gRPC export when non-empty; otherwise
	// no-op providers are installed with zero export overhead.
	OTLPEndpoint string
	OTLPInsecure bool
	OTLPHeaders  map[string]string

	// SampleRatio is the parent-based trace sampling ratio; 0 means
	// always sample.
	SampleRatio float64

	ShutdownTimeoutSec int
}
