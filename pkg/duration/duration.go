// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.ProbeTimeout)
//	rules.ClosedBelow = duration.ClosedBelow
//
// DO NOT use hardcoded time.Duration values like `2 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// ORACLE TIMEOUTS
// ============================================================================
//
// The health-check probe is bounded tightly because a missing answer is
// itself signal. API calls (lookup, reconfigure, rotate) use a generous
// timeout since nothing is inferred from their latency.
// ============================================================================

const (
	// ProbeTimeout bounds one datasource health-check call (2s)
	ProbeTimeout = 2 * time.Second

	// HTTPAPI is for Grafana API calls: lookup, reconfigure, rotate (30s)
	HTTPAPI = 30 * time.Second
)

// ============================================================================
// VERDICT THRESHOLDS
// ============================================================================
//
// Tuned to the MSSQL plugin's own connect timeout. A refusal answered faster
// than ClosedBelow is an RST; anything at or past FilteredFrom timed out
// upstream. The band in between is reported as unknown.
// ============================================================================

const (
	// ClosedBelow is the latency under which a connect failure means closed (1s)
	ClosedBelow = 1 * time.Second

	// FilteredFrom is the latency from which a connect failure means filtered (2s)
	FilteredFrom = 2 * time.Second
)

// ============================================================================
// SHUTDOWN / TELEMETRY
// ============================================================================

const (
	// SignalGrace is how long a second interrupt is awaited before forcing exit (30s)
	SignalGrace = 30 * time.Second

	// HookShutdown bounds flushing of metrics and trace exporters (5s)
	HookShutdown = 5 * time.Second

	// HookConnect bounds establishing the OTLP exporter connection (10s)
	HookConnect = 10 * time.Second

	// MetricsReadTimeout is the Prometheus endpoint read timeout (5s)
	MetricsReadTimeout = 5 * time.Second

	// MetricsWriteTimeout is the Prometheus endpoint write timeout (10s)
	MetricsWriteTimeout = 10 * time.Second
)

// ============================================================================
// NETWORK TIMEOUTS
// ============================================================================
//
// Low-level network timeouts for TCP/TLS connections to Grafana.
// ============================================================================

const (
	// DialTimeout is for TCP connection establishment (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is the TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is how long idle connections stay in pool (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is the TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second
)
