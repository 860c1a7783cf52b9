// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	cfg.RotateEvery = defaults.RotateEvery
//	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
//
// DO NOT use hardcoded values like `RotateEvery: 10` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current grafuna version
const Version = "0.3.1"

// ToolName is the binary name used in usage text, metrics and telemetry.
const ToolName = "grafuna"

// ============================================================================
// SESSION SETTINGS
// ============================================================================
//
// Grafana session handling. The cookie carries the opaque session token and
// is replaced on every rotation.
// ============================================================================

const (
	// SessionCookie is the Grafana session cookie name
	SessionCookie = "grafana_session"

	// SessionExpiryCookie is set by Grafana alongside a rotated session (unix seconds)
	SessionExpiryCookie = "grafana_session_expiry"

	// RotateEvery is the number of probes between proactive token rotations (10)
	RotateEvery = 10
)

// ============================================================================
// DATASOURCE SETTINGS
// ============================================================================
//
// Values for the hijacked MSSQL datasource and its health-check headers.
// ============================================================================

const (
	// OrgID is the Grafana organisation sent in X-Grafana-Org-Id (1)
	OrgID = 1

	// PluginID is the datasource plugin whose health check is used as oracle
	PluginID = "mssql"

	// DatasourceName is the name written when no lookup result is available
	DatasourceName = "mssql"

	// AuthenticationType makes the health check attempt a TDS handshake without
	// needing stored credentials
	AuthenticationType = "Windows Authentication"

	// MSSQLDatabase is the database written into jsonData
	MSSQLDatabase = "master"
)

// ============================================================================
// CONTENT TYPES
// ============================================================================

const (
	// ContentTypeJSON is for JSON API requests
	ContentTypeJSON = "application/json"

	// ContentTypePlain is for plain text
	ContentTypePlain = "text/plain"
)

// ============================================================================
// ACCEPT HEADERS
// ============================================================================

const (
	// AcceptAll accepts any content type
	AcceptAll = "*/*"

	// AcceptGrafanaAPI is what the Grafana frontend sends to its own API
	AcceptGrafanaAPI = "application/json, text/plain, */*"
)

// ============================================================================
// USER AGENTS
// ============================================================================
//
// Use the constants for specific browser emulation. The identity profile in
// pkg/oracle picks one of these unless the config file overrides it.
// ============================================================================

const (
	// UAChrome is the desktop Chrome on macOS string used by the default identity
	UAChrome = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

	// UAFirefox is desktop Firefox on Windows
	UAFirefox = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0"

	// UASafari is desktop Safari on macOS
	UASafari = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"

	// UAMinimal identifies the tool honestly
	UAMinimal = ToolName + "/" + Version
)

// UAWithContext returns the tool user agent with a context suffix.
func UAWithContext(context string) string {
	if context == "" {
		return UAMinimal
	}
	return fmt.Sprintf("%s/%s (%s)", ToolName, Version, context)
}

// ============================================================================
// METRICS / TELEMETRY
// ============================================================================

const (
	// MetricsPort is the default Prometheus listen port (9090)
	MetricsPort = 9090

	// MetricsPath is the default Prometheus scrape path
	MetricsPath = "/metrics"

	// OTelEndpoint is the default OTLP gRPC endpoint
	OTelEndpoint = "localhost:4317"
)

// ============================================================================
// BODY LIMITS
// ============================================================================

const (
	// EvidenceMax is the maximum number of body bytes kept as probe evidence
	EvidenceMax = 512
)
