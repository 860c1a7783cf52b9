package httpclient

import "errors"

// Sentinel errors for HTTP client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidProxy indicates a malformed proxy URL or unsupported scheme.
	ErrInvalidProxy = errors.New("httpclient: invalid proxy")

	// ErrProxyConnect indicates the client failed to connect through
	// the configured SOCKS proxy.
	ErrProxyConnect = errors.New("httpclient: proxy connection failed")

	// ErrTLS indicates a TLS handshake or certificate verification failure.
	ErrTLS = errors.New("httpclient: TLS handshake failed")
)
