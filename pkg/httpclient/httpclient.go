// Package httpclient builds the HTTP client used for every Grafana API
// call: pooled connections, no redirect following, optional proxying,
// optional browser ClientHello, and optional request tracing.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
	tlsfp "github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/tls"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: duration.HTTPAPI).
	// Per-call deadlines from the request context still apply.
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool

	// Proxy is an http, https, socks5 or socks5h proxy URL (optional)
	Proxy string

	// TLSProfile names a ClientHello fingerprint (see pkg/tls). Empty
	// uses the standard library handshake.
	TLSProfile string

	// MaxIdleConns is the maximum number of idle connections (default: 10)
	MaxIdleConns int

	// IdleConnTimeout is how long idle connections stay in pool (default: 90s)
	IdleConnTimeout time.Duration

	// DialTimeout is the timeout for establishing connections (default: 10s)
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the timeout for TLS handshake (default: 10s)
	TLSHandshakeTimeout time.Duration

	// Trace logs every request and response at debug level when set.
	Trace *slog.Logger
}

// DefaultConfig returns the defaults for talking to one Grafana instance.
func DefaultConfig() Config {
	return Config{
		Timeout:             duration.HTTPAPI,
		InsecureSkipVerify:  true,
		MaxIdleConns:        10,
		IdleConnTimeout:     duration.IdleConnTimeout,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
	}
}

// New creates an HTTP client with the given configuration. Zero fields
// take their DefaultConfig values. It fails on a malformed proxy URL or
// an unknown TLS profile.
func New(cfg Config) (*http.Client, error) {
	def := DefaultConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		DialContext:         dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	px, err := ParseProxy(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	switch {
	case px == nil:
	case px.SOCKS:
		socks, err := px.Dialer(cfg.DialTimeout)
		if err != nil {
			return nil, err
		}
		transport.DialContext = socks.DialContext
	default:
		transport.Proxy = http.ProxyURL(px.URL)
	}

	if cfg.TLSProfile != "" {
		if px != nil && !px.SOCKS {
			return nil, fmt.Errorf("%w: TLS profile %q needs a direct connection or a SOCKS proxy", ErrInvalidProxy, cfg.TLSProfile)
		}
		profile, err := tlsfp.GetProfileByName(cfg.TLSProfile)
		if err != nil {
			return nil, err
		}
		fp := &tlsfp.Dialer{
			Profile:    profile,
			Dial:       transport.DialContext,
			SkipVerify: cfg.InsecureSkipVerify,
		}
		handshake := cfg.TLSHandshakeTimeout
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			ctx, cancel := context.WithTimeout(ctx, handshake)
			defer cancel()
			conn, err := fp.DialTLSContext(ctx, network, addr)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrTLS, err)
			}
			return conn, nil
		}
	} else {
		transport.ForceAttemptHTTP2 = true
	}

	var rt http.RoundTripper = transport
	if cfg.Trace != nil {
		rt = &traceTransport{base: transport, log: cfg.Trace}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// A redirect from the API means the session is gone (login page).
			return http.ErrUseLastResponse
		},
	}, nil
}
