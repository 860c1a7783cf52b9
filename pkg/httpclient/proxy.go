package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Proxy is a parsed upstream proxy for Grafana traffic. http and https
// proxies are used through CONNECT; socks5 and socks5h replace the dialer.
type Proxy struct {
	URL *url.URL

	// SOCKS is set for socks5 and socks5h.
	SOCKS bool
	// RemoteDNS is set for socks5h: the proxy resolves the Grafana name.
	RemoteDNS bool
}

var defaultProxyPorts = map[string]string{
	"http":    "8080",
	"https":   "8443",
	"socks5":  "1080",
	"socks5h": "1080",
}

// ParseProxy validates a proxy URL. A bare host:port means http. An empty
// string is no proxy and returns nil, nil.
func ParseProxy(raw string) (*Proxy, error) {
	if raw == "" {
		return nil, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	port, ok := defaultProxyPorts[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported scheme %q (http, https, socks5, socks5h)", ErrInvalidProxy, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidProxy)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}

	return &Proxy{
		URL:       u,
		SOCKS:     strings.HasPrefix(u.Scheme, "socks"),
		RemoteDNS: u.Scheme == "socks5h",
	}, nil
}

// Addr returns host:port of the proxy.
func (p *Proxy) Addr() string {
	if p == nil {
		return ""
	}
	return p.URL.Host
}

// Redacted is the proxy URL with any password masked.
func (p *Proxy) Redacted() string {
	if p == nil {
		return ""
	}
	return p.URL.Redacted()
}

// RedactProxy masks the password in a proxy URL for display. Unparseable
// input comes back unchanged.
func RedactProxy(raw string) string {
	p, err := ParseProxy(raw)
	if err != nil || p == nil {
		return raw
	}
	return p.Redacted()
}

// ContextDialer is the dial hook http.Transport takes.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// socksDialer bounds the SOCKS handshake, which x/net/proxy leaves to the
// caller's context.
type socksDialer struct {
	next    proxy.ContextDialer
	timeout time.Duration
}

func (d *socksDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	conn, err := d.next.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProxyConnect, err)
	}
	return conn, nil
}

// Dialer returns a dialer that tunnels through a SOCKS proxy. Each dial,
// handshake included, is cut off after timeout.
func (p *Proxy) Dialer(timeout time.Duration) (ContextDialer, error) {
	if p == nil || !p.SOCKS {
		return nil, fmt.Errorf("%w: not a SOCKS proxy", ErrInvalidProxy)
	}

	// x/net/proxy hands hostnames to the proxy unresolved, so socks5h
	// needs nothing extra.
	u := *p.URL
	u.Scheme = "socks5"
	d, err := proxy.FromURL(&u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("%w: SOCKS dialer without context support", ErrInvalidProxy)
	}
	return &socksDialer{next: cd, timeout: timeout}, nil
}
