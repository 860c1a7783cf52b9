// Package tls dials TLS connections whose ClientHello matches a named
// browser, so the handshake agrees with the User-Agent the client sends.
//
// Based on:
// - https://github.com/refraction-networking/utls
package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile is a named ClientHello fingerprint.
type Profile struct {
	Name        string
	Description string
	// ClientHello is nil for the "golang" profile, which uses crypto/tls.
	ClientHello *utls.ClientHelloID
}

var profiles = map[string]*Profile{
	"chrome":  {Name: "chrome", Description: "Chrome 120 desktop", ClientHello: &utls.HelloChrome_120},
	"firefox": {Name: "firefox", Description: "Firefox 120 desktop", ClientHello: &utls.HelloFirefox_120},
	"safari":  {Name: "safari", Description: "Safari 16 macOS", ClientHello: &utls.HelloSafari_16_0},
	"edge":    {Name: "edge", Description: "Edge 106 Windows", ClientHello: &utls.HelloEdge_106},
	"ios":     {Name: "ios", Description: "Safari iOS 14", ClientHello: &utls.HelloIOS_14},
	"golang":  {Name: "golang", Description: "Go crypto/tls default"},
}

// ListProfiles returns the profile names, sorted.
func ListProfiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProfileByName returns a profile by name
func GetProfileByName(name string) (*Profile, error) {
	if p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown TLS profile %q (available: %s)", name, strings.Join(ListProfiles(), ", "))
}

// DialFunc opens the raw TCP connection the handshake runs over.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dialer performs fingerprinted TLS handshakes over connections from Dial.
type Dialer struct {
	Profile    *Profile
	Dial       DialFunc
	SkipVerify bool
}

// DialTLSContext is suitable for http.Transport.DialTLSContext. ALPN
// offers only http/1.1: the transport cannot see the negotiated protocol
// of a uTLS connection and always speaks HTTP/1.1 over it.
func (d *Dialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := d.Dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if d.Profile == nil || d.Profile.ClientHello == nil {
		tc := tls.Client(conn, &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: d.SkipVerify,
			NextProtos:         []string{"http/1.1"},
		})
		if err := tc.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		return tc, nil
	}

	spec, err := utls.UTLSIdToSpec(*d.Profile.ClientHello)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS profile %s: %w", d.Profile.Name, err)
	}
	pinHTTP11(&spec)

	uConn := utls.UClient(conn, &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: d.SkipVerify,
	}, utls.HelloCustom)
	if err := uConn.ApplyPreset(&spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS profile %s: %w", d.Profile.Name, err)
	}
	if err := uConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	return uConn, nil
}

func pinHTTP11(spec *utls.ClientHelloSpec) {
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
}
