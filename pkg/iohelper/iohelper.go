// Package iohelper provides helper functions for I/O operations,
// particularly for safely reading HTTP response bodies with limits.
package iohelper

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/internal/hexutil"
)

// Standard body size limits for different use cases
const (
	// SmallMaxBodySize is for error pages and health-check answers (8KB)
	SmallMaxBodySize int64 = 8 * 1024

	// DefaultMaxBodySize is for Grafana API responses (1MB)
	DefaultMaxBodySize int64 = 1024 * 1024
)

// ReadBody reads from an io.Reader with a size limit.
// If r is nil, returns empty slice and no error.
//
// Usage:
//
//	body, err := iohelper.ReadBody(resp.Body, iohelper.DefaultMaxBodySize)
//	defer resp.Body.Close()
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodySmall reads from an io.Reader with an 8KB limit.
func ReadBodySmall(r io.Reader) ([]byte, error) {
	return ReadBody(r, SmallMaxBodySize)
}

// DrainAndClose reads any remaining data from r and closes it if it's a ReadCloser.
// This ensures the connection can be reused for HTTP keep-alive.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}

// Snippet flattens s to a single line and cuts it to at most max bytes
// without splitting a UTF-8 sequence. Control bytes that survive, such as
// terminal escapes, come back as \xXX. Used for evidence and trace output.
func Snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || len(s) <= max {
		return hexutil.EscapeControl(s)
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return hexutil.EscapeControl(s[:cut]) + "..."
}
