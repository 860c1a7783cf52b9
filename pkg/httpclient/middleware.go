package httpclient

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/iohelper"
)

// redactedHeaders never reach the trace log.
var redactedHeaders = map[string]bool{
	"Cookie":        true,
	"Set-Cookie":    true,
	"Authorization": true,
}

// traceTransport logs each request and response at debug level. The
// response body is buffered (up to iohelper.DefaultMaxBodySize) so a
// snippet can be logged and the caller still reads the full text.
type traceTransport struct {
	base http.RoundTripper
	log  *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !t.log.Enabled(ctx, slog.LevelDebug) {
		return t.base.RoundTrip(req)
	}

	t.log.DebugContext(ctx, "http request",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Any("headers", redact(req.Header)),
	)

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)
	if err != nil {
		t.log.DebugContext(ctx, "http error",
			slog.String("url", req.URL.String()),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	body, readErr := iohelper.ReadBody(resp.Body, iohelper.DefaultMaxBodySize)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	attrs := []any{
		slog.Int("status", resp.StatusCode),
		slog.String("url", req.URL.String()),
		slog.Duration("elapsed", elapsed),
		slog.Any("headers", redact(resp.Header)),
		slog.String("body", iohelper.Snippet(string(body), defaults.EvidenceMax)),
	}
	if readErr != nil {
		attrs = append(attrs, slog.String("read_error", readErr.Error()))
	}
	t.log.DebugContext(ctx, "http response", attrs...)

	return resp, nil
}

func redact(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if redactedHeaders[http.CanonicalHeaderKey(k)] {
			out[k] = "[redacted]"
			continue
		}
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
