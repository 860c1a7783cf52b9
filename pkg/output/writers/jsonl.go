// Package writers implements dispatcher.Writer for the scan outputs: the
// host:port/verdict line stream, newline-delimited JSON and the coloured
// console echo.
package writers

import (
	"io"
	"sync"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/jsonutil"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/dispatcher"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*JSONLWriter)(nil)

// JSONLWriter writes every event as one JSON object per line, so a run can
// be followed with jq or tail -f while it is still going.
type JSONLWriter struct {
	w       io.Writer
	mu      sync.Mutex
	opts    JSONLOptions
	encoder *jsonutil.Encoder
}

// JSONLOptions configures the JSONL writer behavior.
type JSONLOptions struct {
	// OmitEvidence drops the evidence snippet from result events.
	OmitEvidence bool

	// OnlyOpen keeps only result events with an open verdict. Lifecycle
	// events (start, rotation, error, complete) are always written.
	OnlyOpen bool
}

// NewJSONLWriter creates a new JSONL writer that writes to w.
// The writer is safe for concurrent use.
func NewJSONLWriter(w io.Writer, opts JSONLOptions) *JSONLWriter {
	return &JSONLWriter{
		w:       w,
		opts:    opts,
		encoder: jsonutil.NewStreamEncoder(w),
	}
}

// Write writes an event as a single JSON line.
// Returns nil if the event was filtered out by options.
func (jw *JSONLWriter) Write(event events.Event) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	re, isResult := event.(*events.ResultEvent)
	if !isResult {
		return jw.encoder.Encode(event)
	}
	if jw.opts.OnlyOpen && re.Verdict != verdict.Open {
		return nil
	}
	if jw.opts.OmitEvidence && re.Evidence != "" {
		filtered := *re
		filtered.Evidence = ""
		return jw.encoder.Encode(&filtered)
	}
	return jw.encoder.Encode(re)
}

// Flush is a no-op: the encoder writes each line straight through.
func (jw *JSONLWriter) Flush() error {
	return nil
}

// Close closes the writer and releases any resources.
// If the underlying writer implements io.Closer, it will be closed.
func (jw *JSONLWriter) Close() error {
	return closeUnderlying(jw.w)
}

// SupportsEvent returns true for all event types.
func (jw *JSONLWriter) SupportsEvent(_ events.EventType) bool {
	return true
}
