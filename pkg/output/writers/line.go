package writers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/dispatcher"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
)

var _ dispatcher.Writer = (*LineWriter)(nil)

// LineWriter emits the primary result stream: one "host:port/verdict" line
// per target, in scan order. Nothing else is written, so two runs over the
// same targets against the same network produce identical files.
type LineWriter struct {
	w   io.Writer
	buf *bufio.Writer
	mu  sync.Mutex
}

// NewLineWriter creates a line writer over w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w, buf: bufio.NewWriter(w)}
}

// Write appends the line for a result event. Other events are ignored.
func (lw *LineWriter) Write(event events.Event) error {
	re, ok := event.(*events.ResultEvent)
	if !ok {
		return nil
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := fmt.Fprintf(lw.buf, "%s/%s\n", re.Address(), re.Verdict)
	return err
}

// Flush pushes buffered lines to the underlying writer.
func (lw *LineWriter) Flush() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.buf.Flush()
}

// Close flushes and closes the underlying writer unless it is stdout or stderr.
func (lw *LineWriter) Close() error {
	if err := lw.Flush(); err != nil {
		return err
	}
	return closeUnderlying(lw.w)
}

// SupportsEvent reports true only for result events.
func (lw *LineWriter) SupportsEvent(t events.EventType) bool {
	return t == events.EventTypeResult
}

// closeUnderlying closes w if it owns a resource. The process standard
// streams are left open.
func closeUnderlying(w io.Writer) error {
	if w == os.Stdout || w == os.Stderr {
		return nil
	}
	if c, ok := w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
