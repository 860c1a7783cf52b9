package writers

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/dispatcher"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ui"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

var _ dispatcher.Writer = (*ConsoleWriter)(nil)

// ConsoleWriter echoes results to a terminal with verdict colours, in the
// bracketed style of the rest of the CLI:
//
//	[+] [open] 10.0.0.5:1433 [400] [12ms]
//
// Rotations and errors get their own lines; the complete event prints a
// verdict tally.
type ConsoleWriter struct {
	w       io.Writer
	mu      sync.Mutex
	opts    ConsoleOptions
	glyphOK bool
}

// ConsoleOptions configures the console writer.
type ConsoleOptions struct {
	// OnlyOpen suppresses every result line except open ports.
	OnlyOpen bool

	// ShowEvidence appends the evidence snippet to non-open results.
	ShowEvidence bool
}

// NewConsoleWriter creates a console writer over w (normally os.Stderr).
func NewConsoleWriter(w io.Writer, opts ConsoleOptions) *ConsoleWriter {
	return &ConsoleWriter{w: w, opts: opts, glyphOK: unicodeSupported(w)}
}

// Write renders one event.
func (cw *ConsoleWriter) Write(event events.Event) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	switch e := event.(type) {
	case *events.ResultEvent:
		return cw.writeResult(e)
	case *events.RotationEvent:
		line := fmt.Sprintf("  %s session rotated (#%d at target %d)", ui.InfoStyle.Render("*"), e.Count, e.Index)
		if !e.Expires.IsZero() {
			line += ui.StatLabelStyle.Render(" expires " + e.Expires.Format("15:04:05"))
		}
		_, err := fmt.Fprintln(cw.w, line)
		return err
	case *events.ErrorEvent:
		msg := e.Message
		if e.Target != "" {
			msg = e.Target + ": " + msg
		}
		style, mark := ui.WarningStyle, "[!]"
		if e.Fatal {
			style, mark = ui.FailStyle, "[X]"
		}
		_, err := fmt.Fprintln(cw.w, style.Render("  "+mark+" "+ui.SanitizeString(msg)))
		return err
	case *events.CompleteEvent:
		return cw.writeSummary(e)
	}
	return nil
}

func (cw *ConsoleWriter) writeResult(e *events.ResultEvent) error {
	if cw.opts.OnlyOpen && e.Verdict != verdict.Open {
		return nil
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(cw.marker(e.Verdict))
	b.WriteString(" ")
	b.WriteString(bracket(ui.VerdictStyle(e.Verdict).Render(string(e.Verdict))))
	b.WriteString(" ")
	b.WriteString(ui.ConfigValueStyle.Render(e.Address()))
	if e.Status != 0 {
		b.WriteString(" ")
		b.WriteString(bracket(ui.StatusCodeStyle(e.Status).Render(fmt.Sprintf("%d", e.Status))))
	}
	b.WriteString(" ")
	b.WriteString(bracket(ui.StatLabelStyle.Render(fmt.Sprintf("%.0fms", e.LatencyMs))))
	if cw.opts.ShowEvidence && e.Verdict != verdict.Open && e.Evidence != "" {
		b.WriteString(" ")
		b.WriteString(ui.HelpStyle.Render(ui.SanitizeString(e.Evidence)))
	}

	_, err := fmt.Fprintln(cw.w, b.String())
	return err
}

func (cw *ConsoleWriter) writeSummary(e *events.CompleteEvent) error {
	var b strings.Builder
	b.WriteString("\n  ")
	if e.Success {
		b.WriteString(ui.SuccessStyle.Render("scan complete"))
	} else {
		b.WriteString(ui.FailStyle.Render("scan stopped: " + e.ExitReason))
	}
	fmt.Fprintf(&b, " %s\n", ui.StatLabelStyle.Render(fmt.Sprintf("(%d/%d targets, %d rotations, %.1fs)",
		e.Processed, e.Total, e.Rotations, e.DurationSec)))

	for _, v := range verdict.All {
		if n := e.Verdicts[v]; n > 0 {
			fmt.Fprintf(&b, "    %s %d\n", ui.VerdictStyle(v).Render(fmt.Sprintf("%-9s", v)), n)
		}
	}
	if e.LeftAt != "" {
		fmt.Fprintf(&b, "  %s\n", ui.WarningStyle.Render("[!] datasource left pointing at "+e.LeftAt))
	}
	_, err := fmt.Fprint(cw.w, b.String())
	return err
}

func (cw *ConsoleWriter) marker(v verdict.Verdict) string {
	if v == verdict.Open {
		if cw.glyphOK {
			return ui.SuccessStyle.Render("✔")
		}
		return ui.SuccessStyle.Render("[+]")
	}
	if cw.glyphOK {
		return ui.StatLabelStyle.Render("·")
	}
	return ui.StatLabelStyle.Render("[-]")
}

func bracket(s string) string {
	return ui.BracketStyle.Render("[") + s + ui.BracketStyle.Render("]")
}

// Flush is a no-op; lines go straight to the terminal.
func (cw *ConsoleWriter) Flush() error { return nil }

// Close never closes the terminal stream.
func (cw *ConsoleWriter) Close() error { return nil }

// SupportsEvent accepts everything except the start event, which the CLI
// renders as its config banner.
func (cw *ConsoleWriter) SupportsEvent(t events.EventType) bool {
	return t != events.EventTypeStart
}
