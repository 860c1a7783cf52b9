// Package hooks implements dispatcher.Hook integrations: Prometheus
// metrics, OpenTelemetry traces and structured logging of scan events.
package hooks

import (
	"context"
	"log/slog"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/dispatcher"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

var _ dispatcher.Hook = (*LoggerHook)(nil)

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// LoggerHook mirrors scan events into slog. Open ports and lifecycle
// events log at Info, other verdicts at Debug, errors at Warn (Error when
// fatal).
type LoggerHook struct {
	logger *slog.Logger
}

// NewLoggerHook creates a hook logging to l (slog.Default() when nil).
func NewLoggerHook(l *slog.Logger) *LoggerHook {
	return &LoggerHook{logger: orDefault(l)}
}

// OnEvent logs one event.
func (h *LoggerHook) OnEvent(ctx context.Context, event events.Event) error {
	scan := slog.String("scan_id", event.ScanID())

	switch e := event.(type) {
	case *events.StartEvent:
		h.logger.LogAttrs(ctx, slog.LevelInfo, "scan started", scan,
			slog.String("grafana", e.Grafana),
			slog.String("datasource", e.Datasource),
			slog.Int("targets", e.TotalTargets),
			slog.Int("resume_from", e.ResumeFrom))
	case *events.ResultEvent:
		level := slog.LevelDebug
		if e.Verdict == verdict.Open {
			level = slog.LevelInfo
		}
		h.logger.LogAttrs(ctx, level, "target classified", scan,
			slog.Int("index", e.Index),
			slog.String("target", e.Address()),
			slog.String("verdict", string(e.Verdict)),
			slog.Int("status", e.Status),
			slog.Float64("latency_ms", e.LatencyMs))
	case *events.RotationEvent:
		h.logger.LogAttrs(ctx, slog.LevelInfo, "session rotated", scan,
			slog.Int("count", e.Count),
			slog.Int("index", e.Index),
			slog.Time("expires", e.Expires))
	case *events.ErrorEvent:
		level := slog.LevelWarn
		if e.Fatal {
			level = slog.LevelError
		}
		h.logger.LogAttrs(ctx, level, "scan error", scan,
			slog.String("target", e.Target),
			slog.String("type", e.ErrorType),
			slog.String("error", e.Message))
	case *events.CompleteEvent:
		h.logger.LogAttrs(ctx, slog.LevelInfo, "scan finished", scan,
			slog.Bool("success", e.Success),
			slog.String("reason", e.ExitReason),
			slog.Int("processed", e.Processed),
			slog.Int("next_index", e.NextIndex),
			slog.Int("rotations", e.Rotations))
	}
	return nil
}

// EventTypes returns nil: the hook receives every event.
func (h *LoggerHook) EventTypes() []events.EventType {
	return nil
}
