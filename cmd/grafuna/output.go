package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/config"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/dispatcher"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/hooks"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/writers"
)

// outputSpec is what buildDispatcher needs to know about the run.
type outputSpec struct {
	Path     string // result lines; "-" or "" is stdout
	JSONL    string // optional event log; "-" is stdout
	Silent   bool
	OnlyOpen bool

	// Append keeps what an interrupted run already wrote to Path and JSONL.
	Append  bool
	Metrics config.MetricsConfig
	OTel    config.OTelConfig
}

// buildDispatcher wires the writers and hooks for a scan. The line
// stream always exists; the console echo only when results go to a file,
// so stdout stays exactly host:port/verdict lines.
func buildDispatcher(spec outputSpec, stdout, stderr io.Writer, logger *slog.Logger) (*dispatcher.Dispatcher, error) {
	d := dispatcher.New(dispatcher.Config{Async: false, Logger: logger})

	toStdout := isStdout(spec.Path)
	if toStdout {
		d.RegisterWriter(writers.NewLineWriter(stdout))
	} else {
		f, err := openOutput(spec.Path, spec.Append)
		if err != nil {
			return nil, fmt.Errorf("%w: output: %w", config.ErrInvalidConfig, err)
		}
		d.RegisterWriter(writers.NewLineWriter(f))
	}

	switch spec.JSONL {
	case "":
	case "-":
		if toStdout {
			d.Close()
			return nil, fmt.Errorf("%w: -jsonl - needs -o pointing at a file", config.ErrInvalidConfig)
		}
		d.RegisterWriter(writers.NewJSONLWriter(stdout, writers.JSONLOptions{}))
	default:
		f, err := openOutput(spec.JSONL, spec.Append)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("%w: jsonl: %w", config.ErrInvalidConfig, err)
		}
		d.RegisterWriter(writers.NewJSONLWriter(f, writers.JSONLOptions{}))
	}

	if !toStdout && !spec.Silent {
		d.RegisterWriter(writers.NewConsoleWriter(stderr, writers.ConsoleOptions{OnlyOpen: spec.OnlyOpen}))
	}

	d.RegisterHook(hooks.NewLoggerHook(logger))

	if spec.Metrics.Port > 0 {
		h, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{
			Port:   spec.Metrics.Port,
			Path:   spec.Metrics.Path,
			Logger: logger,
		})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("metrics: %w", err)
		}
		logger.Info("serving metrics", slog.String("addr", h.MetricsAddr()))
		d.RegisterHook(h)
	}

	if spec.OTel.Endpoint != "" {
		h, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint:    spec.OTel.Endpoint,
			ServiceName: defaults.ToolName,
			Insecure:    spec.OTel.Insecure,
			Headers:     spec.OTel.Headers,
		})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("otel: %w", err)
		}
		d.RegisterHook(h)
	}

	return d, nil
}

// openOutput truncates for a fresh scan and appends for a resumed one.
func openOutput(path string, appendTo bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendTo {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	return os.OpenFile(path, flags, 0o644)
}

func isStdout(path string) bool {
	return path == "" || path == "-"
}
