package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/cli"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/config"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/jsonutil"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ui"
)

// runDatasource prints the datasource config as Grafana returns it,
// without changing anything. Useful for picking -version and checking
// what -restore would write back.
func runDatasource(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("datasource", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var tf targetFlags
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return exitWith(fmt.Errorf("%w: %w", config.ErrInvalidConfig, err))
	}

	ui.SetNoColor(*tf.NoColor)
	logger := newLogger(stderr, *tf.Debug)

	ctx, cancel := cli.SignalContext(duration.SignalGrace)
	defer cancel()

	return exitWith(showDatasource(ctx, fs, &tf, stdout, logger))
}

func showDatasource(ctx context.Context, fs *flag.FlagSet, tf *targetFlags, stdout io.Writer, logger *slog.Logger) error {
	switch {
	case *tf.Target == "":
		return fmt.Errorf("%w: -t (datasource edit URL)", config.ErrMissingRequired)
	case *tf.Session == "":
		return fmt.Errorf("%w: -s (session cookie)", config.ErrMissingRequired)
	}

	cfg, err := tf.loadConfig()
	if err != nil {
		return err
	}
	tf.applyTo(cfg, flagsSet(fs))
	if err := cfg.Validate(); err != nil {
		return err
	}

	g, err := connect(tf, cfg, logger)
	if err != nil {
		return err
	}
	ds, err := g.client.Lookup(ctx)
	if err != nil {
		return err
	}

	out, err := jsonutil.MarshalIndent(ds, "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", out)
	return err
}
