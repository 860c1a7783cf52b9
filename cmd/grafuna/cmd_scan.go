package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/checkpoint"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/cli"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/config"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/httpclient"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/oracle"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ratelimit"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/scanner"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/targets"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ui"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

func runScan(args []string, stdout, stderr io.Writer) int {
	fs, sc := registerScanFlags()
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return exitWith(fmt.Errorf("%w: %w", config.ErrInvalidConfig, err))
	}

	ui.SetSilent(*sc.Silent)
	ui.SetNoColor(*sc.NoColor)
	logger := newLogger(stderr, *sc.Debug)

	ctx, cancel := cli.SignalContext(duration.SignalGrace)
	defer cancel()

	return exitWith(scan(ctx, fs, sc, stdout, stderr, logger))
}

// scan runs one scan end to end. Everything that can be rejected without
// touching the network is checked before the first request.
func scan(ctx context.Context, fs *flag.FlagSet, sc *scanConfig, stdout, stderr io.Writer, logger *slog.Logger) error {
	if err := sc.requireTargets(); err != nil {
		return err
	}
	cfg, err := sc.resolve(fs)
	if err != nil {
		return err
	}
	set := flagsSet(fs)

	ports, err := targets.ParsePorts(*sc.Ports)
	if err != nil {
		return err
	}
	src := targets.Source{Hosts: *sc.Hosts, ListFile: *sc.HostsFile}
	hosts, err := src.GetHosts()
	if err != nil {
		if errors.Is(err, targets.ErrInvalidHost) || errors.Is(err, targets.ErrNoTargets) {
			return err
		}
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	order, err := targets.ParseOrder(cfg.Order)
	if err != nil {
		return err
	}
	seq := targets.NewSequence(hosts, ports, order)

	pacer, err := ratelimit.New(ratelimit.Config{Rate: cfg.Rate, Delay: cfg.Delay, Jitter: *sc.Jitter})
	if err != nil {
		return err
	}

	g, err := connect(&sc.targetFlags, cfg, logger)
	if err != nil {
		return err
	}

	// Discover the datasource, or trust -ds-id and write the template.
	var original *oracle.Datasource
	if id := *sc.DatasourceID; id > 0 {
		g.client.Adopt(oracle.MSSQLTemplate(id, g.target.UID))
	} else {
		original, err = g.client.Lookup(ctx)
		if err != nil {
			return err
		}
	}

	version := int64(0)
	switch {
	case anySet(set, "version", "v"):
		version = *sc.Version
	case original != nil:
		version = original.Version + 1
	}

	var ckpt *checkpoint.Manager
	start := 0
	if *sc.Resume != "" {
		ckpt = checkpoint.NewManager(*sc.Resume)
		existed := ckpt.Exists()
		st, err := ckpt.Begin(checkpoint.State{
			Fingerprint: seq.Fingerprint(),
			Grafana:     g.target.BaseURL,
			Datasource:  g.target.UID,
			Total:       seq.Len(),
			Version:     version,
		})
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		if st.Done() {
			ui.PrintInfo(fmt.Sprintf("checkpoint %s covers all %d targets, nothing left to scan", ckpt.Path(), st.Total))
			if err := ckpt.Delete(); err != nil {
				logger.Warn("checkpoint not removed", slog.String("path", ckpt.Path()), slog.Any("error", err))
			}
			return nil
		}
		start = st.NextIndex
		if st.Version > version && !anySet(set, "version", "v") {
			version = st.Version
		}
		switch {
		case start > 0:
			ui.PrintInfo(fmt.Sprintf("resuming at target %d of %d", start, seq.Len()))
		case !existed:
			ui.PrintInfo("checkpointing to " + ckpt.Path())
		}
	}
	g.session.SetVersion(version)

	d, err := buildDispatcher(outputSpec{
		Path:     *sc.Output,
		JSONL:    *sc.JSONL,
		Silent:   *sc.Silent,
		OnlyOpen: *sc.OnlyOpen,
		Append:   start > 0,
		Metrics:  cfg.Metrics,
		OTel:     cfg.OTel,
	}, stdout, stderr, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			logger.Warn("closing outputs", slog.Any("error", cerr))
		}
	}()

	var dsID int64
	if ds := g.client.Datasource(); ds != nil {
		dsID = ds.ID
	}

	ui.PrintBanner()
	ui.PrintConfigBanner(map[string]string{
		"Grafana":       g.target.BaseURL,
		"Datasource":    fmt.Sprintf("%s (id %d)", g.target.UID, dsID),
		"Hosts":         strconv.Itoa(len(hosts)),
		"Ports":         strconv.Itoa(len(ports)),
		"Targets":       strconv.Itoa(seq.Len()),
		"Order":         order.String(),
		"Rotate Every":  strconv.Itoa(cfg.Session.RotateEvery),
		"Probe Timeout": cfg.ProbeTimeout.String(),
		"Closed Below":  cfg.Rules.ClosedBelow.String(),
		"Filtered From": cfg.Rules.FilteredFrom.String(),
		"Rate":          pacer.String(),
		"Proxy":         httpclient.RedactProxy(cfg.Proxy),
		"TLS Profile":   cfg.TLSProfile,
		"Identity":      cfg.Identity.Profile,
		"Resume From":   resumeLabel(start),
		"Output":        *sc.Output,
		"Version":       versionLabel(version),
	})

	scfg := scanner.Config{
		Sequence:    seq,
		StartIndex:  start,
		RotateEvery: cfg.Session.RotateEvery,
		Rules:       cfg.Rules,
		Pacer:       pacer,
		Output:      d,
		ScanID:      uuid.NewString(),
		Logger:      logger,
		Start: events.StartEvent{
			Grafana:      g.target.BaseURL,
			Datasource:   g.target.UID,
			DatasourceID: dsID,
			Config: events.ScanConfig{
				ProbeTimeoutMs: cfg.ProbeTimeout.Milliseconds(),
				Rate:           cfg.Rate,
				Version:        version,
			},
		},
	}
	if ckpt != nil {
		scfg.Checkpoint = ckpt
	}
	s, err := scanner.New(g.client, g.session, scfg)
	if err != nil {
		return err
	}

	sum, runErr := s.Run(ctx)
	if isStdout(*sc.Output) {
		// With a result file the console writer already printed this.
		printSummary(sum)
	}

	finish(ctx, g, original, sum, *sc.Restore)

	if ckpt != nil {
		switch st := ckpt.State(); {
		case runErr == nil:
			if err := ckpt.Delete(); err != nil {
				logger.Warn("checkpoint not removed", slog.String("path", ckpt.Path()), slog.Any("error", err))
			}
		case st != nil && !st.Done():
			ui.PrintInfo(fmt.Sprintf("%d of %d targets done; rerun with -resume %s to continue", st.NextIndex, st.Total, ckpt.Path()))
		}
	}
	return runErr
}

// finish puts the datasource back when asked to, and otherwise says
// where it was left.
func finish(ctx context.Context, g *grafana, original *oracle.Datasource, sum scanner.Summary, restore bool) {
	left := sum.LeftAt
	if left == (targets.Target{}) {
		return
	}

	if restore && original != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.HTTPAPI)
		defer cancel()
		if err := g.client.Restore(rctx, original); err != nil {
			ui.PrintError(fmt.Sprintf("restore failed, datasource left pointing at %s (was %s): %v", left, original.URL, err))
			return
		}
		ui.PrintSuccess("datasource restored to " + original.URL)
		return
	}

	msg := "datasource left pointing at " + left.String()
	switch {
	case restore:
		msg += " (-restore needs the lookup; -ds-id skips it)"
	case original != nil:
		msg += " (was " + original.URL + "; -restore puts it back)"
	}
	ui.PrintWarning(msg)
}

func printSummary(sum scanner.Summary) {
	ui.PrintSection("Summary")
	ui.PrintStat("Processed", fmt.Sprintf("%d/%d", sum.Processed, sum.Total))
	for _, v := range verdict.All {
		if n := sum.Verdicts[v]; n > 0 {
			ui.PrintStat(string(v), strconv.Itoa(n))
		}
	}
	ui.PrintStat("Rotations", strconv.Itoa(sum.Rotations))
	ui.PrintStat("Duration", sum.Duration.Round(time.Millisecond).String())
	if sum.NextIndex < sum.Total {
		ui.PrintStat("Next index", strconv.Itoa(sum.NextIndex))
	}
}

func resumeLabel(start int) string {
	if start == 0 {
		return ""
	}
	return strconv.Itoa(start)
}

func versionLabel(v int64) string {
	if v == 0 {
		return "off"
	}
	return strconv.FormatInt(v, 10)
}
