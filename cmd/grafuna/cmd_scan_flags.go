package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/config"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/targets"
)

// targetFlags are shared by every command that talks to a datasource.
type targetFlags struct {
	Target  *string
	Session *string

	Proxy      *string
	TLSProfile *string
	Insecure   *bool

	ConfigFile *string
	Debug      *bool
	NoColor    *bool
}

func (f *targetFlags) register(fs *flag.FlagSet) {
	f.Target = fs.String("target", "", "Datasource edit URL (https://grafana/connections/datasources/edit/<uid>)")
	fs.StringVar(f.Target, "t", "", "Datasource edit URL (alias)")
	f.Session = fs.String("session", "", "Grafana session cookie value")
	fs.StringVar(f.Session, "s", "", "Session cookie (alias)")

	f.Proxy = fs.String("proxy", "", "HTTP/SOCKS5 proxy URL for Grafana requests")
	f.TLSProfile = fs.String("tls-profile", "", "TLS ClientHello fingerprint: chrome, firefox, safari, edge, ios, golang")
	f.Insecure = fs.Bool("insecure", true, "Skip TLS certificate verification")

	f.ConfigFile = fs.String("config", "", "YAML config file (flags set on the command line win)")
	f.Debug = fs.Bool("debug", false, "Log every Grafana request and response")
	fs.BoolVar(f.Debug, "d", false, "Debug (alias)")
	f.NoColor = fs.Bool("no-color", false, "Disable colored output")
}

// scanConfig bundles every flag value for the scan command.
type scanConfig struct {
	targetFlags

	Ports     *string
	Hosts     *string
	HostsFile *string

	Output   *string
	JSONL    *string
	Silent   *bool
	OnlyOpen *bool

	Version      *int64
	DatasourceID *int64
	Restore      *bool
	Resume       *string

	RotateEvery  *int
	ClosedBelow  *time.Duration
	FilteredFrom *time.Duration
	ProbeTimeout *time.Duration
	Order        *string

	Rate   *float64
	Delay  *time.Duration
	Jitter *time.Duration

	MetricsPort  *int
	OTelEndpoint *string
}

// registerScanFlags creates the "scan" FlagSet, registers every flag,
// and returns both the FlagSet and the populated scanConfig.
func registerScanFlags() (*flag.FlagSet, *scanConfig) {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	cfg := &scanConfig{}
	cfg.targetFlags.register(fs)

	// Targets
	cfg.Ports = fs.String("ports", "", "Ports to check: 22,80,8000-8100")
	fs.StringVar(cfg.Ports, "p", "", "Ports (alias)")
	cfg.Hosts = fs.String("hosts", "", "Hosts in nmap style: 10.0.0.0/24 10.0.1.1-20 db.internal")
	fs.StringVar(cfg.Hosts, "H", "", "Hosts (alias)")
	cfg.HostsFile = fs.String("list", "", "File with one host spec per line, - for stdin")
	fs.StringVar(cfg.HostsFile, "l", "", "Host list (alias)")
	cfg.Order = fs.String("order", targets.PortMajor.String(), "Scan order: port (every host per port) or host (every port per host)")

	// Output
	cfg.Output = fs.String("output", "-", "Result file, - for stdout")
	fs.StringVar(cfg.Output, "o", "-", "Result file (alias)")
	cfg.JSONL = fs.String("jsonl", "", "Also write every scan event as JSON lines to this file")
	cfg.Silent = fs.Bool("silent", false, "No banner or progress on stderr")
	cfg.OnlyOpen = fs.Bool("open", false, "Echo only open ports on stderr")

	// Datasource
	cfg.Version = fs.Int64("version", 0, "Datasource version to send first (default: looked-up version + 1)")
	fs.Int64Var(cfg.Version, "v", 0, "Version (alias)")
	cfg.DatasourceID = fs.Int64("ds-id", 0, "Datasource numeric id; skips the lookup and writes the built-in MSSQL template")
	cfg.Restore = fs.Bool("restore", false, "Write the original datasource config back when the scan ends")
	cfg.Resume = fs.String("resume", "", "Checkpoint file: continue where a previous run with the same targets stopped")

	// Session and classification
	cfg.RotateEvery = fs.Int("rotate-every", defaults.RotateEvery, "Rotate the session before every Nth target")
	cfg.ClosedBelow = fs.Duration("closed-below", duration.ClosedBelow, "Refusals faster than this are closed")
	cfg.FilteredFrom = fs.Duration("filtered-from", duration.FilteredFrom, "Refusals or timeouts at least this slow are filtered")
	cfg.ProbeTimeout = fs.Duration("probe-timeout", duration.ProbeTimeout, "Health check timeout")

	// Pacing
	cfg.Rate = fs.Float64("rate", 0, "Max probes per second (0: unlimited)")
	cfg.Delay = fs.Duration("delay", 0, "Fixed delay between probes")
	cfg.Jitter = fs.Duration("jitter", 0, "Random jitter added to the delay")

	// Telemetry
	cfg.MetricsPort = fs.Int("metrics-port", 0, "Serve Prometheus metrics on this port (0: off)")
	cfg.OTelEndpoint = fs.String("otel-endpoint", "", "OTLP gRPC endpoint for scan traces (empty: off)")

	return fs, cfg
}

// flagsSet returns the names of the flags given on the command line.
// Aliases share a value, so either spelling counts.
func flagsSet(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func anySet(set map[string]bool, names ...string) bool {
	for _, n := range names {
		if set[n] {
			return true
		}
	}
	return false
}

// loadConfig reads the config file, or returns the defaults without one.
func (f *targetFlags) loadConfig() (*config.Config, error) {
	if *f.ConfigFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(*f.ConfigFile)
}

// applyTo lays the flags the operator actually typed over cfg. Flags left
// at their defaults never override file values.
func (f *targetFlags) applyTo(cfg *config.Config, set map[string]bool) {
	if set["proxy"] {
		cfg.Proxy = *f.Proxy
	}
	if set["tls-profile"] {
		cfg.TLSProfile = *f.TLSProfile
	}
	if set["insecure"] {
		cfg.Insecure = *f.Insecure
	}
}

// resolve merges the config file and the flags, then validates the
// result.
func (sc *scanConfig) resolve(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := sc.loadConfig()
	if err != nil {
		return nil, err
	}
	set := flagsSet(fs)
	sc.applyTo(cfg, set)

	if set["order"] {
		cfg.Order = *sc.Order
	}
	if set["rotate-every"] {
		cfg.Session.RotateEvery = *sc.RotateEvery
	}
	if set["closed-below"] {
		cfg.Rules.ClosedBelow = *sc.ClosedBelow
	}
	if set["filtered-from"] {
		cfg.Rules.FilteredFrom = *sc.FilteredFrom
	}
	if set["probe-timeout"] {
		cfg.ProbeTimeout = *sc.ProbeTimeout
	}
	if set["rate"] {
		cfg.Rate = *sc.Rate
	}
	if set["delay"] {
		cfg.Delay = *sc.Delay
	}
	if set["metrics-port"] {
		cfg.Metrics.Port = *sc.MetricsPort
	}
	if set["otel-endpoint"] {
		cfg.OTel.Endpoint = *sc.OTelEndpoint
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// requireTargets checks the flags the scan cannot run without.
func (sc *scanConfig) requireTargets() error {
	switch {
	case *sc.Target == "":
		return fmt.Errorf("%w: -t (datasource edit URL)", config.ErrMissingRequired)
	case *sc.Session == "":
		return fmt.Errorf("%w: -s (session cookie)", config.ErrMissingRequired)
	case *sc.Ports == "":
		return fmt.Errorf("%w: -p (ports)", config.ErrMissingRequired)
	case *sc.Hosts == "" && *sc.HostsFile == "":
		return fmt.Errorf("%w: -H (hosts) or -l (host list)", config.ErrMissingRequired)
	}
	return nil
}
