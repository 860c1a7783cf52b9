// Package config loads the optional YAML settings file. Everything in it
// has a command-line equivalent or a sane default; the file exists for
// the parts that are awkward as flags (identity headers, classifier
// markers) and for repeatable engagements.
//
// Example:
//
//	session:
//	  cookie_name: grafana_session
//	  rotate_every: 10
//	datasource:
//	  org_id: 1
//	  plugin_id: mssql
//	identity:
//	  profile: firefox
//	  headers:
//	    Accept-Language: de-DE,de;q=0.9
//	rules:
//	  closed_below: 1s
//	  filtered_from: 2s
//	probe_timeout: 2s
//	rate: 2
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/oracle"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/targets"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// Config is the file-backed scan configuration.
type Config struct {
	Session    SessionConfig    `yaml:"session"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Identity   oracle.Identity  `yaml:"identity"`
	Rules      verdict.Rules    `yaml:"rules"`

	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	Order        string        `yaml:"order"`
	Rate         float64       `yaml:"rate"`
	Delay        time.Duration `yaml:"delay"`

	Proxy      string `yaml:"proxy"`
	TLSProfile string `yaml:"tls_profile"`
	Insecure   bool   `yaml:"insecure"`

	Metrics MetricsConfig `yaml:"metrics"`
	OTel    OTelConfig    `yaml:"otel"`
}

// SessionConfig controls the Grafana session cookie and rotation cadence.
type SessionConfig struct {
	CookieName  string `yaml:"cookie_name"`
	RotateEvery int    `yaml:"rotate_every"`
}

// DatasourceConfig describes the hijacked datasource.
type DatasourceConfig struct {
	OrgID    int    `yaml:"org_id"`
	PluginID string `yaml:"plugin_id"`
}

// MetricsConfig enables the Prometheus endpoint when Port is set.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// OTelConfig enables trace export when Endpoint is set.
type OTelConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Insecure bool              `yaml:"insecure"`
	Headers  map[string]string `yaml:"headers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			CookieName:  defaults.SessionCookie,
			RotateEvery: defaults.RotateEvery,
		},
		Datasource: DatasourceConfig{
			OrgID:    defaults.OrgID,
			PluginID: defaults.PluginID,
		},
		Identity:     oracle.DefaultIdentity(),
		Rules:        verdict.DefaultRules(),
		ProbeTimeout: duration.ProbeTimeout,
		Order:        targets.PortMajor.String(),
		Insecure:     true,
		Metrics: MetricsConfig{
			Path: defaults.MetricsPath,
		},
	}
}

// LoadFromFile reads and validates a YAML config file. Unset keys keep
// their defaults.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Load decodes YAML from r over Default. Unknown keys are rejected so a
// typo in a threshold name does not silently fall back to the default.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Session.CookieName) == "" {
		errs = append(errs, fmt.Errorf("%w: session.cookie_name", ErrMissingRequired))
	}
	if c.Session.RotateEvery < 1 {
		errs = append(errs, fmt.Errorf("%w: session.rotate_every must be at least 1, got %d", ErrInvalidConfig, c.Session.RotateEvery))
	}
	if c.Datasource.OrgID < 1 {
		errs = append(errs, fmt.Errorf("%w: datasource.org_id must be positive, got %d", ErrInvalidConfig, c.Datasource.OrgID))
	}
	if strings.TrimSpace(c.Datasource.PluginID) == "" {
		errs = append(errs, fmt.Errorf("%w: datasource.plugin_id", ErrMissingRequired))
	}
	if err := c.Identity.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: identity: %w", ErrInvalidConfig, err))
	}
	if err := c.Rules.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: rules: %w", ErrInvalidConfig, err))
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: probe_timeout must be positive", ErrInvalidConfig))
	} else if c.ProbeTimeout < c.Rules.FilteredFrom {
		// A probe cut off before the filtered threshold can never be
		// classified filtered.
		errs = append(errs, fmt.Errorf("%w: probe_timeout %s is below rules.filtered_from %s", ErrInvalidConfig, c.ProbeTimeout, c.Rules.FilteredFrom))
	}
	if _, err := targets.ParseOrder(c.Order); err != nil {
		errs = append(errs, fmt.Errorf("%w: order: %w", ErrInvalidConfig, err))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("%w: rate must not be negative", ErrInvalidConfig))
	}
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("%w: delay must not be negative", ErrInvalidConfig))
	}
	if c.Rate > 0 && c.Delay > 0 {
		errs = append(errs, fmt.Errorf("%w: rate and delay are mutually exclusive", ErrInvalidConfig))
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: metrics.port out of range: %d", ErrInvalidConfig, c.Metrics.Port))
	}

	return errors.Join(errs...)
}
