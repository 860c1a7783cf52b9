package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "grafana_session", cfg.Session.CookieName)
	assert.Equal(t, 10, cfg.Session.RotateEvery)
	assert.Equal(t, 1, cfg.Datasource.OrgID)
	assert.Equal(t, "mssql", cfg.Datasource.PluginID)
	assert.Equal(t, "chrome", cfg.Identity.Profile)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "port", cfg.Order)
	assert.Equal(t, verdict.DefaultRules(), cfg.Rules)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Zero(t, cfg.Metrics.Port)
	assert.True(t, cfg.Insecure)
}

func TestLoad_Overrides(t *testing.T) {
	doc := `
session:
  cookie_name: grafana_sess
  rotate_every: 5
datasource:
  org_id: 3
identity:
  profile: firefox
  headers:
    Accept-Language: de-DE
    Pragma: ""
rules:
  closed_below: 500ms
  filtered_from: 1500ms
probe_timeout: 3s
order: host
delay: 250ms
otel:
  endpoint: collector:4317
  insecure: true
`
	cfg, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "grafana_sess", cfg.Session.CookieName)
	assert.Equal(t, 5, cfg.Session.RotateEvery)
	assert.Equal(t, 3, cfg.Datasource.OrgID)
	assert.Equal(t, "mssql", cfg.Datasource.PluginID, "unset keys keep defaults")
	assert.Equal(t, "firefox", cfg.Identity.Profile)
	assert.Equal(t, map[string]string{"Accept-Language": "de-DE", "Pragma": ""}, cfg.Identity.Headers)
	assert.Equal(t, 500*time.Millisecond, cfg.Rules.ClosedBelow)
	assert.Equal(t, 1500*time.Millisecond, cfg.Rules.FilteredFrom)
	assert.Equal(t, "invalid packet size", cfg.Rules.OpenMarker)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "host", cfg.Order)
	assert.Equal(t, 250*time.Millisecond, cfg.Delay)
	assert.Equal(t, "collector:4317", cfg.OTel.Endpoint)
	assert.True(t, cfg.OTel.Insecure)
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown key", "rotate_evry: 3\n", ErrInvalidConfig},
		{"bad yaml", "session: [\n", ErrInvalidConfig},
		{"zero cadence", "session:\n  rotate_every: 0\n", ErrInvalidConfig},
		{"empty cookie", "session:\n  cookie_name: \"\"\n", ErrMissingRequired},
		{"empty plugin", "datasource:\n  plugin_id: \"\"\n", ErrMissingRequired},
		{"bad org", "datasource:\n  org_id: 0\n", ErrInvalidConfig},
		{"bad identity", "identity:\n  profile: netscape\n", ErrInvalidConfig},
		{"inverted rules", "rules:\n  closed_below: 3s\n", ErrInvalidConfig},
		{"timeout below filtered", "probe_timeout: 1s\n", ErrInvalidConfig},
		{"bad order", "order: random\n", ErrInvalidConfig},
		{"rate and delay", "rate: 2\ndelay: 1s\n", ErrInvalidConfig},
		{"negative rate", "rate: -1\n", ErrInvalidConfig},
		{"metrics port", "metrics:\n  port: 70000\n", ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_InvertedRulesKeepsCause(t *testing.T) {
	_, err := Load(strings.NewReader("rules:\n  closed_below: 3s\n"))
	assert.ErrorIs(t, err, verdict.ErrInvalidRules)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grafuna.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate: 1.5\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Rate)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
