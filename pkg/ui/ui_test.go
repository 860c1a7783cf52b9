package ui

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[\x30-\x3f]*[\x20-\x2f]*[\x40-\x7e]`)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	t.Cleanup(restore)
	SetSilent(false)
	return &buf
}

func TestVersion(t *testing.T) {
	assert.Equal(t, defaults.Version, Version)
	assert.Equal(t, defaults.ToolName+"/"+defaults.Version, UserAgent())
}

func TestPrintBanner(t *testing.T) {
	buf := capture(t)
	PrintBanner()
	assert.Contains(t, buf.String(), Version)
	assert.Contains(t, buf.String(), "mssql")
}

func TestPrintBanner_Silent(t *testing.T) {
	buf := capture(t)
	SetSilent(true)
	t.Cleanup(func() { SetSilent(false) })

	PrintBanner()
	PrintInfo("hidden")
	PrintSuccess("hidden")
	PrintWarning("shown")
	PrintError("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "also shown")
}

func TestPrintConfigBanner_Order(t *testing.T) {
	buf := capture(t)
	PrintConfigBanner(map[string]string{
		"Zeta":       "z",
		"Ports":      "1433",
		"Grafana":    "http://grafana.local:3000",
		"Alpha":      "a",
		"Empty":      "",
		"Datasource": "befy4uj2alreof",
	})
	out := buf.String()

	order := []string{"Grafana", "Datasource", "Ports", "Alpha", "Zeta"}
	last := -1
	for _, key := range order {
		idx := bytes.Index([]byte(out), []byte(key))
		require.GreaterOrEqual(t, idx, 0, key)
		assert.Greater(t, idx, last, key)
		last = idx
	}
	assert.NotContains(t, out, "Empty")
}

func TestPrintStat(t *testing.T) {
	buf := capture(t)
	PrintStat("open", "3")
	PrintStat("next index", "7")
	assert.Contains(t, buf.String(), "Open:")
	assert.Contains(t, buf.String(), "Next Index:")
	assert.Contains(t, buf.String(), "3")
}

func TestNoANSIWhenPiped(t *testing.T) {
	if UnicodeTerminal() {
		t.Skip("stderr is a terminal")
	}
	SetNoColor(true)
	t.Cleanup(func() { SetNoColor(false) })
	assert.True(t, IsNoColor())

	buf := capture(t)
	PrintBanner()
	PrintSection("Summary")
	PrintError("boom")
	PrintInfo("info")
	assert.Nil(t, ansiPattern.FindIndex(buf.Bytes()), buf.String())
}

func TestVerdictStyle(t *testing.T) {
	for _, v := range verdict.All {
		assert.NotEmpty(t, VerdictStyle(v).Render(string(v)))
	}
	assert.NotEqual(t, VerdictStyle(verdict.Open).GetForeground(), VerdictStyle(verdict.Closed).GetForeground())
}

func TestStatusCodeStyle(t *testing.T) {
	assert.Equal(t, Status2xx, StatusCodeStyle(200).GetForeground())
	assert.Equal(t, Status4xx, StatusCodeStyle(400).GetForeground())
	assert.Equal(t, Status5xx, StatusCodeStyle(502).GetForeground())
	assert.Equal(t, Muted, StatusCodeStyle(0).GetForeground())
}
