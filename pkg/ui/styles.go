package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// Palette
var (
	Primary   = lipgloss.Color("#F46800") // Grafana orange
	Secondary = lipgloss.Color("#00D4AA")

	// Verdict colors
	OpenColor     = lipgloss.Color("#00D26A")
	ClosedColor   = lipgloss.Color("#FF3838")
	FilteredColor = lipgloss.Color("#FFB800")
	UnknownColor  = lipgloss.Color("#4D96FF")

	// Status colors
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")

	Status2xx = lipgloss.Color("#00D26A")
	Status3xx = lipgloss.Color("#4D96FF")
	Status4xx = lipgloss.Color("#FFD93D")
	Status5xx = lipgloss.Color("#FF3838")
)

var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA"))

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Primary)
)

// VerdictStyle returns the style a verdict is rendered with.
func VerdictStyle(v verdict.Verdict) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch v {
	case verdict.Open:
		return base.Foreground(OpenColor)
	case verdict.Closed:
		return base.Foreground(ClosedColor)
	case verdict.Filtered:
		return base.Foreground(FilteredColor)
	case verdict.Unknown:
		return base.Foreground(UnknownColor)
	default:
		return base.Foreground(Muted)
	}
}

// StatusCodeStyle returns the appropriate style for HTTP status codes
func StatusCodeStyle(code int) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch {
	case code >= 200 && code < 300:
		return base.Foreground(Status2xx)
	case code >= 300 && code < 400:
		return base.Foreground(Status3xx)
	case code >= 400 && code < 500:
		return base.Foreground(Status4xx)
	case code >= 500:
		return base.Foreground(Status5xx)
	default:
		return base.Foreground(Muted)
	}
}
