package ui

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
)

// Build information. BuildDate and Commit can be overridden via ldflags:
// go build -ldflags "-X github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ui.Commit=abc123"
var (
	Version   = defaults.Version
	BuildDate = "unknown"
	Commit    = "dev"
)

// UserAgent returns the tool's own User-Agent string.
func UserAgent() string {
	return defaults.UAMinimal
}

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	out         io.Writer = os.Stderr
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// SetOutput redirects all banner and message output to w and returns a
// function restoring the previous writer.
func SetOutput(w io.Writer) (restore func()) {
	uiMu.Lock()
	defer uiMu.Unlock()
	prev := out
	out = w
	return func() {
		uiMu.Lock()
		defer uiMu.Unlock()
		out = prev
	}
}

// Output returns the writer messages go to.
func Output() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return out
}

const bannerArt = `
   __________  ___    ________  ___   _____ 
  / ____/ __ \/   |  / ____/ / / / | / /   |
 / / __/ /_/ / /| | / /_  / / / /  |/ / /| |
/ /_/ / _, _/ ___ |/ __/ / /_/ / /|  / ___ |
\____/_/ |_/_/  |_/_/    \____/_/ |_/_/  |_|
`

const bannerSeparator = "________________________________________________"

// PrintBanner prints the application banner with version info.
func PrintBanner() {
	if IsSilent() {
		return
	}
	w := Output()
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                       v%s\n", VersionStyle.Render(Version))
	fmt.Fprintf(w, "\n   grafana mssql health-check port mapper\n\n")
}

func printOption(w io.Writer, name, value string) {
	fmt.Fprintf(w, " :: %-20s : %s\n", ConfigLabelStyle.Render(name), ConfigValueStyle.Render(value))
}

// PrintConfigBanner prints the effective scan settings before the run
// starts. Known keys come first in a fixed order, the rest sorted.
func PrintConfigBanner(options map[string]string) {
	if IsSilent() {
		return
	}
	order := []string{
		"Grafana", "Datasource", "Hosts", "Ports", "Targets",
		"Order", "Rotate Every", "Probe Timeout", "Closed Below",
		"Filtered From", "Rate", "Proxy", "TLS Profile", "Identity",
		"Resume From", "Output",
	}

	w := Output()
	printed := make(map[string]bool, len(options))
	for _, name := range order {
		if value, ok := options[name]; ok && value != "" {
			printOption(w, name, value)
			printed[name] = true
		}
	}

	rest := make([]string, 0, len(options))
	for name, value := range options {
		if !printed[name] && value != "" {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	for _, name := range rest {
		printOption(w, name, options[name])
	}

	fmt.Fprintf(w, "%s\n\n", DividerStyle.Render(bannerSeparator))
}

// PrintDivider prints a stylized divider
func PrintDivider() {
	fmt.Fprintln(Output(), DividerStyle.Render(strings.Repeat("-", 75)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	w := Output()
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("> "+title))
	PrintDivider()
}

// PrintStat prints a label/value pair from the end-of-run summary. The
// label is title-cased, so verdict names can be passed as they are.
func PrintStat(label, value string) {
	if IsSilent() {
		return
	}
	// Casers keep state; one per call.
	label = cases.Title(language.English).String(label)
	fmt.Fprintf(Output(), "  %s %s\n", StatLabelStyle.Render(fmt.Sprintf("%-12s", label+":")), StatValueStyle.Render(value))
}

// PrintHelp prints contextual help
func PrintHelp(text string) {
	fmt.Fprintln(Output(), HelpStyle.Render(SanitizeString("  [i] "+text)))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(Output(), SuccessStyle.Render(SanitizeString("  [+] "+message)))
}

// PrintError prints an error message. Errors are shown in silent mode too.
func PrintError(message string) {
	fmt.Fprintln(Output(), FailStyle.Render(SanitizeString("  [X] "+message)))
}

// PrintWarning prints a warning message. Warnings are shown in silent mode too.
func PrintWarning(message string) {
	fmt.Fprintln(Output(), WarningStyle.Render(SanitizeString("  [!] "+message)))
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(Output(), "  %s %s\n", InfoStyle.Render("*"), SanitizeString(message))
}
