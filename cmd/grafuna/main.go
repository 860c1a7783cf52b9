// Command grafuna maps TCP ports on networks reachable from a Grafana
// server by repointing one of its MSSQL datasources and reading the
// health check.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ui"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the exit code. Bare flags run
// a scan, matching the single-command usage of earlier releases.
func run(args []string, stdout, stderr io.Writer) int {
	restore := ui.SetOutput(stderr)
	defer restore()

	if len(args) == 0 {
		printUsage(stderr)
		return defaults.ExitConfigError
	}

	switch args[0] {
	case "scan":
		return runScan(args[1:], stdout, stderr)
	case "datasource", "ds":
		return runDatasource(args[1:], stdout, stderr)
	case "report":
		return runReport(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "%s %s (commit %s, built %s)\n", defaults.ToolName, ui.Version, ui.Commit, ui.BuildDate)
		return defaults.ExitSuccess
	case "help", "-h", "--help":
		printUsage(stdout)
		return defaults.ExitSuccess
	default:
		return runScan(args, stdout, stderr)
	}
}

func printUsage(w io.Writer) {
	restore := ui.SetOutput(w)
	defer restore()
	ui.PrintBanner()

	fmt.Fprintln(w, ui.SectionStyle.Render("USAGE"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", ui.ConfigValueStyle.Render("grafuna scan -t <edit-url> -s <session> -p <ports> -H <hosts> [options]"))
	fmt.Fprintf(w, "  %s\n", ui.ConfigValueStyle.Render("grafuna datasource -t <edit-url> -s <session>"))
	fmt.Fprintf(w, "  %s\n", ui.ConfigValueStyle.Render("grafuna report [-only <verdict>] <result-file>..."))
	fmt.Fprintln(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("COMMANDS"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("scan      "), "Classify host:port targets as open, closed or filtered")
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("datasource"), "Print the datasource config without changing it")
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("report    "), "Count verdicts in result files, or list targets with one verdict")
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("version   "), "Print the version")
	fmt.Fprintln(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("EXAMPLES"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", ui.ConfigValueStyle.Render("grafuna scan -t https://grafana.local/connections/datasources/edit/befy4uj2alreof \\"))
	fmt.Fprintf(w, "  %s\n", ui.ConfigValueStyle.Render("    -s 0123abcd -H 10.0.0.0/24 -p 22,445,1433,3389 -o open.txt -restore"))
	fmt.Fprintln(w)
	ui.PrintHelp("grafuna scan -h lists every scan option")
}
