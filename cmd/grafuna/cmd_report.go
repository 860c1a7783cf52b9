package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/config"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ui"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// resultSet is what report reads back from host:port/verdict files. A
// target seen twice keeps its last verdict, so a rescanned target
// replaces the earlier answer.
type resultSet struct {
	order     []string
	verdicts  map[string]verdict.Verdict
	malformed int
}

func newResultSet() *resultSet {
	return &resultSet{verdicts: make(map[string]verdict.Verdict)}
}

func (rs *resultSet) read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		i := strings.LastIndexByte(line, '/')
		if i <= 0 {
			rs.malformed++
			continue
		}
		v, err := verdict.ParseVerdict(line[i+1:])
		if err != nil {
			rs.malformed++
			continue
		}
		target := line[:i]
		if _, seen := rs.verdicts[target]; !seen {
			rs.order = append(rs.order, target)
		}
		rs.verdicts[target] = v
	}
	return sc.Err()
}

func (rs *resultSet) counts() map[verdict.Verdict]int {
	n := make(map[verdict.Verdict]int)
	for _, v := range rs.verdicts {
		n[v]++
	}
	return n
}

// runReport tallies one or more result files, or lists the targets with
// one verdict.
func runReport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	only := fs.String("only", "", "List the targets with this verdict instead of counting")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return exitWith(fmt.Errorf("%w: %w", config.ErrInvalidConfig, err))
	}
	ui.SetNoColor(*noColor)

	return exitWith(report(fs.Args(), *only, stdout))
}

func report(paths []string, only string, stdout io.Writer) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: result file (- for stdin)", config.ErrMissingRequired)
	}
	var want verdict.Verdict
	if only != "" {
		v, err := verdict.ParseVerdict(only)
		if err != nil {
			return fmt.Errorf("%w: -only: %w", config.ErrInvalidConfig, err)
		}
		want = v
	}

	rs := newResultSet()
	for _, p := range paths {
		if err := readResults(rs, p); err != nil {
			return fmt.Errorf("%w: %s: %w", config.ErrInvalidConfig, p, err)
		}
	}
	if rs.malformed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d lines are not host:port/verdict and were skipped", rs.malformed))
	}

	if want != "" {
		for _, t := range rs.order {
			if rs.verdicts[t] == want {
				if _, err := fmt.Fprintln(stdout, t); err != nil {
					return err
				}
			}
		}
		return nil
	}

	n := rs.counts()
	for _, v := range verdict.All {
		if n[v] == 0 {
			continue
		}
		if _, err := fmt.Fprintf(stdout, "%-9s %d\n", v, n[v]); err != nil {
			return err
		}
	}
	return nil
}

func readResults(rs *resultSet, path string) error {
	if path == "-" {
		return rs.read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return rs.read(f)
}
