// Package targets expands host and port specifications into the ordered,
// deduplicated set of (host, port) pairs a scan walks through.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Sentinel errors for specification failures.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidPort indicates a port token that is not N or A-B with 1<=A<=B<=65535.
	ErrInvalidPort = errors.New("targets: invalid port specification")

	// ErrInvalidHost indicates a malformed CIDR block or last-octet range.
	ErrInvalidHost = errors.New("targets: invalid host specification")

	// ErrNoTargets indicates the specification expanded to nothing.
	ErrNoTargets = errors.New("targets: no targets specified")
)

// Target is one (host, port) pair to probe.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String renders the target as host:port, the form used in the output
// stream.
func (t Target) String() string {
	return t.Host + ":" + strconv.Itoa(t.Port)
}

// Source consolidates the host inputs a scan accepts
type Source struct {
	Hosts    string // From -H (whitespace-separated tokens)
	ListFile string // From -l, one target per line, "-" for stdin
}

// GetHosts returns the sorted, deduplicated host list from all inputs.
func (s *Source) GetHosts() ([]string, error) {
	hosts, err := ParseHosts(s.Hosts)
	if err != nil {
		return nil, err
	}

	if s.ListFile != "" {
		listed, err := ReadHostsFile(s.ListFile)
		if err != nil {
			return nil, fmt.Errorf("read target list %s: %w", s.ListFile, err)
		}
		hosts = append(hosts, listed...)
		slices.Sort(hosts)
		hosts = slices.Compact(hosts)
	}

	if len(hosts) == 0 {
		return nil, ErrNoTargets
	}
	return hosts, nil
}

// ReadHostsFile reads one target per line, "-" for stdin, skipping blank
// lines and # comments, and expands every line the way ParseHosts does.
func ReadHostsFile(path string) ([]string, error) {
	lines, err := readList(path)
	if err != nil {
		return nil, err
	}
	return ParseHosts(strings.Join(lines, " "))
}

func readList(path string) ([]string, error) {
	if path == "-" {
		return readLines(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readLines(file)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
