package targets

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	minPort = 1
	maxPort = 65535
)

// ParsePorts expands a comma-separated list of N and A-B tokens into an
// ascending, deduplicated port list. Ranges include both ends.
//
// Supported formats: "1433", "80,443", "8000-8002", "80,443,8000-8002"
func ParsePorts(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPort)
	}

	seen := make(map[int]bool)
	var ports []int
	add := func(p int) {
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)

		lo, hi, isRange := strings.Cut(part, "-")
		start, err := parsePort(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPort, part)
		}
		end := start
		if isRange {
			if end, err = parsePort(hi); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPort, part)
			}
			if start > end {
				return nil, fmt.Errorf("%w: reversed range %q", ErrInvalidPort, part)
			}
		}

		for p := start; p <= end; p++ {
			add(p)
		}
	}

	slices.Sort(ports)
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if p < minPort || p > maxPort {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return p, nil
}
