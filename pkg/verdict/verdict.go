// Package verdict turns a health-check observation into a port state.
//
// The health endpoint proxies the MSSQL driver's connection error back to
// the caller. The driver's TDS pre-login against a listening non-TDS
// service fails with "invalid packet size"; a refused or unreachable
// endpoint fails with "failed to connect to server", and the time it took
// to fail separates an immediate RST (closed) from a dropped SYN
// (filtered).
package verdict

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
)

// Verdict is the classified state of one target.
type Verdict string

const (
	Open     Verdict = "open"
	Closed   Verdict = "closed"
	Filtered Verdict = "filtered"
	Unknown  Verdict = "unknown"
	// Skipped means the datasource could not be pointed at the target,
	// so no probe was made.
	Skipped Verdict = "skipped"
)

// ErrInvalidRules is returned by Rules.Validate.
var ErrInvalidRules = errors.New("verdict: invalid rules")

// All lists every verdict in output order.
var All = []Verdict{Open, Closed, Filtered, Unknown, Skipped}

func (v Verdict) String() string { return string(v) }

// ParseVerdict reads a verdict back from its string form.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("verdict: unknown value %q", s)
}

// Observation is what one health-check call produced.
type Observation struct {
	Status  int           // HTTP status, 0 when the request failed
	Body    string        // response text, possibly truncated
	Elapsed time.Duration // wall clock from send to response or failure
	Err     error         // transport failure, nil when a response arrived
}

// Rules hold the classifier markers and latency thresholds.
type Rules struct {
	OpenMarker    string        `yaml:"open_marker"`
	RefusedMarker string        `yaml:"refused_marker"`
	ClosedBelow   time.Duration `yaml:"closed_below"`
	FilteredFrom  time.Duration `yaml:"filtered_from"`
}

// DefaultRules returns the markers of the MSSQL driver and the 1s/2s
// latency split.
func DefaultRules() Rules {
	return Rules{
		OpenMarker:    "invalid packet size",
		RefusedMarker: "failed to connect to server",
		ClosedBelow:   duration.ClosedBelow,
		FilteredFrom:  duration.FilteredFrom,
	}
}

// Validate rejects empty markers and inverted thresholds.
func (r Rules) Validate() error {
	if r.OpenMarker == "" || r.RefusedMarker == "" {
		return fmt.Errorf("%w: markers must not be empty", ErrInvalidRules)
	}
	if r.ClosedBelow <= 0 || r.FilteredFrom <= 0 {
		return fmt.Errorf("%w: thresholds must be positive", ErrInvalidRules)
	}
	if r.ClosedBelow > r.FilteredFrom {
		return fmt.Errorf("%w: closed threshold %s exceeds filtered threshold %s", ErrInvalidRules, r.ClosedBelow, r.FilteredFrom)
	}
	return nil
}

// Classify maps an observation to a verdict. It never returns Skipped.
func Classify(obs Observation, rules Rules) Verdict {
	if obs.Err != nil {
		return byLatency(obs.Elapsed, rules)
	}

	switch {
	case strings.Contains(obs.Body, rules.OpenMarker):
		return Open
	case strings.Contains(obs.Body, rules.RefusedMarker):
		return byLatency(obs.Elapsed, rules)
	default:
		return Unknown
	}
}

func byLatency(elapsed time.Duration, rules Rules) Verdict {
	switch {
	case elapsed < rules.ClosedBelow:
		return Closed
	case elapsed >= rules.FilteredFrom:
		return Filtered
	default:
		return Unknown
	}
}

// Evidence is the text an outcome records alongside its verdict: the
// response body, or the transport error.
func (o Observation) Evidence() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Body
}
