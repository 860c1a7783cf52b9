// Package exitcode maps a scan's terminal error onto the process exit
// code, so wrappers can tell a lost session from a bad flag or an
// unreachable Grafana.
//
// Exit codes:
//   - 0: Success (every target produced a line)
//   - 1: Internal error (including output write failures)
//   - 2: Session rotation failed
//   - 3: Invalid configuration
//   - 4: Grafana unreachable or datasource lookup failed
//   - 5: Scan interrupted
package exitcode

import (
	"context"
	"errors"
	"fmt"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/checkpoint"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/config"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/httpclient"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/oracle"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ratelimit"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/session"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/targets"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// Code represents a semantic exit code.
type Code int

const (
	Success       Code = defaults.ExitSuccess
	Internal      Code = defaults.ExitInternalError
	Session       Code = defaults.ExitSessionError
	Configuration Code = defaults.ExitConfigError
	Target        Code = defaults.ExitTargetError
	Interrupted   Code = defaults.ExitInterrupted
)

var codeStrings = map[Code]string{
	Success:       "success",
	Internal:      "internal_error",
	Session:       "session_lost",
	Configuration: "invalid_configuration",
	Target:        "target_unreachable",
	Interrupted:   "scan_interrupted",
}

var codeDescriptions = map[Code]string{
	Success:       "Scan completed",
	Internal:      "Unexpected internal error",
	Session:       "Session rotation failed, scan aborted",
	Configuration: "Invalid configuration provided",
	Target:        "Grafana unreachable or datasource not found",
	Interrupted:   "Scan was interrupted by user or signal",
}

// configErrors are the sentinels raised before any network activity.
var configErrors = []error{
	config.ErrInvalidConfig,
	config.ErrMissingRequired,
	targets.ErrInvalidPort,
	targets.ErrInvalidHost,
	targets.ErrNoTargets,
	oracle.ErrInvalidTarget,
	httpclient.ErrInvalidProxy,
	ratelimit.ErrInvalidRate,
	verdict.ErrInvalidRules,
	session.ErrMissingToken,
	checkpoint.ErrMismatch,
	checkpoint.ErrCorrupt,
}

// FromError classifies a terminal error. A nil error is Success.
// Interruption wins over everything else: a rotation cut short by Ctrl-C
// is reported as interrupted, not as a lost session.
func FromError(err error) Code {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.Canceled):
		return Interrupted
	case errors.Is(err, session.ErrRotationFailed):
		return Session
	case errors.Is(err, oracle.ErrLookup):
		return Target
	}
	for _, sentinel := range configErrors {
		if errors.Is(err, sentinel) {
			return Configuration
		}
	}
	return Internal
}

// String returns the snake_case name of the code.
func (c Code) String() string {
	if s, ok := codeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown_code_%d", int(c))
}

// Description returns a one-line explanation of the code.
func (c Code) Description() string {
	if s, ok := codeDescriptions[c]; ok {
		return s
	}
	return fmt.Sprintf("Unknown exit code: %d", int(c))
}
