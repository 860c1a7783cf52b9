// Package scanner drives a scan: it walks the target sequence in order,
// rotates the session on cadence, points the datasource at each target,
// runs the health check, and emits one outcome per target.
//
// The scan is a single stream. Every probe depends on the URL the
// preceding write set, so targets are never probed in parallel.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/iohelper"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ratelimit"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/session"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/targets"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

var (
	// ErrAlreadyRun is returned when Run is called a second time.
	ErrAlreadyRun = errors.New("scanner: already run")
	// ErrOutput means an outcome could not be written. It ends the scan.
	ErrOutput = errors.New("scanner: output failed")
)

// Oracle points the datasource at a target and runs its health check.
// *oracle.Client implements it.
type Oracle interface {
	Reconfigure(ctx context.Context, host string, port int) error
	Probe(ctx context.Context) verdict.Observation
}

// Session rotates the credential the oracle sends. *session.Manager
// implements it.
type Session interface {
	Rotate(ctx context.Context) error
	Rotations() int
	Expiry() time.Time
	Current() session.Credential
}

// Recorder persists progress after each outcome. *checkpoint.Manager
// implements it.
type Recorder interface {
	Advance(next int, version int64, rotations int) error
}

// Emitter receives scan events. *dispatcher.Dispatcher implements it.
type Emitter interface {
	Dispatch(ctx context.Context, e events.Event) error
}

// State is the lifecycle of a Scanner.
type State int32

const (
	NotStarted State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Outcome is the classification of one target.
type Outcome struct {
	Index    int
	Target   targets.Target
	Verdict  verdict.Verdict
	Evidence string
	Elapsed  time.Duration
	Status   int
}

// Config configures a Scanner.
type Config struct {
	Sequence *targets.Sequence

	// StartIndex skips targets already done by an earlier run. The
	// rotation counter starts here too, so a resumed scan rotates at the
	// same targets the uninterrupted one would have.
	StartIndex int

	// RotateEvery rotates the session before every Nth target
	// (default defaults.RotateEvery).
	RotateEvery int

	// Rules classify observations (default verdict.DefaultRules()).
	Rules verdict.Rules

	// Pacer spaces probes. Nil means no pacing.
	Pacer *ratelimit.Pacer

	Output     Emitter
	Checkpoint Recorder // optional

	ScanID string

	// Start carries the descriptive fields of the start event: Grafana,
	// Datasource, DatasourceID and Config. The scanner fills in the rest.
	Start events.StartEvent

	Logger *slog.Logger
}

// Summary is what a finished or aborted scan reports.
type Summary struct {
	Processed int
	Total     int
	NextIndex int
	Rotations int
	Verdicts  map[verdict.Verdict]int
	Duration  time.Duration
	Reason    string

	// LeftAt is the last target the datasource was successfully pointed
	// at, or the zero Target if no write succeeded.
	LeftAt targets.Target
}

// Scanner runs one scan. It is not reusable.
type Scanner struct {
	oracle  Oracle
	session Session
	cfg     Config
	logger  *slog.Logger
	state   atomic.Int32
	counter int
}

// New validates cfg and returns a scanner ready to Run.
func New(o Oracle, s Session, cfg Config) (*Scanner, error) {
	if o == nil || s == nil {
		return nil, errors.New("scanner: oracle and session are required")
	}
	if cfg.Sequence == nil {
		return nil, errors.New("scanner: no target sequence")
	}
	if cfg.Output == nil {
		return nil, errors.New("scanner: no output")
	}
	if cfg.StartIndex < 0 || cfg.StartIndex > cfg.Sequence.Len() {
		return nil, fmt.Errorf("scanner: start index %d outside [0,%d]", cfg.StartIndex, cfg.Sequence.Len())
	}
	if cfg.RotateEvery <= 0 {
		cfg.RotateEvery = defaults.RotateEvery
	}
	if cfg.Rules == (verdict.Rules{}) {
		cfg.Rules = verdict.DefaultRules()
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{oracle: o, session: s, cfg: cfg, logger: logger, counter: cfg.StartIndex}, nil
}

// State reports where the scanner is in its lifecycle.
func (s *Scanner) State() State {
	return State(s.state.Load())
}

// Run scans every target from the start index. It returns nil after the
// last target, the context error when cancelled, and an error wrapping
// session.ErrRotationFailed or ErrOutput when the scan cannot go on.
// The summary is valid in every case.
func (s *Scanner) Run(ctx context.Context) (Summary, error) {
	if !s.state.CompareAndSwap(int32(NotStarted), int32(Running)) {
		return Summary{}, ErrAlreadyRun
	}

	seq := s.cfg.Sequence
	sum := Summary{
		Total:     seq.Len(),
		NextIndex: s.cfg.StartIndex,
		Verdicts:  make(map[verdict.Verdict]int, len(verdict.All)),
	}
	began := time.Now()

	err := s.emit(ctx, s.startEvent())
	if err == nil {
		err = s.loop(ctx, &sum)
	}

	sum.Rotations = s.session.Rotations()
	sum.Duration = time.Since(began)
	switch {
	case err == nil:
		sum.Reason = "completed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		sum.Reason = "interrupted"
	case errors.Is(err, session.ErrRotationFailed):
		sum.Reason = "session rotation failed"
	default:
		sum.Reason = "output failed"
	}

	// The closing event goes out even after cancellation.
	if cerr := s.emit(context.WithoutCancel(ctx), s.completeEvent(sum, err == nil)); cerr != nil && err == nil {
		err = cerr
	}

	if err != nil {
		s.state.Store(int32(Aborted))
	} else {
		s.state.Store(int32(Completed))
	}
	s.logger.InfoContext(ctx, "scan finished",
		slog.String("reason", sum.Reason),
		slog.Int("processed", sum.Processed),
		slog.Int("next_index", sum.NextIndex),
		slog.Int("rotations", sum.Rotations),
		slog.Duration("duration", sum.Duration))
	return sum, err
}

func (s *Scanner) loop(ctx context.Context, sum *Summary) error {
	for i, t := range s.cfg.Sequence.From(s.cfg.StartIndex) {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.counter++
		if s.counter%s.cfg.RotateEvery == 0 {
			if err := s.rotate(ctx, i); err != nil {
				return err
			}
		}

		if err := s.cfg.Pacer.Wait(ctx); err != nil {
			return err
		}

		// Once the write goes out the target is finished regardless of
		// operator cancellation; the probe timeout still bounds it.
		out := s.scanOne(context.WithoutCancel(ctx), i, t)

		sum.Processed++
		sum.NextIndex = i + 1
		sum.Verdicts[out.Verdict]++
		if out.Verdict != verdict.Skipped {
			sum.LeftAt = t
		}

		if err := s.emit(ctx, s.resultEvent(out)); err != nil {
			return err
		}
		s.record(ctx, i+1)
	}
	return nil
}

func (s *Scanner) scanOne(ctx context.Context, i int, t targets.Target) Outcome {
	out := Outcome{Index: i, Target: t}

	if err := s.oracle.Reconfigure(ctx, t.Host, t.Port); err != nil {
		out.Verdict = verdict.Skipped
		out.Evidence = iohelper.Snippet(err.Error(), defaults.EvidenceMax)
		s.logger.DebugContext(ctx, "reconfigure failed", slog.String("target", t.String()), slog.Any("error", err))
		e := &events.ErrorEvent{
			BaseEvent: events.NewBase(events.EventTypeError, s.cfg.ScanID),
			Target:    t.String(),
			ErrorType: "reconfigure",
			Message:   err.Error(),
		}
		if derr := s.emit(ctx, e); derr != nil {
			s.logger.WarnContext(ctx, "error event not written", slog.Any("error", derr))
		}
		return out
	}

	obs := s.oracle.Probe(ctx)
	out.Verdict = verdict.Classify(obs, s.cfg.Rules)
	out.Evidence = iohelper.Snippet(obs.Evidence(), defaults.EvidenceMax)
	out.Elapsed = obs.Elapsed
	out.Status = obs.Status
	s.logger.DebugContext(ctx, "probed",
		slog.String("target", t.String()),
		slog.String("verdict", out.Verdict.String()),
		slog.Int("status", obs.Status),
		slog.Duration("elapsed", obs.Elapsed))
	return out
}

func (s *Scanner) rotate(ctx context.Context, i int) error {
	if err := s.session.Rotate(ctx); err != nil {
		e := &events.ErrorEvent{
			BaseEvent: events.NewBase(events.EventTypeError, s.cfg.ScanID),
			ErrorType: "rotation",
			Message:   err.Error(),
			Fatal:     true,
		}
		if derr := s.emit(context.WithoutCancel(ctx), e); derr != nil {
			s.logger.WarnContext(ctx, "error event not written", slog.Any("error", derr))
		}
		return err
	}
	return s.emit(ctx, &events.RotationEvent{
		BaseEvent: events.NewBase(events.EventTypeRotation, s.cfg.ScanID),
		Count:     s.session.Rotations(),
		Index:     i,
		Expires:   s.session.Expiry(),
	})
}

// record saves progress. A failed save costs resumability, not results,
// so it is reported and the scan goes on.
func (s *Scanner) record(ctx context.Context, next int) {
	if s.cfg.Checkpoint == nil {
		return
	}
	err := s.cfg.Checkpoint.Advance(next, s.session.Current().Version, s.session.Rotations())
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "checkpoint not saved", slog.Int("next_index", next), slog.Any("error", err))
	e := &events.ErrorEvent{
		BaseEvent: events.NewBase(events.EventTypeError, s.cfg.ScanID),
		ErrorType: "checkpoint",
		Message:   err.Error(),
	}
	if derr := s.emit(ctx, e); derr != nil {
		s.logger.WarnContext(ctx, "error event not written", slog.Any("error", derr))
	}
}

func (s *Scanner) emit(ctx context.Context, e events.Event) error {
	if err := s.cfg.Output.Dispatch(ctx, e); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return nil
}

func (s *Scanner) startEvent() *events.StartEvent {
	e := s.cfg.Start
	e.BaseEvent = events.NewBase(events.EventTypeStart, s.cfg.ScanID)
	e.TotalTargets = s.cfg.Sequence.Len()
	e.Hosts = s.cfg.Sequence.Hosts()
	e.Ports = s.cfg.Sequence.Ports()
	e.ResumeFrom = s.cfg.StartIndex
	e.Config.Order = s.cfg.Sequence.Order().String()
	e.Config.RotateEvery = s.cfg.RotateEvery
	e.Config.ClosedBelowMs = s.cfg.Rules.ClosedBelow.Milliseconds()
	e.Config.FilteredFromMs = s.cfg.Rules.FilteredFrom.Milliseconds()
	return &e
}

func (s *Scanner) resultEvent(out Outcome) *events.ResultEvent {
	return &events.ResultEvent{
		BaseEvent: events.NewBase(events.EventTypeResult, s.cfg.ScanID),
		Index:     out.Index,
		Host:      out.Target.Host,
		Port:      out.Target.Port,
		Verdict:   out.Verdict,
		Status:    out.Status,
		LatencyMs: float64(out.Elapsed.Microseconds()) / 1000,
		Evidence:  out.Evidence,
	}
}

func (s *Scanner) completeEvent(sum Summary, ok bool) *events.CompleteEvent {
	e := &events.CompleteEvent{
		BaseEvent:   events.NewBase(events.EventTypeComplete, s.cfg.ScanID),
		Success:     ok,
		ExitReason:  sum.Reason,
		Processed:   sum.Processed,
		Total:       sum.Total,
		NextIndex:   sum.NextIndex,
		Rotations:   sum.Rotations,
		Verdicts:    sum.Verdicts,
		DurationSec: sum.Duration.Seconds(),
	}
	if sum.LeftAt != (targets.Target{}) {
		e.LeftAt = sum.LeftAt.String()
	}
	return e
}
