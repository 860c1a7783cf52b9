package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/oracle"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/dispatcher"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/writers"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/session"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/targets"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/testutil"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// fakeOracle answers from a table keyed by host:port.
type fakeOracle struct {
	mu       sync.Mutex
	current  string
	writes   []string
	fail     map[string]bool
	answers  map[string]verdict.Observation
	onProbe  func(addr string)
	probeCtx []error // ctx.Err() seen by each probe
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{fail: map[string]bool{}, answers: map[string]verdict.Observation{}}
}

func (f *fakeOracle) Reconfigure(_ context.Context, host string, port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	f.writes = append(f.writes, addr)
	if f.fail[addr] {
		return fmt.Errorf("%w: status 500", oracle.ErrReconfigure)
	}
	f.current = addr
	return nil
}

func (f *fakeOracle) Probe(ctx context.Context) verdict.Observation {
	f.mu.Lock()
	addr := f.current
	hook := f.onProbe
	obs, ok := f.answers[addr]
	f.mu.Unlock()

	if hook != nil {
		hook(addr)
	}
	f.mu.Lock()
	f.probeCtx = append(f.probeCtx, ctx.Err())
	f.mu.Unlock()

	if !ok {
		obs = verdict.Observation{Status: 400, Body: testutil.BodyRefused, Elapsed: 10 * time.Millisecond}
	}
	return obs
}

type fakeSession struct {
	rotations int
	failAt    int // rotation number that fails, 0 never
	attempts  int
	version   int64
}

func (s *fakeSession) Rotate(context.Context) error {
	s.attempts++
	if s.failAt != 0 && s.attempts == s.failAt {
		return fmt.Errorf("%w: status 401", session.ErrRotationFailed)
	}
	s.rotations++
	return nil
}

func (s *fakeSession) Rotations() int { return s.rotations }
func (s *fakeSession) Expiry() time.Time { return time.Time{} }
func (s *fakeSession) Current() session.Credential {
	return session.Credential{Token: "t", Version: s.version}
}

type advance struct {
	next, rotations int
	version         int64
}

type fakeRecorder struct {
	calls []advance
	err   error
}

func (r *fakeRecorder) Advance(next int, version int64, rotations int) error {
	r.calls = append(r.calls, advance{next: next, version: version, rotations: rotations})
	return r.err
}

// eventLog collects every dispatched event.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Write(e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}
func (l *eventLog) Flush() error { return nil }
func (l *eventLog) Close() error { return nil }
func (l *eventLog) SupportsEvent(events.EventType) bool { return true }

func (l *eventLog) ofType(t events.EventType) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	oracle  *fakeOracle
	session *fakeSession
	log     *eventLog
	lines   *bytes.Buffer
	cfg     Config
}

func newHarness(hosts []string, ports []int) *harness {
	h := &harness{
		oracle:  newFakeOracle(),
		session: &fakeSession{},
		log:     &eventLog{},
		lines:   &bytes.Buffer{},
	}
	d := dispatcher.New(dispatcher.Config{})
	d.RegisterWriter(writers.NewLineWriter(h.lines))
	d.RegisterWriter(h.log)
	h.cfg = Config{
		Sequence: targets.NewSequence(hosts, ports, targets.PortMajor),
		Output:   d,
		ScanID:   "test-scan",
	}
	return h
}

func (h *harness) run(t *testing.T, ctx context.Context) (Summary, error) {
	t.Helper()
	s, err := New(h.oracle, h.session, h.cfg)
	require.NoError(t, err)
	return s.Run(ctx)
}

func hostRange(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "10.0.0." + strconv.Itoa(i+1)
	}
	return out
}

func rotationIndexes(log *eventLog) []int {
	var idx []int
	for _, e := range log.ofType(events.EventTypeRotation) {
		idx = append(idx, e.(*events.RotationEvent).Index)
	}
	return idx
}

func TestRun_RotatesOnCadence(t *testing.T) {
	h := newHarness(hostRange(5), []int{21, 22, 80, 443, 1433})
	h.cfg.RotateEvery = 10

	sum, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, h.session.rotations)
	assert.Equal(t, 2, sum.Rotations)
	assert.Equal(t, []int{9, 19}, rotationIndexes(h.log))
	assert.Equal(t, 25, sum.Processed)
	assert.Equal(t, 25, sum.NextIndex)
	assert.Equal(t, "completed", sum.Reason)
	assert.Len(t, h.oracle.writes, 25)
}

func TestRun_EmitsInSequenceOrder(t *testing.T) {
	h := newHarness([]string{"10.0.0.1", "10.0.0.2"}, []int{1433, 1434})
	h.oracle.answers["10.0.0.2:1433"] = verdict.Observation{Status: 400, Body: testutil.BodyOpen, Elapsed: 30 * time.Millisecond}

	sum, err := h.run(t, context.Background())
	require.NoError(t, err)

	want := "10.0.0.1:1433/closed\n10.0.0.2:1433/open\n10.0.0.1:1434/closed\n10.0.0.2:1434/closed\n"
	assert.Equal(t, want, h.lines.String())
	assert.Equal(t, 1, sum.Verdicts[verdict.Open])
	assert.Equal(t, 3, sum.Verdicts[verdict.Closed])
	assert.Equal(t, targets.Target{Host: "10.0.0.2", Port: 1434}, sum.LeftAt)
}

func TestRun_DeterministicOutput(t *testing.T) {
	outputs := make([]string, 2)
	for i := range outputs {
		h := newHarness(hostRange(4), []int{22, 1433, 3389})
		h.cfg.RotateEvery = 4
		h.oracle.answers["10.0.0.3:1433"] = verdict.Observation{Body: testutil.BodyOpen}
		h.oracle.answers["10.0.0.1:3389"] = verdict.Observation{Err: context.DeadlineExceeded, Elapsed: 2 * time.Second}
		h.oracle.fail["10.0.0.2:22"] = true

		_, err := h.run(t, context.Background())
		require.NoError(t, err)
		outputs[i] = h.lines.String()
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Contains(t, outputs[0], "10.0.0.3:1433/open\n")
	assert.Contains(t, outputs[0], "10.0.0.1:3389/filtered\n")
	assert.Contains(t, outputs[0], "10.0.0.2:22/skipped\n")
}

func TestRun_SkippedTargetsAdvanceCounter(t *testing.T) {
	h := newHarness(hostRange(6), []int{1433})
	h.cfg.RotateEvery = 3
	h.oracle.fail["10.0.0.2:1433"] = true
	h.oracle.fail["10.0.0.3:1433"] = true

	sum, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2, 5}, rotationIndexes(h.log))
	assert.Equal(t, 2, sum.Verdicts[verdict.Skipped])
	assert.Contains(t, h.lines.String(), "10.0.0.2:1433/skipped\n")

	errs := h.log.ofType(events.EventTypeError)
	require.Len(t, errs, 2)
	ev := errs[0].(*events.ErrorEvent)
	assert.Equal(t, "reconfigure", ev.ErrorType)
	assert.Equal(t, "10.0.0.2:1433", ev.Target)
	assert.False(t, ev.Fatal)

	// A skipped target is never probed.
	assert.Len(t, h.oracle.probeCtx, 4)
}

func TestRun_RotationFailureAborts(t *testing.T) {
	h := newHarness(hostRange(5), []int{1, 2, 3, 4, 5})
	h.cfg.RotateEvery = 10
	h.session.failAt = 2

	sum, err := h.run(t, context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrRotationFailed)

	// Targets 0..18 done; the failing rotation precedes target 19.
	assert.Equal(t, 19, sum.Processed)
	assert.Equal(t, 19, sum.NextIndex)
	assert.Equal(t, "session rotation failed", sum.Reason)
	assert.Len(t, h.oracle.writes, 19)
	assert.Equal(t, 19, strings.Count(h.lines.String(), "\n"))

	errs := h.log.ofType(events.EventTypeError)
	require.Len(t, errs, 1)
	assert.True(t, errs[0].(*events.ErrorEvent).Fatal)

	complete := h.log.ofType(events.EventTypeComplete)
	require.Len(t, complete, 1)
	assert.False(t, complete[0].(*events.CompleteEvent).Success)
}

func TestRun_CancelFinishesInFlightTarget(t *testing.T) {
	h := newHarness(hostRange(5), []int{1433})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.oracle.onProbe = func(addr string) {
		if addr == "10.0.0.3:1433" {
			cancel()
		}
	}

	s, err := New(h.oracle, h.session, h.cfg)
	require.NoError(t, err)
	sum, err := s.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Aborted, s.State())
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 3, sum.NextIndex)
	assert.Equal(t, "interrupted", sum.Reason)
	assert.Equal(t, "10.0.0.1:1433/closed\n10.0.0.2:1433/closed\n10.0.0.3:1433/closed\n", h.lines.String())

	// The in-flight probe ran on a context the cancel did not reach.
	for _, perr := range h.oracle.probeCtx {
		assert.NoError(t, perr)
	}
	assert.Len(t, h.log.ofType(events.EventTypeComplete), 1)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := newHarness(hostRange(3), []int{1433})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := h.run(t, ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Processed)
	assert.Empty(t, h.oracle.writes)
	assert.Equal(t, targets.Target{}, sum.LeftAt)
}

func TestRun_ResumeKeepsRotationAlignment(t *testing.T) {
	h := newHarness(hostRange(5), []int{1, 2, 3, 4, 5})
	h.cfg.RotateEvery = 10
	h.cfg.StartIndex = 15
	h.session.version = 42
	rec := &fakeRecorder{}
	h.cfg.Checkpoint = rec

	sum, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{19}, rotationIndexes(h.log))
	assert.Equal(t, 10, sum.Processed)
	assert.Equal(t, 25, sum.NextIndex)
	require.Len(t, h.oracle.writes, 10)
	assert.Equal(t, "10.0.0.1:4", h.oracle.writes[0])

	require.Len(t, rec.calls, 10)
	assert.Equal(t, advance{next: 16, version: 42, rotations: 0}, rec.calls[0])
	assert.Equal(t, advance{next: 25, version: 42, rotations: 1}, rec.calls[9])

	start := h.log.ofType(events.EventTypeStart)
	require.Len(t, start, 1)
	se := start[0].(*events.StartEvent)
	assert.Equal(t, 15, se.ResumeFrom)
	assert.Equal(t, 25, se.TotalTargets)
	assert.Equal(t, 5, se.Hosts)
	assert.Equal(t, "port", se.Config.Order)
}

func TestRun_CheckpointFailureIsNotFatal(t *testing.T) {
	h := newHarness(hostRange(2), []int{1433})
	h.cfg.Checkpoint = &fakeRecorder{err: errors.New("disk full")}

	sum, err := h.run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)

	errs := h.log.ofType(events.EventTypeError)
	require.Len(t, errs, 2)
	assert.Equal(t, "checkpoint", errs[0].(*events.ErrorEvent).ErrorType)
}

func TestRun_OutputFailureAborts(t *testing.T) {
	h := newHarness(hostRange(3), []int{1433})
	d := dispatcher.New(dispatcher.Config{})
	d.RegisterWriter(writers.NewLineWriter(&testutil.FailingWriter{Limit: 0}))
	h.cfg.Output = d

	_, err := h.run(t, context.Background())
	assert.ErrorIs(t, err, ErrOutput)
}

func TestRun_OnlyOnce(t *testing.T) {
	h := newHarness(hostRange(1), []int{1433})
	s, err := New(h.oracle, h.session, h.cfg)
	require.NoError(t, err)

	assert.Equal(t, NotStarted, s.State())
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Completed, s.State())

	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestNew_Validation(t *testing.T) {
	h := newHarness(hostRange(2), []int{1433})

	_, err := New(h.oracle, h.session, Config{Output: h.cfg.Output})
	assert.Error(t, err)

	cfg := h.cfg
	cfg.StartIndex = 3
	_, err = New(h.oracle, h.session, cfg)
	assert.Error(t, err)

	cfg = h.cfg
	cfg.Rules = verdict.Rules{OpenMarker: "a", RefusedMarker: "b", ClosedBelow: 3 * time.Second, FilteredFrom: time.Second}
	_, err = New(h.oracle, h.session, cfg)
	assert.ErrorIs(t, err, verdict.ErrInvalidRules)

	cfg = h.cfg
	cfg.StartIndex = 2
	s, err := New(h.oracle, h.session, cfg)
	require.NoError(t, err)
	sum, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Processed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "aborted", Aborted.String())
	assert.Equal(t, "state(9)", State(9).String())
}

// Full path against the fake Grafana: lookup, writes, health checks and
// one rotation, with the real session and oracle clients.
func TestRun_AgainstGrafana(t *testing.T) {
	g := testutil.NewGrafana("tok")
	defer g.Close()
	g.SetEndpoint("10.0.0.2:1433", testutil.Endpoint{Body: testutil.BodyOpen})
	g.FailUpdate["10.0.0.1:1434"] = true

	tgt, err := oracle.ParseTarget(g.EditURL())
	require.NoError(t, err)
	sess, err := session.New(g.Client(), session.Config{BaseURL: tgt.BaseURL, Token: "tok"})
	require.NoError(t, err)
	client := oracle.New(g.Client(), sess, oracle.Config{Target: tgt, Identity: oracle.DefaultIdentity(), ProbeTimeout: time.Second})

	ds, err := client.Lookup(context.Background())
	require.NoError(t, err)
	sess.SetVersion(ds.Version + 1)

	var lines bytes.Buffer
	d := dispatcher.New(dispatcher.Config{})
	d.RegisterWriter(writers.NewLineWriter(&lines))

	s, err := New(client, sess, Config{
		Sequence:    targets.NewSequence([]string{"10.0.0.1", "10.0.0.2"}, []int{1433, 1434}, targets.PortMajor),
		RotateEvery: 3,
		Output:      d,
		ScanID:      "it",
	})
	require.NoError(t, err)

	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1:1433/closed\n10.0.0.2:1433/open\n10.0.0.1:1434/skipped\n10.0.0.2:1434/closed\n", lines.String())
	assert.Equal(t, 1, sum.Rotations)
	assert.Equal(t, "rotated-1", sess.Current().Token)
	assert.Equal(t, "10.0.0.2:1434", g.DatasourceURL())
	assert.Equal(t, []int64{6, 7, 8, 9}, g.Versions)

	rotations, updates, probes := g.Snapshot()
	assert.Equal(t, 1, rotations)
	assert.Len(t, updates, 4)
	assert.Equal(t, []string{"10.0.0.1:1433", "10.0.0.2:1433", "10.0.0.2:1434"}, probes)
}
