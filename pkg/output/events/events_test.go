package events

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/jsonutil"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

func TestEventInterface(t *testing.T) {
	var evs = []Event{
		&StartEvent{BaseEvent: NewBase(EventTypeStart, "s1")},
		&ResultEvent{BaseEvent: NewBase(EventTypeResult, "s1")},
		&RotationEvent{BaseEvent: NewBase(EventTypeRotation, "s1")},
		&ErrorEvent{BaseEvent: NewBase(EventTypeError, "s1")},
		&CompleteEvent{BaseEvent: NewBase(EventTypeComplete, "s1")},
	}
	want := []EventType{EventTypeStart, EventTypeResult, EventTypeRotation, EventTypeError, EventTypeComplete}
	for i, e := range evs {
		assert.Equal(t, want[i], e.EventType())
		assert.Equal(t, "s1", e.ScanID())
		assert.WithinDuration(t, time.Now(), e.Timestamp(), time.Minute)
	}
}

func TestResultEventJSON(t *testing.T) {
	e := &ResultEvent{
		BaseEvent: BaseEvent{Type: EventTypeResult, Time: time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC), Scan: "abc"},
		Index:     3,
		Host:      "10.0.0.1",
		Port:      1433,
		Verdict:   verdict.Open,
		Status:    400,
		LatencyMs: 12.5,
		Evidence:  "invalid packet size",
	}
	out, err := jsonutil.Marshal(e)
	require.NoError(t, err)
	s := string(out)

	for _, field := range []string{`"type":"result"`, `"scan_id":"abc"`, `"timestamp":"2025-11-20T10:00:00Z"`, `"host":"10.0.0.1"`, `"port":1433`, `"verdict":"open"`, `"latency_ms":12.5`} {
		assert.Contains(t, s, field)
	}
	assert.Equal(t, "10.0.0.1:1433", e.Address())
}

func TestResultEventOmitsEmpty(t *testing.T) {
	e := &ResultEvent{BaseEvent: NewBase(EventTypeResult, "x"), Host: "h", Port: 1, Verdict: verdict.Skipped}
	out, err := jsonutil.Marshal(e)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(out), `"evidence"`))
	assert.False(t, strings.Contains(string(out), `"status"`))
}

func TestRotationEventOmitsZeroExpiry(t *testing.T) {
	out, err := jsonutil.Marshal(&RotationEvent{BaseEvent: NewBase(EventTypeRotation, "x"), Count: 1, Index: 9})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "expires")
	assert.Contains(t, string(out), `"index":9`)
}

func TestCompleteEventJSON(t *testing.T) {
	e := &CompleteEvent{
		BaseEvent: NewBase(EventTypeComplete, "x"),
		Success:   true,
		Verdicts:  map[verdict.Verdict]int{verdict.Open: 2, verdict.Closed: 5},
	}
	out, err := jsonutil.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"verdicts":{"closed":5,"open":2}`)
}
