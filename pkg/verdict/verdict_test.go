package verdict

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	refusedBody = `{"message":"failed to connect to server - unable to open tcp connection with host '10.0.0.5:1433': dial tcp 10.0.0.5:1433: connect: connection refused","status":"ERROR"}`
	openBody    = `{"message":"unable to open tcp connection... read tcp: invalid packet size, it is longer than buffer size","status":"ERROR"}`
)

func TestClassify(t *testing.T) {
	rules := DefaultRules()
	timeout := errors.New("context deadline exceeded (Client.Timeout exceeded while awaiting headers)")

	tests := []struct {
		name string
		obs  Observation
		want Verdict
	}{
		{"open fast", Observation{Status: 400, Body: openBody, Elapsed: 50 * time.Millisecond}, Open},
		{"open slow", Observation{Status: 400, Body: openBody, Elapsed: 10 * time.Second}, Open},
		{"refused fast is closed", Observation{Status: 400, Body: refusedBody, Elapsed: 300 * time.Millisecond}, Closed},
		{"refused slow is filtered", Observation{Status: 400, Body: refusedBody, Elapsed: 2500 * time.Millisecond}, Filtered},
		{"refused middle band", Observation{Status: 400, Body: refusedBody, Elapsed: 1500 * time.Millisecond}, Unknown},
		{"refused at closed threshold", Observation{Body: refusedBody, Elapsed: time.Second}, Unknown},
		{"refused at filtered threshold", Observation{Body: refusedBody, Elapsed: 2 * time.Second}, Filtered},
		{"transport error slow", Observation{Err: timeout, Elapsed: 2100 * time.Millisecond}, Filtered},
		{"transport error fast", Observation{Err: timeout, Elapsed: 10 * time.Millisecond}, Closed},
		{"transport error middle", Observation{Err: timeout, Elapsed: 1200 * time.Millisecond}, Unknown},
		{"transport error ignores body", Observation{Err: timeout, Body: openBody, Elapsed: 3 * time.Second}, Filtered},
		{"other text", Observation{Status: 200, Body: `{"message":"Database Connection OK","status":"OK"}`, Elapsed: 100 * time.Millisecond}, Unknown},
		{"empty body", Observation{Status: 502, Elapsed: 100 * time.Millisecond}, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.obs, rules))
		})
	}
}

func TestClassify_CustomRules(t *testing.T) {
	rules := Rules{
		OpenMarker:    "handshake",
		RefusedMarker: "refused",
		ClosedBelow:   100 * time.Millisecond,
		FilteredFrom:  500 * time.Millisecond,
	}
	assert.Equal(t, Open, Classify(Observation{Body: "bad handshake"}, rules))
	assert.Equal(t, Filtered, Classify(Observation{Body: "refused", Elapsed: 600 * time.Millisecond}, rules))
	assert.Equal(t, Unknown, Classify(Observation{Body: "invalid packet size"}, rules))
}

func TestClassify_Deterministic(t *testing.T) {
	obs := Observation{Body: refusedBody, Elapsed: 1500 * time.Millisecond}
	first := Classify(obs, DefaultRules())
	for range 100 {
		require.Equal(t, first, Classify(obs, DefaultRules()))
	}
}

func TestRules_Validate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())

	r := DefaultRules()
	r.ClosedBelow = 3 * time.Second
	assert.ErrorIs(t, r.Validate(), ErrInvalidRules)

	r = DefaultRules()
	r.OpenMarker = ""
	assert.Error(t, r.Validate())

	r = DefaultRules()
	r.FilteredFrom = 0
	assert.Error(t, r.Validate())
}

func TestParseVerdict(t *testing.T) {
	for _, v := range All {
		got, err := ParseVerdict(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	got, err := ParseVerdict(" OPEN ")
	require.NoError(t, err)
	assert.Equal(t, Open, got)

	_, err = ParseVerdict("maybe")
	assert.Error(t, err)
}

func TestObservation_Evidence(t *testing.T) {
	assert.Equal(t, "body", Observation{Body: "body"}.Evidence())
	assert.Equal(t, "boom", Observation{Body: "body", Err: errors.New("boom")}.Evidence())
}
