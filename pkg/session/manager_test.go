package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGrafana issues tok-1, tok-2, ... on each rotation and only accepts
// the most recently issued token.
type fakeGrafana struct {
	issued atomic.Int64
	valid  atomic.Value
	expiry int64
}

func newFakeGrafana(t *testing.T, initial string) (*fakeGrafana, *httptest.Server) {
	t.Helper()
	f := &fakeGrafana{expiry: 1767225600}
	f.valid.Store(initial)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != RotatePath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		c, err := r.Cookie("grafana_session")
		if err != nil || c.Value != f.valid.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Unauthorized"}`))
			return
		}
		next := "tok-" + strconv.FormatInt(f.issued.Add(1), 10)
		f.valid.Store(next)
		http.SetCookie(w, &http.Cookie{Name: "grafana_session", Value: next, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "grafana_session_expiry", Value: strconv.FormatInt(f.expiry, 10), Path: "/"})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(http.DefaultClient, Config{BaseURL: "http://grafana"})
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = New(http.DefaultClient, Config{Token: "abc"})
	assert.Error(t, err)
}

func TestRotate_ReplacesToken(t *testing.T) {
	f, srv := newFakeGrafana(t, "initial")

	m, err := New(srv.Client(), Config{BaseURL: srv.URL + "/", Token: "initial"})
	require.NoError(t, err)

	require.NoError(t, m.Rotate(context.Background()))
	assert.Equal(t, "tok-1", m.Current().Token)
	assert.Equal(t, 1, m.Rotations())
	assert.Equal(t, time.Unix(f.expiry, 0), m.Expiry())

	// The new token is what the next rotation presents.
	require.NoError(t, m.Rotate(context.Background()))
	assert.Equal(t, "tok-2", m.Current().Token)
	assert.Equal(t, 2, m.Rotations())
}

func TestRotate_SendsIdentityHeaders(t *testing.T) {
	var gotUA, gotOrigin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotOrigin = r.Header.Get("Origin")
		http.SetCookie(w, &http.Cookie{Name: "grafana_session", Value: "next"})
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("User-Agent", "test-agent")
	m, err := New(srv.Client(), Config{BaseURL: srv.URL, Token: "t", Header: h})
	require.NoError(t, err)
	require.NoError(t, m.Rotate(context.Background()))

	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, srv.URL, gotOrigin)
}

func TestRotate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"no cookie", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}},
		{"cookie cleared", func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "grafana_session", Value: "", MaxAge: -1})
			w.WriteHeader(http.StatusOK)
		}},
		{"redirect to login", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login", http.StatusFound)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := srv.Client()
			client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
			m, err := New(client, Config{BaseURL: srv.URL, Token: "keep-me", Version: 7})
			require.NoError(t, err)

			err = m.Rotate(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRotationFailed))
			assert.Equal(t, Credential{Token: "keep-me", Version: 7}, m.Current())
			assert.Zero(t, m.Rotations())
		})
	}
}

func TestRotate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m, err := New(http.DefaultClient, Config{BaseURL: url, Token: "t"})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Rotate(context.Background()), ErrRotationFailed)
}

func TestNextVersion(t *testing.T) {
	m, err := New(http.DefaultClient, Config{BaseURL: "http://g", Token: "t", Version: 731})
	require.NoError(t, err)

	assert.Equal(t, int64(731), m.NextVersion().Version)
	assert.Equal(t, int64(732), m.NextVersion().Version)
	assert.Equal(t, int64(733), m.Current().Version)

	m.SetVersion(0)
	assert.Zero(t, m.NextVersion().Version)
	assert.Zero(t, m.NextVersion().Version)
}

func TestRotate_KeepsVersion(t *testing.T) {
	_, srv := newFakeGrafana(t, "a")
	m, err := New(srv.Client(), Config{BaseURL: srv.URL, Token: "a", Version: 10})
	require.NoError(t, err)

	m.NextVersion()
	require.NoError(t, m.Rotate(context.Background()))
	assert.Equal(t, Credential{Token: "tok-1", Version: 11}, m.Current())
}

func TestCookie(t *testing.T) {
	m, err := New(http.DefaultClient, Config{BaseURL: "http://g", Token: "abc", CookieName: "custom_session"})
	require.NoError(t, err)
	c := m.Cookie()
	assert.Equal(t, "custom_session", c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, "custom_session", m.CookieName())
}
