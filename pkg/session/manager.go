// Package session holds the Grafana session credential for a scan and
// rotates it before the server expires it.
//
// Grafana issues a new grafana_session cookie from
// POST /api/user/auth-tokens/rotate and revokes the old one shortly after,
// so a long scan has to rotate proactively.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/iohelper"
)

// RotatePath is the Grafana endpoint that exchanges a session token.
const RotatePath = "/api/user/auth-tokens/rotate"

// Credential is the session token plus the datasource version to send
// with the next write. Values are immutable; the manager swaps them.
type Credential struct {
	Token   string
	Version int64
}

// Config configures a Manager.
type Config struct {
	BaseURL string // scheme://host[:port][/subpath] of the Grafana instance
	Token   string // initial grafana_session value

	// CookieName defaults to defaults.SessionCookie.
	CookieName string

	// Version is the first datasource version to hand out. Zero leaves
	// the version out of every write.
	Version int64

	// Header is added to the rotate request (browser identity).
	Header http.Header

	Logger *slog.Logger
}

// Manager owns the credential for one scan. It is safe for concurrent
// use, though a scan drives it from one goroutine.
type Manager struct {
	client *http.Client
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	cred      Credential
	rotations int
	expiry    time.Time
}

// New creates a manager holding cfg.Token.
func New(client *http.Client, cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("session: base URL is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaults.SessionCookie
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Manager{
		client: client,
		cfg:    cfg,
		logger: orDefault(cfg.Logger),
		cred:   Credential{Token: cfg.Token, Version: cfg.Version},
	}, nil
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// CookieName is the name the token is sent under.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// Current returns the credential in effect.
func (m *Manager) Current() Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// Cookie returns the session cookie for the current token.
func (m *Manager) Cookie() *http.Cookie {
	return &http.Cookie{Name: m.cfg.CookieName, Value: m.Current().Token}
}

// NextVersion returns the credential carrying the version for the next
// datasource write and advances the counter. When versioning is off the
// version stays zero.
func (m *Manager) NextVersion() Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cred
	if m.cred.Version > 0 {
		m.cred = Credential{Token: m.cred.Token, Version: m.cred.Version + 1}
	}
	return c
}

// SetVersion replaces the version counter. Zero turns versioning off.
func (m *Manager) SetVersion(v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = Credential{Token: m.cred.Token, Version: v}
}

// Rotations returns how many rotations have succeeded.
func (m *Manager) Rotations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotations
}

// Expiry returns the expiry Grafana last announced, or the zero time.
func (m *Manager) Expiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiry
}

// Rotate exchanges the current token for a new one. On any failure the
// held credential is left unchanged and the error wraps ErrRotationFailed.
func (m *Manager) Rotate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+RotatePath, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRotationFailed, err)
	}
	for k, v := range m.cfg.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	req.Header.Set("Accept", defaults.AcceptAll)
	req.Header.Set("Origin", m.cfg.BaseURL)
	req.AddCookie(m.Cookie())

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRotationFailed, err)
	}
	body, _ := iohelper.ReadBodySmall(resp.Body)
	iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrRotationFailed, resp.StatusCode,
			iohelper.Snippet(string(body), defaults.EvidenceMax))
	}

	var token string
	var expiry time.Time
	for _, c := range resp.Cookies() {
		switch c.Name {
		case m.cfg.CookieName:
			token = c.Value
		case defaults.SessionExpiryCookie:
			if sec, err := strconv.ParseInt(c.Value, 10, 64); err == nil {
				expiry = time.Unix(sec, 0)
			}
		}
	}
	if token == "" {
		return fmt.Errorf("%w: response carried no %s cookie", ErrRotationFailed, m.cfg.CookieName)
	}

	m.mu.Lock()
	m.cred = Credential{Token: token, Version: m.cred.Version}
	m.rotations++
	if !expiry.IsZero() {
		m.expiry = expiry
	}
	n := m.rotations
	m.mu.Unlock()

	attrs := []any{slog.Int("rotations", n)}
	if !expiry.IsZero() {
		attrs = append(attrs, slog.Time("expires", expiry))
	}
	m.logger.InfoContext(ctx, "session rotated", attrs...)
	return nil
}
