package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/jsonutil"
)

// Health bodies as the MSSQL plugin reports them.
const (
	BodyOpen    = `{"message":"unable to open tcp connection with host 'x': read tcp: invalid packet size, it is larger than buffer size","status":"ERROR"}`
	BodyRefused = `{"message":"failed to connect to server - unable to open tcp connection: dial tcp: connect: connection refused","status":"ERROR"}`
)

// Endpoint is how the fake health check answers for one datasource URL.
type Endpoint struct {
	Body   string
	Status int           // default 400
	Delay  time.Duration // wait before answering
}

// Grafana is an in-process fake of the Grafana endpoints the scanner uses:
// datasource lookup, update, health check, and session rotation. Only the
// newest issued session token is accepted.
type Grafana struct {
	*httptest.Server

	UID  string
	ID   int64
	Name string

	mu        sync.Mutex
	token     string
	issued    int
	url       string
	version   int64
	endpoints map[string]Endpoint

	// FailUpdate makes updates pointing at these URLs fail with 500.
	FailUpdate map[string]bool
	// FailRotate makes every rotation answer 500.
	FailRotate bool

	Rotations    int
	Updates      []string
	Versions     []int64
	Probes       []string
	LastHeaders  http.Header
	LastUpdateBy string
}

// NewGrafana starts a fake holding an MSSQL datasource (id 9) that
// accepts token.
func NewGrafana(token string) *Grafana {
	g := &Grafana{
		UID:        "befy4uj2alreof",
		ID:         9,
		Name:       "mssql",
		token:      token,
		url:        "mssql.internal:1433",
		version:    5,
		endpoints:  map[string]Endpoint{},
		FailUpdate: map[string]bool{},
	}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serve))
	return g
}

// SetEndpoint sets the health answer for a datasource URL (host:port).
func (g *Grafana) SetEndpoint(addr string, e Endpoint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.endpoints[addr] = e
}

// Token returns the token currently accepted.
func (g *Grafana) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// DatasourceURL returns the URL the datasource currently points at.
func (g *Grafana) DatasourceURL() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.url
}

// Snapshot returns copies of the recorded updates and probes.
func (g *Grafana) Snapshot() (rotations int, updates, probes []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Rotations, append([]string(nil), g.Updates...), append([]string(nil), g.Probes...)
}

// EditURL is the datasource edit page on the fake.
func (g *Grafana) EditURL() string {
	return g.URL + "/connections/datasources/edit/" + g.UID
}

func (g *Grafana) authorized(r *http.Request) bool {
	c, err := r.Cookie("grafana_session")
	return err == nil && c.Value == g.token
}

func (g *Grafana) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.LastHeaders = r.Header.Clone()
	if !g.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		return
	}

	dsPath := "/api/datasources/uid/" + g.UID
	idPath := "/api/datasources/" + strconv.FormatInt(g.ID, 10)

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/user/auth-tokens/rotate":
		if g.FailRotate {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "rotate failed"})
			return
		}
		g.issued++
		g.Rotations++
		g.token = "rotated-" + strconv.Itoa(g.issued)
		http.SetCookie(w, &http.Cookie{Name: "grafana_session", Value: g.token, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "grafana_session_expiry", Value: "1767225600", Path: "/"})
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && r.URL.Path == dsPath:
		writeJSON(w, http.StatusOK, g.datasource())

	case r.Method == http.MethodPut && (r.URL.Path == idPath || r.URL.Path == dsPath):
		g.update(w, r)

	case r.Method == http.MethodGet && r.URL.Path == dsPath+"/health":
		g.health(w, r)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not found"})
	}
}

func (g *Grafana) datasource() map[string]any {
	return map[string]any{
		"id":               g.ID,
		"uid":              g.UID,
		"orgId":            1,
		"name":             g.Name,
		"type":             "mssql",
		"typeLogoUrl":      "public/app/plugins/datasource/mssql/img/sql_server_logo.svg",
		"access":           "proxy",
		"url":              g.url,
		"user":             "",
		"database":         "",
		"basicAuth":        false,
		"basicAuthUser":    "",
		"withCredentials":  false,
		"isDefault":        false,
		"jsonData":         map[string]any{"authenticationType": "Windows Authentication", "database": "master"},
		"secureJsonFields": map[string]any{},
		"version":          g.version,
		"readOnly":         false,
	}
}

func (g *Grafana) update(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var payload struct {
		URL     string `json:"url"`
		UID     string `json:"uid"`
		Version int64  `json:"version"`
	}
	if err := jsonutil.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad request"})
		return
	}
	g.Updates = append(g.Updates, payload.URL)
	g.Versions = append(g.Versions, payload.Version)
	g.LastUpdateBy = r.URL.Path

	if g.FailUpdate[payload.URL] {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Failed to update datasource"})
		return
	}
	// The store only matches rows with version < the one sent, so an
	// equal version is as stale as an older one. Zero skips the check.
	if payload.Version != 0 && payload.Version <= g.version {
		writeJSON(w, http.StatusConflict, map[string]any{"message": "Datasource has already been updated by someone else. Please reload and try again"})
		return
	}

	g.url = payload.URL
	if payload.Version != 0 {
		g.version = payload.Version
	} else {
		g.version++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         g.ID,
		"message":    "Datasource updated",
		"name":       g.Name,
		"datasource": g.datasource(),
	})
}

func (g *Grafana) health(w http.ResponseWriter, r *http.Request) {
	g.Probes = append(g.Probes, g.url)
	e, ok := g.endpoints[g.url]
	if !ok {
		e = Endpoint{Body: BodyRefused}
	}
	if e.Status == 0 {
		e.Status = http.StatusBadRequest
	}
	if e.Delay > 0 {
		g.mu.Unlock()
		select {
		case <-time.After(e.Delay):
		case <-r.Context().Done():
		}
		g.mu.Lock()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	io.WriteString(w, e.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := jsonutil.Marshal(v)
	w.Write(b)
}
