package oracle

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const editPathMarker = "/connections/datasources/edit/"

var uidPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,40}$`)

// Target identifies the hijacked datasource on a Grafana instance.
type Target struct {
	BaseURL string // scheme://host[:port][/subpath], no trailing slash
	UID     string
}

// EditURL is the datasource's page in the Grafana UI.
func (t Target) EditURL() string {
	return t.BaseURL + editPathMarker + t.UID
}

// ParseTarget splits a datasource edit URL such as
// https://grafana.example.com/connections/datasources/edit/befy4uj2alreof
// into base URL and UID. Grafana served under a subpath keeps the subpath
// in the base URL.
func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("%w: scheme must be http or https: %q", ErrInvalidTarget, raw)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("%w: missing host: %q", ErrInvalidTarget, raw)
	}

	prefix, uid, ok := strings.Cut(strings.TrimRight(u.Path, "/"), editPathMarker)
	if !ok || !uidPattern.MatchString(uid) {
		return Target{}, fmt.Errorf("%w: expected %s<uid> in %q", ErrInvalidTarget, editPathMarker, raw)
	}

	base := url.URL{Scheme: u.Scheme, Host: u.Host, Path: prefix}
	return Target{BaseURL: base.String(), UID: uid}, nil
}
