package oracle

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/internal/hexutil"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
)

// Identity is the browser header set sent with every oracle call, so the
// traffic reads like the Grafana frontend of an ordinary browser session.
type Identity struct {
	// Profile selects a built-in header set: chrome, firefox, safari, minimal.
	Profile string `yaml:"profile"`

	// Headers override or extend the profile. An empty value removes a header.
	Headers map[string]string `yaml:"headers"`

	// DeviceID is sent as X-Grafana-Device-Id. Empty derives one from the
	// base URL.
	DeviceID string `yaml:"device_id"`
}

var identityProfiles = map[string]map[string]string{
	"chrome": {
		"User-Agent":         defaults.UAChrome,
		"Accept-Language":    "en-US,en;q=0.9",
		"Cache-Control":      "no-cache",
		"Pragma":             "no-cache",
		"Priority":           "u=1, i",
		"Sec-Ch-Ua":          `"Not(A:Brand";v="99", "Google Chrome";v="133", "Chromium";v="133"`,
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": `"macOS"`,
		"Sec-Fetch-Dest":     "empty",
		"Sec-Fetch-Mode":     "cors",
		"Sec-Fetch-Site":     "same-origin",
	},
	"firefox": {
		"User-Agent":      defaults.UAFirefox,
		"Accept-Language": "en-US,en;q=0.5",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
	},
	"safari": {
		"User-Agent":      defaults.UASafari,
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
	},
	"minimal": {
		"User-Agent": defaults.UAMinimal,
	},
}

// IdentityProfiles lists the built-in profile names.
func IdentityProfiles() []string {
	names := make([]string, 0, len(identityProfiles))
	for n := range identityProfiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultIdentity is desktop Chrome on macOS.
func DefaultIdentity() Identity {
	return Identity{Profile: "chrome"}
}

// Validate checks the profile name.
func (id Identity) Validate() error {
	if id.Profile == "" {
		return nil
	}
	if _, ok := identityProfiles[strings.ToLower(id.Profile)]; !ok {
		return fmt.Errorf("unknown identity profile %q (available: %s)", id.Profile, strings.Join(IdentityProfiles(), ", "))
	}
	return nil
}

// Header renders the identity for requests against base. Origin, Referer
// and the device id are derived from the target.
func (id Identity) Header(t Target, orgID int) http.Header {
	h := http.Header{}
	profile := identityProfiles[strings.ToLower(id.Profile)]
	if profile == nil {
		profile = identityProfiles["chrome"]
	}
	for k, v := range profile {
		h.Set(k, v)
	}

	h.Set("Origin", origin(t.BaseURL))
	h.Set("Referer", t.EditURL())
	h.Set("X-Grafana-Org-Id", fmt.Sprint(orgID))

	device := id.DeviceID
	if device == "" {
		device = DeviceID(t.BaseURL)
	}
	h.Set("X-Grafana-Device-Id", device)

	for k, v := range id.Headers {
		if v == "" {
			h.Del(k)
			continue
		}
		h.Set(k, v)
	}
	return h
}

// DeviceID returns a stable 32-hex-digit device id for a Grafana base URL,
// the same shape the Grafana frontend generates.
func DeviceID(baseURL string) string {
	hi, lo := murmur3.Sum128([]byte(strings.ToLower(baseURL)))
	return hexutil.Uint128(hi, lo)
}

func origin(base string) string {
	// scheme://host, without any subpath
	if i := strings.Index(base, "://"); i >= 0 {
		if j := strings.IndexByte(base[i+3:], '/'); j >= 0 {
			return base[:i+3+j]
		}
	}
	return base
}
