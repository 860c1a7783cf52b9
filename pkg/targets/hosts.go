package targets

import (
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const maxHostBits = 20

// MaxCIDRHosts caps how many addresses a single CIDR token may expand to:
// an IPv4 /12 or an IPv6 /108. Host lists are expanded, sorted and
// deduplicated up front, and one oracle round trip per target makes wider
// blocks impractical anyway. Wider ranges can be split into several tokens.
const MaxCIDRHosts = 1 << maxHostBits

// W.X.Y.A-B or W.X.Y.A-W.X.Y.B
var octetRange = regexp.MustCompile(`^(\d{1,3}\.\d{1,3}\.\d{1,3})\.(\d{1,3})-(?:(\d{1,3}\.\d{1,3}\.\d{1,3})\.)?(\d{1,3})$`)

// ParseHosts expands whitespace-separated host tokens. CIDR blocks become
// their usable host addresses, last-octet ranges become one address per
// value, and every other token (hostnames, single IPs) passes through.
// The result is sorted and deduplicated.
func ParseHosts(spec string) ([]string, error) {
	seen := make(map[string]bool)
	var hosts []string
	add := func(h string) {
		if !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}

	for _, tok := range strings.Fields(spec) {
		switch {
		case strings.Contains(tok, "/"):
			expanded, err := expandCIDR(tok)
			if err != nil {
				return nil, err
			}
			for _, h := range expanded {
				add(h)
			}
		case octetRange.MatchString(tok):
			expanded, err := expandRange(tok)
			if err != nil {
				return nil, err
			}
			for _, h := range expanded {
				add(h)
			}
		default:
			add(tok)
		}
	}

	slices.Sort(hosts)
	return hosts, nil
}

// expandCIDR lists the usable addresses of a block. Host bits in the
// address are ignored. Network and broadcast addresses are dropped unless
// the block is a /31 or /32 (IPv6: /127 or /128, where only the
// subnet-router address is dropped for larger blocks).
func expandCIDR(cidr string) ([]string, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidHost, cidr, err)
	}
	prefix = prefix.Masked()

	addr := prefix.Addr()
	hostBits := addr.BitLen() - prefix.Bits()
	if hostBits > maxHostBits {
		return nil, fmt.Errorf("%w: %q expands past %d hosts (widest block is /%d); split it into smaller blocks",
			ErrInvalidHost, cidr, MaxCIDRHosts, addr.BitLen()-maxHostBits)
	}

	if hostBits <= 1 {
		out := []string{addr.String()}
		if hostBits == 1 {
			out = append(out, addr.Next().String())
		}
		return out, nil
	}

	total := 1 << hostBits
	ips := make([]string, 0, total)
	ip := addr.Next()
	for i := 1; i < total; i++ {
		if addr.Is4() && i == total-1 {
			break // broadcast
		}
		ips = append(ips, ip.String())
		ip = ip.Next()
	}
	return ips, nil
}

func expandRange(tok string) ([]string, error) {
	m := octetRange.FindStringSubmatch(tok)
	base := m[1]
	if m[3] != "" && m[3] != base {
		return nil, fmt.Errorf("%w: %q spans more than one /24", ErrInvalidHost, tok)
	}
	if _, err := netip.ParseAddr(base + ".0"); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidHost, tok, err)
	}

	start, _ := strconv.Atoi(m[2])
	end, _ := strconv.Atoi(m[4])
	if start > 255 || end > 255 || start > end {
		return nil, fmt.Errorf("%w: bad octet range %q", ErrInvalidHost, tok)
	}

	hosts := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		hosts = append(hosts, base+"."+strconv.Itoa(i))
	}
	return hosts, nil
}
