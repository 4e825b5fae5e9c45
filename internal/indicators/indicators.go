// Package indicators extracts enrichable IPs, hashes, and domains from search hits.
package indicators

import (
	"log/slog"
	"net/netip"
	"regexp"
	"sort"
	"strings"
)

// Type classifies an Indicator.
type Type string

const (
	IP     Type = "ip"
	MD5    Type = "md5"
	SHA1   Type = "sha1"
	SHA256 Type = "sha256"
	Domain Type = "domain"
)

// Indicator is a value worth sending to threat enrichment.
type Indicator struct {
	Value string `json:"value"`
	Type  Type   `json:"type"`
}

// Key is the dedup key "type:value".
func (i Indicator) Key() string {
	return string(i.Type) + ":" + i.Value
}

// maxDepth bounds the walk; JSON-decoded input cannot cycle but can nest deeply.
const maxDepth = 64

var (
	ipPattern     = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)$`)
	hashPattern   = regexp.MustCompile(`^(?:[a-fA-F0-9]{32}|[a-fA-F0-9]{40}|[a-fA-F0-9]{64})$`)
	domainPattern = regexp.MustCompile(`(?i)^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
)

// Extract walks source recursively and returns deduplicated indicators in
// first-seen order. Map keys are visited in sorted order so the result is
// deterministic. Never returns nil.
func Extract(source map[string]any) []Indicator {
	x := extractor{seen: make(map[string]bool), out: []Indicator{}}
	x.walkMap("", source, 0)
	return x.out
}

type extractor struct {
	seen map[string]bool
	out  []Indicator
}

func (x *extractor) walkMap(prefix string, m map[string]any, depth int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		x.walk(path, k, m[k], depth+1)
	}
}

func (x *extractor) walk(path, key string, v any, depth int) {
	if depth > maxDepth {
		slog.Debug("indicator walk depth exceeded", "path", path)
		return
	}
	switch val := v.(type) {
	case map[string]any:
		x.walkMap(path, val, depth)
	case []any:
		for _, item := range val {
			x.walk(path, key, item, depth+1)
		}
	case []string:
		for _, item := range val {
			x.walk(path, key, item, depth+1)
		}
	case string:
		if ind, ok := Classify(key, val); ok {
			if !x.seen[ind.Key()] {
				x.seen[ind.Key()] = true
				x.out = append(x.out, ind)
				slog.Debug("indicator found", "path", path, "type", ind.Type)
			}
		}
	}
}

// Classify decides whether a single string leaf under key is an indicator.
// IPs match by value alone; hashes and domains also need a hinting key name.
func Classify(key, value string) (Indicator, bool) {
	if value == "" {
		return Indicator{}, false
	}
	k := strings.ToLower(key)

	if ipPattern.MatchString(value) {
		if IsNonRoutable(value) {
			return Indicator{}, false
		}
		return Indicator{Value: value, Type: IP}, true
	}

	if containsAny(k, "hash", "md5", "sha") && hashPattern.MatchString(value) {
		return Indicator{Value: strings.ToLower(value), Type: hashType(len(value))}, true
	}

	if containsAny(k, "domain", "url", "host") &&
		!strings.ContainsAny(value, " \t\r\n") && domainPattern.MatchString(value) {
		return Indicator{Value: strings.ToLower(value), Type: Domain}, true
	}

	return Indicator{}, false
}

// hashType assigns the algorithm purely from the hex length.
func hashType(n int) Type {
	switch n {
	case 32:
		return MD5
	case 40:
		return SHA1
	default:
		return SHA256
	}
}

var extraReserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

// IsNonRoutable reports whether ip is private, loopback, link-local,
// multicast, documentation, or otherwise reserved and not worth enriching.
// Unparseable input counts as non-routable.
func IsNonRoutable(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return true
	}
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsUnspecified() {
		return true
	}
	for _, p := range extraReserved {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
