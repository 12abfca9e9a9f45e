package fund

import (
	"net"
	"net/url"
	"strings"
)

// AllowedDomains lists the official domains a source URL may point at.
// These are hard invariants of the system, not configuration: a record or
// answer citing any other domain is rejected outright.
var AllowedDomains = []string{
	"mf.nipponindiaim.com",
	"nipponindiaim.com",
	"amfiindia.com",
	"sebi.gov.in",
}

// ValidSourceURL reports whether raw parses as an http(s) URL whose host is an
// allowlisted official domain or a subdomain of one.
func ValidSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, domain := range AllowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// NormalizeURL resolves raw against base when raw is relative, then checks the
// result against the allowlist. Returns "" for URLs outside official domains.
func NormalizeURL(raw, base string) string {
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http") && base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return ""
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		raw = b.ResolveReference(ref).String()
	}
	if !ValidSourceURL(raw) {
		return ""
	}
	return raw
}
