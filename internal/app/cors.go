package app

import (
	"net/url"
	"strings"
)

// extractOriginHost returns the lowercased "host[:port]" of an origin URL.
func extractOriginHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return strings.ToLower(origin)
	}
	return strings.ToLower(u.Host)
}

// matchOriginPattern reports whether host matches pattern. A pattern is an
// exact host, "*.example.com" for any subdomain, or "localhost:*" for any port.
func matchOriginPattern(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
