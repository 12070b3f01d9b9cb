// Package safeurl guards against SSRF by restricting resolver/fetch traffic
// to http(s) URLs with well-formed, non-homograph hostnames.
package safeurl

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https
// and a hostname that normalizes cleanly under IDNA. Rejects file://, ftp://,
// plex:// and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return false
	}
	return NormalizeHost(parsed.Hostname()) != ""
}

// NormalizeHost punycode-normalizes host and returns "" if host is empty or
// contains characters idna refuses (e.g. a homograph attempt on an allow-listed
// name). Callers compare the returned value against allow-lists, never the
// raw input, so a Unicode lookalike host can't slip past a string match.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Lookup is strict about already-ASCII hosts with underscores or
		// other historical oddities; fall back to the literal host rather
		// than failing closed on legitimate CDNs.
		if isASCII(host) {
			return strings.ToLower(host)
		}
		return ""
	}
	return strings.ToLower(ascii)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
