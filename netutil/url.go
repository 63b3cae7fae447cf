package netutil

import (
	"net/url"
	"strings"
)

// StripCredentials removes user:password@ from a URL for safe logging.
// Returns the input unchanged if it cannot be parsed.
func StripCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.User = nil
	return parsed.String()
}

// NormalizeURL returns a canonical form suitable for cache keys:
// lowercased scheme and host, default ports and credentials removed,
// trailing slash trimmed, query parameters sorted.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.User = nil
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	host := parsed.Hostname()
	port := parsed.Port()
	if (parsed.Scheme == "https" && port == "443") ||
		(parsed.Scheme == "http" && port == "80") {
		parsed.Host = host
	}

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	if parsed.RawQuery != "" {
		parsed.RawQuery = parsed.Query().Encode()
	}
	return parsed.String()
}

// IsHTTPS reports whether the URL uses the HTTPS scheme.
func IsHTTPS(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.ToLower(parsed.Scheme) == "https"
}
