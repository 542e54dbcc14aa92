package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"image-crawler/pkg/utils"
)

// ParsePageURL validates a user-supplied page or resource URL. It must be absolute http(s)
// with a host. A '#' starts the fragment, as in a browser address bar.
// Failures wrap utils.ErrValidation so callers can reject before any network activity.
func ParsePageURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: page URL is empty", utils.ErrValidation)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page URL %q: %w", utils.ErrValidation, raw, err)
	}
	if !IsFetchable(parsed) {
		return nil, fmt.Errorf("%w: page URL %q must be absolute http or https", utils.ErrValidation, raw)
	}
	return parsed, nil
}

// IsFetchable reports whether u is an absolute http(s) URL with a host
func IsFetchable(u *url.URL) bool {
	if u == nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// ResolveReference resolves an attribute value against base.
// It returns "" when the value is blank, unparseable or resolves to a non-http(s) scheme
// (data:, javascript:, mailto: ...).
func ResolveReference(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(refURL)
	if !IsFetchable(resolved) {
		return ""
	}
	return resolved.String()
}

// CacheKey standardizes a resource URL for use as a probe-cache key.
// It lowercases the scheme and host, removes default ports and drops the fragment.
// Path and query are kept verbatim: two images differing only by query are distinct resources.
func CacheKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	}
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}
