package config

import (
	"fmt"
	"strings"
	"time"

	"image-crawler/pkg/utils"
)

const (
	defaultProbeTimeout        = 10 * time.Second
	defaultPageTimeout         = 10 * time.Second
	defaultDownloadConcurrency = 5
	defaultProbeConcurrency    = 5
	defaultMaxPageSizeBytes    = 10 << 20
	defaultSelectionCount      = 6
	defaultProbeCacheTTL       = 10 * time.Minute
	defaultMaxRedirects        = 10
	maxReasonableConcurrency   = 256
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// RequestHeaders
	if len(c.RequestHeaders) == 0 {
		c.RequestHeaders = DefaultRequestHeaders()
	} else {
		hasUA := false
		for k := range c.RequestHeaders {
			if strings.TrimSpace(k) == "" {
				return warnings, fmt.Errorf("%w: request_headers contains an empty header name", utils.ErrConfigValidation)
			}
			if strings.EqualFold(k, "User-Agent") {
				hasUA = true
			}
		}
		if !hasUA {
			warnings = append(warnings, "request_headers has no User-Agent, many hosts reject such requests")
		}
	}

	// Timeouts
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = defaultPageTimeout
	}
	if c.DownloadTimeout < 0 {
		warnings = append(warnings, "download_timeout cannot be negative, disabling timeout")
		c.DownloadTimeout = 0
	}

	// Concurrency
	if c.DownloadConcurrency <= 0 {
		c.DownloadConcurrency = defaultDownloadConcurrency
	}
	if c.DownloadConcurrency > maxReasonableConcurrency {
		warnings = append(warnings, fmt.Sprintf(
			"download_concurrency %d is very high, capping at %d", c.DownloadConcurrency, maxReasonableConcurrency))
		c.DownloadConcurrency = maxReasonableConcurrency
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = defaultProbeConcurrency
	}
	if c.MaxRequests < 0 {
		warnings = append(warnings, "max_requests cannot be negative, setting to 0 (unlimited)")
		c.MaxRequests = 0
	}
	if c.MaxRequests > 0 && c.MaxRequests < c.DownloadConcurrency {
		warnings = append(warnings, fmt.Sprintf(
			"max_requests (%d) < download_concurrency (%d), batches will not reach full width",
			c.MaxRequests, c.DownloadConcurrency))
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes <= 0 {
		c.MaxPageSizeBytes = defaultMaxPageSizeBytes
	}

	// DefaultSelectionCount
	if c.DefaultSelectionCount <= 0 {
		c.DefaultSelectionCount = defaultSelectionCount
	}

	// ProbeCacheTTL
	if c.ProbeCacheTTL < 0 {
		warnings = append(warnings, "probe_cache_ttl cannot be negative, disabling the probe cache")
		c.ProbeCacheTTL = 0
		c.DisableProbeCache = true
	}
	if c.ProbeCacheTTL == 0 && !c.DisableProbeCache {
		c.ProbeCacheTTL = defaultProbeCacheTTL
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
// Timeout is left alone: a zero overall timeout keeps the body-fetch path unbounded.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout < 0 {
		h.Timeout = 0
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.DownloadConcurrency
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = defaultMaxRedirects
	}
}
