package config

import (
	"net/http"
	"time"
)

// Browser-like header values sent on every probe, page and body request.
// Many image hosts answer 403 to Go's default User-Agent.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	DefaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
	DefaultConnection     = "keep-alive"
)

// AppConfig holds the global application configuration
type AppConfig struct {
	RequestHeaders        map[string]string `yaml:"request_headers,omitempty"`
	ProbeTimeout          time.Duration     `yaml:"probe_timeout,omitempty"`
	PageTimeout           time.Duration     `yaml:"page_timeout,omitempty"`
	DownloadTimeout       time.Duration     `yaml:"download_timeout,omitempty"` // 0 = body fetches never time out
	DownloadConcurrency   int               `yaml:"download_concurrency,omitempty"`
	ProbeConcurrency      int               `yaml:"probe_concurrency,omitempty"`
	MaxRequests           int               `yaml:"max_requests,omitempty"` // Process-wide cap on in-flight body fetches (0 = unlimited)
	MaxPageSizeBytes      int64             `yaml:"max_page_size_bytes,omitempty"`
	DefaultSelectionCount int               `yaml:"default_selection_count,omitempty"`
	ProbeCacheTTL         time.Duration     `yaml:"probe_cache_ttl,omitempty"`
	DisableProbeCache     bool              `yaml:"disable_probe_cache,omitempty"`
	HTTPClientSettings    HTTPClientConfig  `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout; 0 leaves body fetches unbounded
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// DefaultRequestHeaders returns a fresh copy of the built-in header set
func DefaultRequestHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      DefaultUserAgent,
		"Accept":          DefaultAccept,
		"Accept-Language": DefaultAcceptLanguage,
		"Connection":      DefaultConnection,
	}
}

// Headers builds the http.Header sent on every outbound request
func (c *AppConfig) Headers() http.Header {
	src := c.RequestHeaders
	if len(src) == 0 {
		src = DefaultRequestHeaders()
	}
	h := make(http.Header, len(src))
	for k, v := range src {
		h.Set(k, v)
	}
	return h
}

// Default returns a validated AppConfig with every default applied
func Default() *AppConfig {
	cfg := &AppConfig{}
	_, _ = cfg.Validate()
	return cfg
}
