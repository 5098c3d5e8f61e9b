package utils

import (
	"net"
	"net/http"
	"time"
)

// defaults for outbound calls to third party APIs (payment gateway)
const (
	defaultClientTimeout         = 10 * time.Second // absolute deadline for the whole request
	defaultResponseHeaderTimeout = 8 * time.Second  // time to first byte of headers
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultMaxConnsPerHost       = 32
	defaultMaxIdleConnsPerHost   = 16
	defaultDialerTimeout         = 3 * time.Second
	defaultDialerKeepAlive       = 30 * time.Second
)

// ClientConfig captures tunables for the HTTP client/transport.
// Zero values are replaced by defaults so a client can never hang forever.
type ClientConfig struct {
	ClientTimeout         time.Duration
	ResponseHeaderTimeout time.Duration
	MaxConnsPerHost       int
	MaxIdleConnsPerHost   int
}

// ClientOption ----- Functional options pattern -----
type ClientOption func(*ClientConfig)

func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.ClientTimeout = d }
}
func WithResponseHeaderTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.ResponseHeaderTimeout = d }
}
func WithMaxConnsPerHost(n int) ClientOption { return func(c *ClientConfig) { c.MaxConnsPerHost = n } }

// NewHTTPClient builds an *http.Client with safe defaults overridden by opts.
func NewHTTPClient(opts ...ClientOption) *http.Client {
	var cfg ClientConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ClientTimeout <= 0 {
		cfg.ClientTimeout = defaultClientTimeout
	}
	if cfg.ResponseHeaderTimeout <= 0 || cfg.ResponseHeaderTimeout > cfg.ClientTimeout {
		cfg.ResponseHeaderTimeout = min(defaultResponseHeaderTimeout, cfg.ClientTimeout)
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = defaultMaxConnsPerHost
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialerTimeout,
			KeepAlive: defaultDialerKeepAlive,
		}).DialContext,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.ClientTimeout,
	}
}
