package extension

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/netutil"
)

// HTTPFetcher implements ports.PackageFetcher for direct-download
// package URLs. Every request goes through the hardened client: TLS
// 1.2+, SSRF filtering with DNS pinning, retry with backoff, and a hard
// cap on the downloaded size.
type HTTPFetcher struct {
	client      *http.Client
	maxBodySize int64
	userAgent   string
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	timeout      time.Duration
	maxBodySize  int64
	maxRetries   int
	allowPrivate bool
	userAgent    string
}

// WithFetchTimeout bounds a single download.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(c *fetcherConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxPackageSize caps the downloadable package size.
func WithMaxPackageSize(size int64) FetcherOption {
	return func(c *fetcherConfig) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithFetchRetries sets the retry count for transient failures.
func WithFetchRetries(n int) FetcherOption {
	return func(c *fetcherConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithPrivateNetworkAllowed permits fetching from private addresses,
// for hosts running an internal package mirror.
func WithPrivateNetworkAllowed(allow bool) FetcherOption {
	return func(c *fetcherConfig) { c.allowPrivate = allow }
}

// NewHTTPFetcher creates a package fetcher.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	cfg := fetcherConfig{
		timeout:     30 * time.Second,
		maxBodySize: 50 * 1024 * 1024,
		maxRetries:  3,
		userAgent:   "tabletop-host-sdk",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	dialer := &netutil.SecureDialer{
		AllowPrivateNetwork: cfg.allowPrivate,
		Timeout:             cfg.timeout,
	}
	transport := &http.Transport{
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       netutil.TLSConfig(),
		DialContext:           dialer.DialContext,
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.timeout,
			Transport: &netutil.RetryTransport{
				Base:       transport,
				MaxRetries: cfg.maxRetries,
			},
		},
		maxBodySize: cfg.maxBodySize,
		userAgent:   cfg.userAgent,
	}
}

// Fetch downloads a package payload. Only HTTPS URLs are accepted.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if !netutil.IsHTTPS(url) {
		return nil, fmt.Errorf("package URL must use https: %s", netutil.StripCredentials(url))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", netutil.StripCredentials(url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", netutil.StripCredentials(url), resp.StatusCode)
	}

	data, err := io.ReadAll(netutil.NewLimitedReader(resp.Body, f.maxBodySize))
	if err != nil {
		if netutil.IsSizeLimitExceededError(err) {
			return nil, fmt.Errorf("package exceeds size limit %s: %w", netutil.FormatSize(f.maxBodySize), err)
		}
		return nil, fmt.Errorf("read package body: %w", err)
	}
	return data, nil
}
