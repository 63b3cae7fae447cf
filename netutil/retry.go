package netutil

import (
	"net/http"
	"strconv"
	"time"
)

// RetryTransport wraps an http.RoundTripper with exponential backoff on
// transient failures. Retry-After headers are honored when present.
type RetryTransport struct {
	// Base is the underlying transport; http.DefaultTransport if nil.
	Base http.RoundTripper

	// OnRetry is called before each retry with the 1-based attempt
	// number, the wait duration, and the status code (0 on a network
	// error).
	OnRetry func(attempt int, wait time.Duration, statusCode int)

	// MaxRetries defaults to 3.
	MaxRetries int

	// InitialBackoff defaults to 1s.
	InitialBackoff time.Duration

	// MaxBackoff defaults to 30s.
	MaxBackoff time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	maxRetries := t.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	initial := t.InitialBackoff
	if initial == 0 {
		initial = time.Second
	}
	maxBackoff := t.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}

	var lastErr error
	var lastResp *http.Response
	for attempt := 0; attempt <= maxRetries; attempt++ {
		clone := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clone.Body = body
		}

		resp, err := base.RoundTrip(clone)
		if err != nil {
			lastErr = err
			// A security block is final; retrying cannot help.
			if IsSSRFBlockedError(err) {
				return nil, err
			}
			if attempt < maxRetries {
				wait := t.backoff(attempt, initial, maxBackoff, nil)
				if t.OnRetry != nil {
					t.OnRetry(attempt+1, wait, 0)
				}
				time.Sleep(wait)
				continue
			}
			return nil, lastErr
		}

		if !IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastResp = resp
		lastErr = nil
		if attempt < maxRetries {
			wait := t.backoff(attempt, initial, maxBackoff, resp)
			if t.OnRetry != nil {
				t.OnRetry(attempt+1, wait, resp.StatusCode)
			}
			_ = resp.Body.Close()
			time.Sleep(wait)
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

// backoff determines the wait before the next attempt, honoring
// Retry-After when the server sent one.
func (t *RetryTransport) backoff(attempt int, initial, max time.Duration, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				return clampDuration(time.Duration(seconds)*time.Second, initial, max)
			}
			if at, err := http.ParseTime(retryAfter); err == nil {
				return clampDuration(time.Until(at), initial, max)
			}
		}
	}
	return clampDuration(initial*(1<<attempt), initial, max)
}

func clampDuration(d, floor, ceil time.Duration) time.Duration {
	if d < 0 {
		return floor
	}
	if d > ceil {
		return ceil
	}
	return d
}

// IsRetryableStatus reports whether the status code indicates a
// transient failure worth retrying. 4xx responses other than 429 are
// not retried.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
