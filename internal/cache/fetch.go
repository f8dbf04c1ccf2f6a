// internal/cache/fetch.go - HTTP tile fetching implementation
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/akkana/pytopo/internal"
)

// FetchConfig holds the network tuning knobs for tile downloads.
type FetchConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	MaxConnsPerHost int
	ProxyURL        string
	UserAgent       string
	Headers         map[string]string
}

// Fetcher downloads single tiles over HTTP with retry on transient
// failures. Failures a later attempt cannot plausibly cure within the
// same call (4xx, malformed payload) are returned immediately; the
// caller decides when to try the tile again.
type Fetcher struct {
	client *http.Client
	config FetchConfig
}

// NewFetcher creates a new HTTP-based tile fetcher
func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 4
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "pytopo/2.0"
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
	}

	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
	}
}

// Fetch retrieves a single tile, retrying transient failures with
// quadratic backoff up to MaxRetries.
func (f *Fetcher) Fetch(ctx context.Context, tileURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 250 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, internal.NewError(internal.ErrorCodeTimeout, "fetch canceled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		data, retry, err := f.fetchOnce(ctx, tileURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}

	return nil, lastErr
}

// fetchOnce performs one request and classifies the outcome. The retry
// flag is set only for failures a later attempt could plausibly cure.
func (f *Fetcher) fetchOnce(ctx context.Context, tileURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, false, internal.NewError(internal.ErrorCodeNetwork,
			fmt.Sprintf("failed to build request for %s", tileURL), err)
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("User-Agent", f.config.UserAgent)
	for key, value := range f.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, true, internal.NewError(internal.ErrorCodeTimeout,
				fmt.Sprintf("request for %s timed out", tileURL), err)
		}
		return nil, true, internal.NewError(internal.ErrorCodeNetwork,
			fmt.Sprintf("request for %s failed", tileURL), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, internal.NewError(internal.ErrorCodeHTTP,
			fmt.Sprintf("HTTP %d from %s", resp.StatusCode, tileURL), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, false, internal.NewError(internal.ErrorCodeHTTP,
			fmt.Sprintf("HTTP %d from %s", resp.StatusCode, tileURL), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, true, internal.NewError(internal.ErrorCodeTimeout,
				fmt.Sprintf("reading %s timed out", tileURL), err)
		}
		return nil, true, internal.NewError(internal.ErrorCodeNetwork,
			fmt.Sprintf("failed to read body from %s", tileURL), err)
	}

	// Some servers answer 200 with an empty body for tiles they do not
	// have; an empty file would poison the cache.
	if len(data) == 0 {
		return nil, false, internal.NewError(internal.ErrorCodeMalformed,
			fmt.Sprintf("empty tile body from %s", tileURL), nil)
	}

	return data, false, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
