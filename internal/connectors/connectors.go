// Package connectors turns heterogeneous upstream sources (RSS feeds,
// JSON APIs, plain HTML pages) into the uniform RawItem shape.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ainews/internal/core"
	"ainews/internal/logger"
)

// Browser-like UA: several of the default sources reject obvious bots.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const maxBodyBytes = 10 << 20

// Connector fetches one source and returns its raw items. Implementations
// must honor ctx cancellation and never panic on malformed upstream data.
type Connector interface {
	Fetch(ctx context.Context, src core.Source) ([]core.RawItem, error)
}

// TransportError covers network-level failures and non-auth HTTP errors.
// Retryable cases are retried internally before this surfaces.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.URL, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ParseError covers structurally invalid upstream payloads.
type ParseError struct {
	SourceID string
	Err      error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.SourceID, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ErrAuthDegraded marks a 401/403 response. Connectors treat it as a soft
// failure: warn and return zero items rather than failing the source.
var ErrAuthDegraded = errors.New("authentication rejected")

// New returns the connector for a source type. Unknown types fall back to
// RSS, which is the most forgiving parser.
func New(cfg core.SourceConfig) Connector {
	switch cfg.Type {
	case "api":
		return &APIConnector{}
	case "scrape":
		return &ScrapeConnector{}
	case "rss_or_scrape":
		return &RSSOrScrapeConnector{}
	case "rss", "":
		return &RSSConnector{}
	default:
		logger.Warn("Unknown source type, treating as RSS", "type", cfg.Type, "source", cfg.ID)
		return &RSSConnector{}
	}
}

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	},
}

// buildURL appends a source's query params to its base URL. url.Values
// encodes keys in sorted order, which keeps request URLs stable across runs.
func buildURL(base string, params map[string]string) string {
	if len(params) == 0 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, params[k])
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// expandHeaders resolves ${VAR} references against the environment and
// drops auth headers whose secret did not resolve, so a missing token
// degrades to an anonymous request instead of sending a bare "Bearer".
func expandHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		expanded := os.Expand(value, os.Getenv)
		trimmed := strings.TrimSpace(expanded)
		if strings.EqualFold(name, "Authorization") {
			if trimmed == "" || strings.EqualFold(trimmed, "bearer") || strings.EqualFold(trimmed, "token") {
				logger.Debug("Dropping unresolved auth header", "header", name)
				continue
			}
		}
		out[name] = expanded
	}
	return out
}

// httpGet fetches a URL with retries. Transient failures (network errors,
// 429, 5xx) are retried with exponential backoff, at most 3 attempts.
// 401/403 returns ErrAuthDegraded; other 4xx fail immediately.
func httpGet(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	resolved := expandHeaders(headers)

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(&TransportError{URL: rawURL, Err: err})
		}
		req.Header.Set("User-Agent", userAgent)
		for name, value := range resolved {
			req.Header.Set(name, value)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(&TransportError{URL: rawURL, Err: ctx.Err()})
			}
			return &TransportError{URL: rawURL, Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: HTTP %d from %s", ErrAuthDegraded, resp.StatusCode, rawURL))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &TransportError{URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		case resp.StatusCode >= 400:
			return backoff.Permanent(&TransportError{URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)})
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return &TransportError{URL: rawURL, Err: err}
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 60 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// fetchBody wraps httpGet with the soft auth-degraded handling shared by
// every connector: warn once and report zero items.
func fetchBody(ctx context.Context, src core.Source, rawURL string) ([]byte, bool, error) {
	body, err := httpGet(ctx, rawURL, src.Config.Headers)
	if errors.Is(err, ErrAuthDegraded) {
		logger.Warn("Source auth degraded, skipping", "source", src.ID, "url", rawURL)
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, false, nil
}
