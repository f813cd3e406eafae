// Copyright 2025 The Meraki Dashboard Exporter Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package meraki implements the sole bridge to the Meraki Dashboard API.
// It normalizes response shapes, paginates listings, retries transient
// failures with backoff and surfaces typed errors. All collectors depend
// on this contract and never build requests themselves.
package meraki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the global dashboard endpoint. Regional endpoints
// (e.g. api.meraki.cn, api.meraki.ca) are accepted via Options.BaseURL.
const DefaultBaseURL = "https://api.meraki.com/api/v1"

const (
	defaultPerPage = 1000

	retryWaitMin = 1 * time.Second
	retryWaitMax = 30 * time.Second
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	APIKey             string
	BaseURL            string
	Timeout            time.Duration
	MaxRetries         int
	ConcurrencyLimit   int64
	RateLimitRetryWait time.Duration
	RequestsPerSecond  float64
	HistogramBuckets   []float64
	UserAgent          string
}

// Client is safe for concurrent use. A process-wide semaphore caps the
// number of simultaneous outbound requests and a token-bucket limiter
// paces them under the dashboard's request budget.
type Client struct {
	logger  log.Logger
	opts    Options
	base    *url.URL
	rhc     *retryablehttp.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	metrics *clientMetrics
}

// New validates opts and returns a ready client.
func New(logger log.Logger, reg prometheus.Registerer, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("meraki: API key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = 5
	}
	if opts.RateLimitRetryWait <= 0 {
		opts.RateLimitRetryWait = 2 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 8
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("meraki: invalid base URL %q: %w", opts.BaseURL, err)
	}

	c := &Client{
		logger:  logger,
		opts:    opts,
		base:    base,
		sem:     semaphore.NewWeighted(opts.ConcurrencyLimit),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.ConcurrencyLimit)),
		metrics: newClientMetrics(reg, opts.HistogramBuckets),
	}

	rhc := retryablehttp.NewClient()
	rhc.HTTPClient = &http.Client{
		Transport: &instrumentedTransport{next: cleanhttp.DefaultPooledTransport(), c: c},
		Timeout:   opts.Timeout,
	}
	rhc.RetryMax = opts.MaxRetries
	rhc.RetryWaitMin = retryWaitMin
	rhc.RetryWaitMax = retryWaitMax
	rhc.CheckRetry = c.checkRetry
	rhc.Backoff = c.backoff
	rhc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rhc.Logger = nil
	c.rhc = rhc
	return c, nil
}

type ctxKey int

const (
	ctxKeyEndpoint ctxKey = iota
	ctxKeyOrg
	ctxKeyAttempts
)

// attemptCounter tracks how many attempts of one logical request have
// completed. The retry layer consults CheckRetry sequentially, so plain
// increments are safe.
type attemptCounter struct {
	n int
}

func withRequestInfo(ctx context.Context, ep endpoint, orgID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyEndpoint, ep.ID)
	ctx = context.WithValue(ctx, ctxKeyAttempts, &attemptCounter{})
	if orgID != "" {
		ctx = context.WithValue(ctx, ctxKeyOrg, orgID)
	}
	return ctx
}

func endpointFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyEndpoint).(string); ok {
		return v
	}
	return "unknown"
}

// instrumentedTransport paces requests and records per-attempt metrics,
// including attempts made by the retry layer above it.
type instrumentedTransport struct {
	next http.RoundTripper
	c    *Client
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := t.c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	ep := endpointFrom(ctx)
	code := strconv.Itoa(resp.StatusCode)
	t.c.metrics.requestsTotal.WithLabelValues(ep, req.Method, code).Inc()
	t.c.metrics.requestDuration.WithLabelValues(ep, req.Method, code).Observe(time.Since(start).Seconds())

	if orgID, ok := ctx.Value(ctxKeyOrg).(string); ok {
		if v, err := strconv.ParseFloat(resp.Header.Get("X-Rate-Limit-Remaining"), 64); err == nil {
			t.c.metrics.rateLimitRemaining.WithLabelValues(orgID).Set(v)
		}
		if v, err := strconv.ParseFloat(resp.Header.Get("X-Rate-Limit-Limit"), 64); err == nil {
			t.c.metrics.rateLimitTotal.WithLabelValues(orgID).Set(v)
		}
	}
	return resp, nil
}

// checkRetry implements the retry table: 429, 408 and 5xx retry, as do
// transport-level failures. Other statuses never retry. The retry counter
// only advances when budget remains for the retry to actually happen; the
// final CheckRetry consultation after an exhausted budget does not count.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	retry, reason := retryReason(resp, err)
	if retry {
		willRetry := true
		if att, ok := ctx.Value(ctxKeyAttempts).(*attemptCounter); ok {
			att.n++
			willRetry = att.n <= c.opts.MaxRetries
		}
		if willRetry {
			c.metrics.retryAttemptsTotal.WithLabelValues(endpointFrom(ctx), reason).Inc()
			level.Debug(c.logger).Log("msg", "retrying API request", "endpoint", endpointFrom(ctx), "reason", reason)
		}
	}
	return retry, nil
}

func retryReason(resp *http.Response, err error) (bool, string) {
	if err != nil {
		if CategoryOf(err) == CategoryTimeout {
			return true, string(CategoryTimeout)
		}
		return true, string(CategoryServerError)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, string(CategoryRateLimit)
	case resp.StatusCode == http.StatusRequestTimeout:
		return true, string(CategoryTimeout)
	case resp.StatusCode >= 500:
		return true, string(CategoryServerError)
	}
	return false, ""
}

// backoff honors Retry-After on 429 and falls back to exponential growth
// of the configured rate-limit wait; everything else gets exponential
// backoff with jitter capped at max.
func (c *Client) backoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second
			}
		}
		wait := c.opts.RateLimitRetryWait << uint(attemptNum)
		if wait > max {
			wait = max
		}
		return wait
	}
	wait := min << uint(attemptNum)
	if wait > max {
		wait = max
	}
	// Up to 25% jitter to avoid retry stampedes across workers.
	jitter := time.Duration(rand.Int63n(int64(wait)/4 + 1))
	return wait + jitter
}

// doURL performs one logical request (with retries) against an absolute
// URL and returns the response body. The semaphore spans the whole retry
// sequence so a retrying worker still counts against the cap.
func (c *Client) doURL(ctx context.Context, ep endpoint, fullURL, orgID string) ([]byte, http.Header, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	defer c.sem.Release(1)

	req, err := retryablehttp.NewRequestWithContext(withRequestInfo(ctx, ep, orgID), http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, &APIError{Endpoint: ep.ID, Category: CategoryValidation, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.rhc.Do(req)
	if err != nil {
		cat := CategoryServerError
		if CategoryOf(err) == CategoryTimeout {
			cat = CategoryTimeout
		}
		return nil, nil, &APIError{Endpoint: ep.ID, Category: cat, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &APIError{Endpoint: ep.ID, StatusCode: resp.StatusCode, Category: CategoryServerError, Message: err.Error()}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, resp.Header, nil
	}

	apiErr := &APIError{Endpoint: ep.ID, StatusCode: resp.StatusCode, Message: truncate(string(body), 200)}
	switch {
	// A 404 only means "not offered on this license" for endpoints marked
	// optional. On required endpoints it is a real client error.
	case resp.StatusCode == http.StatusNotFound && ep.Optional:
		apiErr.Category = CategoryNotAvailable
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Category = CategoryRateLimit
	case resp.StatusCode >= 500:
		apiErr.Category = CategoryServerError
	case resp.StatusCode >= 400:
		apiErr.Category = CategoryClientError
	default:
		apiErr.Category = CategoryUnknown
	}
	return nil, nil, apiErr
}

func (c *Client) do(ctx context.Context, ep endpoint, query url.Values, orgID string, pathArgs ...any) ([]byte, http.Header, error) {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + ep.path(pathArgs...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return c.doURL(ctx, ep, u.String(), orgID)
}

// getJSON fetches one object-shaped response into out.
func (c *Client) getJSON(ctx context.Context, ep endpoint, query url.Values, orgID string, out any, pathArgs ...any) error {
	body, _, err := c.do(ctx, ep, query, orgID, pathArgs...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Endpoint: ep.ID, Category: CategoryValidation, Message: err.Error()}
	}
	return nil
}

// getList fetches a single page and normalizes its shape to a list.
func (c *Client) getList(ctx context.Context, ep endpoint, query url.Values, orgID string, pathArgs ...any) ([]json.RawMessage, error) {
	body, _, err := c.do(ctx, ep, query, orgID, pathArgs...)
	if err != nil {
		return nil, err
	}
	return normalizeList(ep, body)
}

// getAllPages walks the Link-header pagination until exhausted. The result
// is atomic at the listing boundary: a failed page yields no items.
func (c *Client) getAllPages(ctx context.Context, ep endpoint, query url.Values, orgID string, pathArgs ...any) ([]json.RawMessage, error) {
	if query == nil {
		query = url.Values{}
	}
	if query.Get("perPage") == "" {
		query.Set("perPage", strconv.Itoa(defaultPerPage))
	}
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + ep.path(pathArgs...)
	u.RawQuery = query.Encode()

	var all []json.RawMessage
	next := u.String()
	for next != "" {
		body, hdr, err := c.doURL(ctx, ep, next, orgID)
		if err != nil {
			return nil, err
		}
		items, err := normalizeList(ep, body)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		next = nextPageLink(hdr.Get("Link"))
	}
	return all, nil
}

// normalizeList accepts either a bare JSON array or an object wrapping the
// list under "items". Any other shape is a validation error.
func normalizeList(ep endpoint, body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &APIError{Endpoint: ep.ID, Category: CategoryValidation, Message: "empty response body"}
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &APIError{Endpoint: ep.ID, Category: CategoryValidation, Message: err.Error()}
		}
		return items, nil
	case '{':
		var wrapper struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil || wrapper.Items == nil {
			return nil, &APIError{Endpoint: ep.ID, Category: CategoryValidation, Message: "object response without items list"}
		}
		return wrapper.Items, nil
	}
	return nil, &APIError{Endpoint: ep.ID, Category: CategoryValidation, Message: "response is neither array nor object"}
}

// nextPageLink extracts the rel=next target from a Link header, if any.
func nextPageLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(section[0]), "<>")
		for _, param := range section[1:] {
			param = strings.TrimSpace(param)
			if param == `rel=next` || param == `rel="next"` {
				return target
			}
		}
	}
	return ""
}

func decodeItems[T any](ep endpoint, items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &APIError{Endpoint: ep.ID, Category: CategoryValidation, Message: err.Error()}
		}
		out = append(out, v)
	}
	return out, nil
}

func timespanQuery(timespan time.Duration) (url.Values, error) {
	if timespan <= 0 {
		return nil, &APIError{Category: CategoryValidation, Message: fmt.Sprintf("timespan must be positive, got %s", timespan)}
	}
	q := url.Values{}
	q.Set("timespan", strconv.Itoa(int(timespan.Seconds())))
	return q, nil
}

func requireID(ep endpoint, name, id string) error {
	if id == "" {
		return &APIError{Endpoint: ep.ID, Category: CategoryValidation, Message: name + " must not be empty"}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
