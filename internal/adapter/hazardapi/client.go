// Package hazardapi fetches reference points from the upstream
// hazard-monitoring collection endpoint. The upstream is paginated,
// unreliable, and rate-limited; this package owns the retry, backoff, and
// circuit-breaking policy so callers see a best-effort point sequence.
package hazardapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-reference-service/internal/domain"
	"github.com/couchcryptid/hazard-reference-service/internal/observability"
)

const (
	// pageSize matches the fixed page length the upstream serves.
	pageSize = 10

	// politenessDelay spaces out successive page requests.
	politenessDelay = time.Second

	// breakerThreshold aborts the sweep after this many consecutive pages
	// exhaust their retry budgets.
	breakerThreshold = 10
)

// Client pages through the upstream reference point endpoint.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
	retry          retryPolicy
	clock          clockwork.Clock
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewClient creates an upstream client. requestTimeout bounds each page
// request; sweeps as a whole are unbounded and stop via pagination
// exhaustion or the circuit breaker.
func NewClient(baseURL string, requestTimeout time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{},
		requestTimeout: requestTimeout,
		retry:          defaultRetryPolicy(),
		clock:          clock,
		logger:         logger,
		metrics:        metrics,
	}
}

// FetchAll sweeps the upstream endpoint page by page and returns every point
// it could collect. Individual page failures are absorbed: a page that
// exhausts its retry budget is skipped, and after ten consecutive page
// failures the breaker aborts the sweep and returns the accumulated prefix.
// The only error FetchAll returns is context cancellation.
func (c *Client) FetchAll(ctx context.Context) ([]domain.ReferencePoint, error) {
	start := c.clock.Now()
	var points []domain.ReferencePoint
	consecutiveFailures := 0

	for offset := 0; ; offset += pageSize {
		page, err := c.fetchPageWithRetry(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return points, ctx.Err()
			}
			consecutiveFailures++
			c.metrics.PageFailures.Inc()
			c.logger.Warn("page abandoned after retries",
				"offset", offset, "consecutive_failures", consecutiveFailures, "error", err)
			if consecutiveFailures >= breakerThreshold {
				c.metrics.BreakerTrips.Inc()
				c.logger.Error("circuit breaker tripped, aborting sweep",
					"failed_pages", consecutiveFailures, "points_collected", len(points))
				break
			}
			continue
		}
		consecutiveFailures = 0

		if len(page) == 0 {
			break
		}
		points = append(points, page...)
		c.metrics.PagesFetched.Inc()

		if !c.sleep(ctx, politenessDelay) {
			return points, ctx.Err()
		}
	}

	c.metrics.SweepDuration.Observe(c.clock.Since(start).Seconds())
	c.logger.Info("upstream sweep complete", "points", len(points))
	return points, nil
}

// fetchPageWithRetry runs one page through the retry policy.
func (c *Client) fetchPageWithRetry(ctx context.Context, offset int) ([]domain.ReferencePoint, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.maxAttempts; attempt++ {
		page, err := c.fetchPage(ctx, offset)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		class := c.retry.classify(err)
		c.logger.Warn("page fetch failed",
			"offset", offset, "attempt", attempt, "class", class.String(), "error", err)
		if attempt == c.retry.maxAttempts {
			break
		}
		c.metrics.PageRetries.WithLabelValues(class.String()).Inc()
		if !c.sleep(ctx, c.retry.delay(class, attempt)) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// fetchPage issues one GET for the page at the given skip offset. A non-array
// payload signals pagination exhaustion and decodes to an empty page.
func (c *Client) fetchPage(ctx context.Context, offset int) ([]domain.ReferencePoint, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("skip", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page at skip=%d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read page body: %w", err)
	}

	var raws []rawPoint
	if err := json.Unmarshal(body, &raws); err != nil {
		c.logger.Debug("non-sequence payload, treating as end of data", "offset", offset)
		return nil, nil
	}

	points := make([]domain.ReferencePoint, 0, len(raws))
	for _, r := range raws {
		points = append(points, r.toDomain())
	}
	return points, nil
}

// sleep waits d on the injected clock, returning false if the context ended
// first.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
