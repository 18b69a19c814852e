package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 10 << 20

// APIError reports a non-200 response from an upstream API
type APIError struct {
	URL        string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client is the HTTP client shared by the collectors. Requests pass through
// a rate limiter and a circuit breaker; 5xx responses and transport errors
// count against the breaker, 4xx responses do not.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewClient builds a collector HTTP client. rps limits requests per second
// across all collectors sharing the client.
func NewClient(timeout time.Duration, rps float64, burst int, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 5
	}

	settings := gobreaker.Settings{Name: "collectors"}
	settings.Timeout = 30 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

type httpResult struct {
	status int
	body   []byte
}

// Get issues a rate-limited GET and returns the response body. A non-200
// status yields *APIError.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &APIError{URL: url, StatusCode: resp.StatusCode}
		}
		return httpResult{status: resp.StatusCode, body: body}, nil
	})

	if err != nil {
		c.logger.Debug().Str("url", url).Dur("duration", time.Since(start)).Err(err).Msg("request failed")
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	res := out.(httpResult)
	c.logger.Debug().Str("url", url).Int("status", res.status).Dur("duration", time.Since(start)).Msg("request completed")

	if res.status != http.StatusOK {
		return nil, &APIError{URL: url, StatusCode: res.status}
	}
	return res.body, nil
}

// GetJSON issues a GET and decodes the JSON response into dest
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, dest any) error {
	body, err := c.Get(ctx, url, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}
