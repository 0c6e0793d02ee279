package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quicktask/backend/internal/cache"
	"quicktask/backend/internal/config"
)

var ErrDisabled = errors.New("analytics service not configured")

type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("analytics service returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("analytics service returned %d", e.StatusCode)
}

type DailyCompletion struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
}

type Productivity struct {
	Period                   string            `json:"period"`
	TotalCompleted           int               `json:"totalCompleted"`
	AverageCompletionsPerDay float64           `json:"averageCompletionsPerDay"`
	DailyData                []DailyCompletion `json:"dailyData"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *CircuitBreaker
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// NewClient returns a client for the analytics service. An empty base URL
// yields a client whose calls all fail with ErrDisabled. c may be nil.
func NewClient(cfg config.AnalyticsConfig, c cache.Cache, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker(&CircuitBreakerConfig{
			MaxFailures:      cfg.MaxFailures,
			ResetTimeout:     cfg.ResetTimeout,
			HalfOpenMaxCalls: 1,
			IsFailure:        countsAsFailure,
		}),
		cache:    c,
		cacheTTL: cfg.CacheTTL,
		logger:   logger.With().Str("component", "analytics").Logger(),
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

func ProductivityCacheKey(userID string, days int) string {
	return fmt.Sprintf("analytics:productivity:%s:%d", userID, days)
}

// ProductivityCachePattern matches every cached productivity window for a
// user.
func ProductivityCachePattern(userID string) string {
	return "analytics:productivity:" + userID + ":*"
}

func (c *Client) Productivity(ctx context.Context, userID string, days int) (*Productivity, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if days <= 0 {
		days = 30
	}

	cacheKey := ProductivityCacheKey(userID, days)
	var result Productivity
	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Get(ctx, cacheKey, &result); err == nil {
			return &result, nil
		}
	}

	query := url.Values{"days": []string{strconv.Itoa(days)}}
	if err := c.getJSON(ctx, "/productivity/"+url.PathEscape(userID), query, &result); err != nil {
		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, cacheKey, result, c.cacheTTL); err != nil {
			c.logger.Debug().Err(err).Msg("failed to cache productivity")
		}
	}
	return &result, nil
}

func (c *Client) Health(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/health", nil, &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("analytics service reported status %q", body.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	start := time.Now()
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode analytics response: %w", err)
		}
		return nil
	})

	event := c.logger.Debug()
	if err != nil {
		event = c.logger.Warn().Err(err).Str("breaker", c.breaker.GetState().String())
	}
	event.Str("path", path).Dur("latency", time.Since(start)).Msg("analytics request")

	return err
}

func readDetail(body io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	if json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}

// countsAsFailure keeps client mistakes and caller cancellation from
// tripping the breaker.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}
