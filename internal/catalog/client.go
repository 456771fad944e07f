package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/seoul-reads/bookfinder/internal/config"
	"github.com/seoul-reads/bookfinder/internal/logger"
	"github.com/seoul-reads/bookfinder/internal/metrics"
	"github.com/seoul-reads/bookfinder/internal/models"
)

const (
	endpointSearch       = "srchBooks"
	endpointLibraries    = "libSrchByBook"
	endpointAvailability = "bookExist"

	// the catalog is asked for a page of 5 but only the top 3 are used
	searchPageSize   = 5
	maxSearchResults = 3
)

var (
	// ErrUpstreamUnavailable is returned while the breaker for an endpoint is open
	ErrUpstreamUnavailable = errors.New("catalog upstream unavailable")

	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Client talks to the data4library.kr catalog and holdings API
type Client struct {
	cfg      config.UpstreamConfig
	conn     *resty.Client
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a catalog client with one circuit breaker per endpoint
func NewClient(cfg config.UpstreamConfig) *Client {
	conn := resty.New().
		SetTransport(&http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     30 * time.Second,
		}).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")

	c := &Client{
		cfg:      cfg,
		conn:     conn,
		breakers: make(map[string]*gobreaker.CircuitBreaker, 3),
	}
	for _, endpoint := range []string{endpointSearch, endpointLibraries, endpointAvailability} {
		c.breakers[endpoint] = newBreaker(endpoint, cfg.BreakerMaxFailures, cfg.BreakerCooldown)
	}
	return c
}

func newBreaker(name string, maxFailures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		// a caller that went away says nothing about the upstream
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Catalog breaker state changed", "endpoint", name, "from", from.String(), "to", to.String())
		},
	})
}

// SearchBooks looks up books by title or keyword and returns at most three matches in
// upstream order. Markup and malformed payloads yield no result and no error.
func (c *Client) SearchBooks(ctx context.Context, query string, field models.MatchField, byPopularity bool) ([]models.BookMetadata, error) {
	params := map[string]string{
		"pageNo":      "1",
		"pageSize":    strconv.Itoa(searchPageSize),
		"format":      "json",
		"exactMatch":  "N",
		string(field): query,
	}
	if byPopularity {
		params["sort"] = "loan"
	}

	body, err := c.get(ctx, endpointSearch, c.cfg.SearchTimeout, params)
	if err != nil {
		return nil, err
	}

	var env searchEnvelope
	if !decode(ctx, endpointSearch, body, &env) {
		return nil, nil
	}
	if env.Response.Error != "" {
		upstreamError(ctx, endpointSearch, env.Response.Error)
		return nil, nil
	}

	docs := env.Response.Docs
	if len(docs) > maxSearchResults {
		docs = docs[:maxSearchResults]
	}
	books := make([]models.BookMetadata, 0, len(docs))
	for _, d := range docs {
		books = append(books, d.Doc.toMetadata())
	}
	observe(endpointSearch, len(books))
	return books, nil
}

// LibrariesOwning lists up to limit libraries in the district holding the given ISBN
func (c *Client) LibrariesOwning(ctx context.Context, isbn, district string, limit int) ([]models.Library, error) {
	params := map[string]string{
		"isbn":       isbn,
		"region":     c.cfg.Region,
		"dtl_region": district,
		"pageSize":   strconv.Itoa(limit),
		"format":     "json",
	}

	body, err := c.get(ctx, endpointLibraries, c.cfg.LibraryTimeout, params)
	if err != nil {
		return nil, err
	}

	var env librariesEnvelope
	if !decode(ctx, endpointLibraries, body, &env) {
		return nil, nil
	}
	if env.Response.Error != "" {
		upstreamError(ctx, endpointLibraries, env.Response.Error)
		return nil, nil
	}

	libs := env.Response.Libs
	if limit > 0 && len(libs) > limit {
		libs = libs[:limit]
	}
	out := make([]models.Library, 0, len(libs))
	for _, l := range libs {
		out = append(out, models.Library{Code: string(l.Lib.LibCode), Name: l.Lib.LibName})
	}
	observe(endpointLibraries, len(out))
	return out, nil
}

// CheckAvailability reports whether a copy of isbn can be borrowed at libCode right now.
// Transport failures are returned as errors; unreadable payloads report false.
func (c *Client) CheckAvailability(ctx context.Context, libCode, isbn string) (bool, error) {
	params := map[string]string{
		"libCode": libCode,
		"isbn13":  isbn,
		"format":  "json",
	}

	body, err := c.get(ctx, endpointAvailability, c.cfg.AvailabilityTimeout, params)
	if err != nil {
		return false, err
	}

	var env availabilityEnvelope
	if !decode(ctx, endpointAvailability, body, &env) {
		return false, nil
	}
	if env.Response.Error != "" {
		upstreamError(ctx, endpointAvailability, env.Response.Error)
		return false, nil
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpointAvailability, metrics.OutcomeOK).Inc()
	return env.Response.Result.LoanAvailable == "Y", nil
}

// get issues one bounded GET through the endpoint's breaker and returns the raw body
func (c *Client) get(ctx context.Context, endpoint string, timeout time.Duration, params map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	result, err := c.breakers[endpoint].Execute(func() (interface{}, error) {
		resp, err := c.conn.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetQueryParam("authKey", c.cfg.APIKey).
			Get("/" + endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to call %s: %w", endpoint, stripURL(err))
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("%s returned %d: %w", endpoint, resp.StatusCode(), ErrUnexpectedStatus)
		}
		return resp.Body(), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.OutcomeOpen).Inc()
			return nil, fmt.Errorf("%s: %w", endpoint, ErrUpstreamUnavailable)
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.OutcomeError).Inc()
		return nil, err
	}

	body, _ := result.([]byte)
	logger.For(ctx).Debug("Catalog response", "endpoint", endpoint, "body", excerpt(body, 150))
	return body, nil
}

// stripURL drops the request URL from transport errors since its query carries the API key
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func observe(endpoint string, n int) {
	outcome := metrics.OutcomeOK
	if n == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

func upstreamError(ctx context.Context, endpoint, message string) {
	logger.For(ctx).Error("Catalog API reported an error", "endpoint", endpoint, "error", message)
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.OutcomeError).Inc()
}
