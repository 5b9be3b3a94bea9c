// Package provider is the HTTP client for the external economic-calendar
// data provider.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// RawEvent is a provider event record as returned by the calendar API.
// The date carries an explicit UTC offset; it is normalized at ingestion.
type RawEvent struct {
	Title    string `json:"title"`
	Country  string `json:"country"`
	Date     string `json:"date"`
	Impact   string `json:"impact"`
	Forecast string `json:"forecast"`
	Previous string `json:"previous"`
	Actual   string `json:"actual"`
}

// Client fetches calendar events from the provider. Requests are rate
// limited across markets so a multi-market ingestion run stays polite.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a provider client for the given base URL.
// Transient HTTP failures are retried by the client itself; a persistently
// failing fetch surfaces as an error for the ingestion cycle to log.
func NewClient(baseURL string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second)

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// FetchRange returns the provider's events for a market between from and to
// (inclusive day range).
func (c *Client) FetchRange(ctx context.Context, market string, from, to time.Time) ([]RawEvent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result []RawEvent
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"market": market,
			"from":   from.Format("2006-01-02"),
			"to":     to.Format("2006-01-02"),
		}).
		SetResult(&result).
		Get("/calendar")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar for market %s: %w", market, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("calendar fetch for market %s returned status %d: %s",
			market, resp.StatusCode(), resp.String())
	}

	return result, nil
}
