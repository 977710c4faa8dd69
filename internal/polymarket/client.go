// Package polymarket provides access to the Polymarket Gamma API. The client
// asks the server to do the cheap work: only open markets with future end
// dates are requested, already ordered by deadline.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rewired-gh/polywatch/internal/logger"
	"github.com/rewired-gh/polywatch/internal/models"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, http.StatusText(e.Code))
}

// Client fetches markets from the Gamma API with retry on transient failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a Gamma API client. retryDelay is the base for linear
// backoff between attempts.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryDelay time.Duration) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// FetchMarkets retrieves open markets whose end date is at or after now,
// ordered by end date ascending. limit caps the number of markets returned
// by the server.
func (c *Client) FetchMarkets(ctx context.Context, now time.Time, limit int) ([]models.MarketRecord, error) {
	q := url.Values{}
	q.Set("closed", "false")
	q.Set("end_date_min", now.UTC().Format(time.RFC3339))
	q.Set("order", "endDate")
	q.Set("ascending", "true")
	q.Set("limit", strconv.Itoa(limit))

	resp, err := c.doRequest(ctx, c.baseURL+"/markets?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}
	defer resp.Body.Close()

	var records []models.MarketRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}

	logger.Debug("Fetched %d markets from %s", len(records), c.baseURL)
	return records, nil
}

// doRequest performs a GET with retry on transport errors and 5xx responses.
// 4xx responses are returned immediately as a StatusError.
func (c *Client) doRequest(ctx context.Context, requestURL string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
