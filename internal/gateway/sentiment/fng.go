// Package sentiment fetches the alternative.me crypto fear & greed index.
// The reading goes into the decision prompt and tilts how aggressively a
// buy or sell is sized.
package sentiment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://api.alternative.me/fng/"

// historyDays is the lookback behind the average and trend reading.
const historyDays = 7

// Index is one fear & greed reading. Value runs 0 (extreme fear) to 100
// (extreme greed).
type Index struct {
	Value          int
	Classification string
	Average        float64
	Trend          string
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Fetch returns the latest reading plus a trailing average and whether the
// index sits above it. The endpoint is keyless; callers treat failures as
// a missing input, never as a cycle failure.
func (c *Client) Fetch(ctx context.Context) (Index, error) {
	url := fmt.Sprintf("%s?limit=%d", c.baseURL, historyDays)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Index{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Index{}, fmt.Errorf("fear/greed fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Index{}, fmt.Errorf("fear/greed fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Index{}, fmt.Errorf("fear/greed read: %w", err)
	}

	items := gjson.GetBytes(body, "data").Array()
	if len(items) == 0 {
		return Index{}, fmt.Errorf("fear/greed response carries no data points")
	}
	out := Index{
		Value:          int(items[0].Get("value").Int()),
		Classification: items[0].Get("value_classification").String(),
	}
	var sum float64
	for _, item := range items {
		sum += float64(item.Get("value").Int())
	}
	out.Average = sum / float64(len(items))
	out.Trend = "deteriorating"
	if float64(out.Value) > out.Average {
		out.Trend = "improving"
	}
	return out, nil
}
