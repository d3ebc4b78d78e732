// Package oracle talks to the external AI judgment service through an
// OpenAI-compatible chat completions API.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voyant/internal/logger"
)

// Image is an optional vision attachment, already encoded as a data URI.
type Image struct {
	DataURI     string
	Description string
}

// Request is one inference call. ExpectJSON asks the API for a JSON-object
// response format where the backend supports it.
type Request struct {
	System     string
	User       string
	Images     []Image
	ExpectJSON bool
	MaxTokens  int
}

// Client is a minimal chat-completions client with bounded 429/5xx retry.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int

	httpClient *http.Client
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration, maxRetries int) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		Timeout:    timeout,
		MaxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Infer sends the request and returns the raw assistant text. Transport and
// rate-limit failures are retried with backoff; the caller owns parsing and
// validation of the content.
func (c *Client) Infer(ctx context.Context, req Request) (string, error) {
	url := endpointURL(c.BaseURL)
	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return "", err
	}
	logger.DumpLLM("request", string(body))

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			if attempt == c.MaxRetries {
				break
			}
			wait := (800 * time.Millisecond) << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			continue
		}
		if resp.StatusCode/100 == 2 {
			var parsed struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&parsed)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			if len(parsed.Choices) == 0 {
				return "", fmt.Errorf("oracle returned empty choices")
			}
			content := parsed.Choices[0].Message.Content
			logger.DumpLLM("response", content)
			return content, nil
		}
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("oracle status=%d: %s", resp.StatusCode, msg)
		if !retryableStatus(resp.StatusCode) || attempt == c.MaxRetries {
			break
		}
		wait := retryAfter(resp.Header.Get("Retry-After"))
		if wait == 0 {
			wait = (800 * time.Millisecond) << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", lastErr
}

func (c *Client) buildPayload(req Request) map[string]any {
	messages := make([]map[string]any, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	if len(req.Images) == 0 {
		messages = append(messages, map[string]any{"role": "user", "content": req.User})
	} else {
		parts := []map[string]any{{"type": "text", "text": req.User}}
		for _, img := range req.Images {
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": img.DataURI},
			})
		}
		messages = append(messages, map[string]any{"role": "user", "content": parts})
	}
	payload := map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": 0.5,
	}
	if req.ExpectJSON {
		payload["response_format"] = map[string]any{"type": "json_object"}
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	return payload
}

func endpointURL(base string) string {
	url := strings.TrimRight(strings.TrimSpace(base), "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
