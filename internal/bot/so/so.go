// Package so is a thin client for the Stack Exchange search API, serving
// the legacy @so text command.
package so

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"

	"github.com/aldenlin/celebmatch-linebot-go/internal/config"
	apperrors "github.com/aldenlin/celebmatch-linebot-go/internal/errors"
	"github.com/aldenlin/celebmatch-linebot-go/internal/metrics"
	"github.com/aldenlin/celebmatch-linebot-go/internal/retry"
)

const defaultBaseURL = "https://api.stackexchange.com/2.3"

// Result is one question from a search response.
type Result struct {
	Title      string
	Link       string
	Score      int
	IsAnswered bool
}

// Config configures the search client.
type Config struct {
	// BaseURL overrides the API root; tests point it at a local server.
	BaseURL string

	// APIKey raises the daily request quota. Optional; requests work
	// without one at the anonymous quota.
	APIKey string

	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client queries the Stack Exchange advanced search endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// New creates a search client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.SearchRequest}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
	}
}

type searchResponse struct {
	Items []struct {
		Title      string `json:"title"`
		Link       string `json:"link"`
		Score      int    `json:"score"`
		IsAnswered bool   `json:"is_answered"`
	} `json:"items"`
}

// Search runs an advanced search against the stackoverflow site, ordered
// by relevance. Titles come back HTML-escaped from the API and are
// unescaped here.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("order", "desc")
	params.Set("sort", "relevance")
	params.Set("q", query)
	params.Set("site", "stackoverflow")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	reqURL := c.baseURL + "/search/advanced?" + params.Encode()

	var results []Result
	start := time.Now()
	err := retry.WithBackoff(ctx, 2, 500*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apperrors.NewExternalError("stackoverflow", apperrors.KindNetwork, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := apperrors.NewExternalError("stackoverflow", statusKind(resp.StatusCode),
				fmt.Errorf("search returned status %d", resp.StatusCode))
			if !apperrors.IsRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}

		var parsed searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return retry.Permanent(apperrors.NewExternalError("stackoverflow", apperrors.KindMalformed, err))
		}

		results = results[:0]
		for _, item := range parsed.Items {
			results = append(results, Result{
				Title:      html.UnescapeString(item.Title),
				Link:       item.Link,
				Score:      item.Score,
				IsAnswered: item.IsAnswered,
			})
		}
		return nil
	})

	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordExternalCall("stackoverflow", status, time.Since(start).Seconds())
	}

	if err != nil {
		return nil, err
	}
	return results, nil
}

func statusKind(code int) apperrors.FailureKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.KindAuth
	case code == http.StatusTooManyRequests:
		return apperrors.KindQuota
	case code >= 500:
		return apperrors.KindNetwork
	default:
		return apperrors.KindMalformed
	}
}
