// Package news fetches cricket articles from the GNews search API.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"cricsight/internal/domain"
)

const defaultEndpoint = "https://gnews.io/api/v4/search"

// maxResponseBody bounds how much of an API response we read.
const maxResponseBody = 4 << 20

// Article is one news article as returned by the API.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

type apiResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Content     string    `json:"content"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"source"`
	} `json:"articles"`
}

// Client talks to the GNews search API. Requests are rate limited to stay
// inside the free-tier quota.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint overrides the API endpoint. Used by tests.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit sets the request rate limit (requests per second, burst).
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient creates a GNews client.
func NewClient(apiKey string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(1), 3),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves up to maxResults cricket articles matching query.
// The query is scoped to the cricket domain before it reaches the API.
// A zero from time means no date filter.
func (c *Client) Fetch(ctx context.Context, query string, maxResults int, from time.Time) ([]Article, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapOp("news.Fetch", err)
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf("cricket AND (%s)", query))
	params.Set("apikey", c.apiKey)
	params.Set("lang", "en")
	params.Set("max", fmt.Sprintf("%d", maxResults))
	if !from.IsZero() {
		params.Set("from", from.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, domain.WrapOp("news.Fetch", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewDomainError("news.Fetch", domain.ErrNewsFetch, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.NewDomainError("news.Fetch", domain.ErrNewsFetch, err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.NewDomainError("news.Fetch", domain.ErrRateLimit, "news API rate limit")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewDomainError("news.Fetch", domain.ErrAuthInvalid, "news API key rejected")
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewDomainError("news.Fetch", domain.ErrNewsFetch,
			fmt.Sprintf("API error %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.NewDomainError("news.Fetch", domain.ErrNewsFetch, "malformed API response")
	}

	articles := make([]Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		articles = append(articles, Article{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}

	c.logger.Debug("fetched articles",
		"query", query,
		"requested", maxResults,
		"returned", len(articles),
		"total_available", payload.TotalArticles,
	)
	return articles, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
