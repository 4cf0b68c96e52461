// Package serpapi implements the web search port with the SerpAPI Bing engine.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/Exec/internal/port/tool"
	"github.com/Strob0t/Exec/internal/resilience"
)

// DefaultURL is the SerpAPI search endpoint.
const DefaultURL = "https://serpapi.com/search"

// Client queries SerpAPI.
type Client struct {
	baseURL    string
	apiKey     string
	country    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

var _ tool.Searcher = (*Client)(nil)

// NewClient creates a search client. country is the Bing market code, e.g. "US".
func NewClient(baseURL, apiKey, country string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		country: country,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type searchResponse struct {
	Error          string              `json:"error"`
	OrganicResults []tool.SearchResult `json:"organic_results"`
}

// Search returns the organic results for query in ranking order.
func (c *Client) Search(ctx context.Context, query string) ([]tool.SearchResult, error) {
	if c.apiKey == "" {
		return nil, errors.New("serpapi: api key is not configured")
	}
	params := url.Values{
		"engine":  {"bing"},
		"q":       {query},
		"cc":      {c.country},
		"api_key": {c.apiKey},
	}

	data, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal search results: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("search %q: serpapi: %s", query, resp.Error)
	}
	return resp.OrganicResults, nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	var result []byte
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// *url.Error carries the request URL, and with it the api key.
			var ue *url.Error
			if errors.As(err, &ue) {
				return fmt.Errorf("http request: %s %s: %w", ue.Op, c.baseURL, ue.Err)
			}
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("serpapi error %d: %s", resp.StatusCode, c.redact(string(data)))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.ExecuteContext(ctx, call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) redact(s string) string {
	return strings.ReplaceAll(s, c.apiKey, "[redacted]")
}
