// Package tool defines the ports for external lookups available to personas.
package tool

import "context"

// SearchResult is one organic web search hit.
type SearchResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Fetcher retrieves a URL and returns its content as plain text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
