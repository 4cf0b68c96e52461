package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/Exec/internal/port/cache"
	"github.com/Strob0t/Exec/internal/port/tool"
)

// ToolService runs the web lookups personas may request and renders their
// results as markdown. Results are cached when a cache is configured.
type ToolService struct {
	searcher tool.Searcher
	fetcher  tool.Fetcher
	cache    cache.Cache
	ttl      time.Duration
}

// NewToolService creates a ToolService. c may be nil.
func NewToolService(searcher tool.Searcher, fetcher tool.Fetcher, c cache.Cache, ttl time.Duration) *ToolService {
	return &ToolService{searcher: searcher, fetcher: fetcher, cache: c, ttl: ttl}
}

// Search runs a web search and formats the ranked hits.
func (s *ToolService) Search(ctx context.Context, query string) (string, error) {
	return s.cached(ctx, "search:"+query, func() (string, error) {
		results, err := s.searcher.Search(ctx, query)
		if err != nil {
			return "", fmt.Errorf("search web: %w", err)
		}
		return FormatSearchResults(query, results), nil
	})
}

// Fetch retrieves a page as markdown text.
func (s *ToolService) Fetch(ctx context.Context, url string) (string, error) {
	return s.cached(ctx, "fetch:"+url, func() (string, error) {
		text, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			return "", fmt.Errorf("access url: %w", err)
		}
		return text, nil
	})
}

func (s *ToolService) cached(ctx context.Context, key string, load func() (string, error)) (string, error) {
	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return string(b), nil
		}
	}

	out, err := load()
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(out), s.ttl); err != nil {
			slog.WarnContext(ctx, "tool cache set failed", "key", key, "error", err)
		}
	}
	return out, nil
}

// FormatSearchResults renders search hits as a numbered markdown list under a
// header naming the query.
func FormatSearchResults(query string, results []tool.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Website results for the query: %s\n\n", query)
	if len(results) == 0 {
		b.WriteString("No results.\n")
		return b.String()
	}
	for i, r := range results {
		pos := r.Position
		if pos == 0 {
			pos = i + 1
		}
		fmt.Fprintf(&b, "%d. [%s](%s)", pos, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&b, " - %s", r.Snippet)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
