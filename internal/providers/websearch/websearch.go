// Package websearch exposes DuckDuckGo search, suggestion and page
// extraction tools. Outbound requests are rate limited to one per second;
// responses are cached for an hour keyed by (tool, arguments). Remote
// failures degrade to a placeholder result instead of an error.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"conduit/internal/logging"
	"conduit/internal/ports"
	"conduit/internal/providers"
)

const (
	cacheSize = 256
	cacheTTL  = time.Hour

	minResults = 1
	maxResults = 10
	minLength  = 100
	maxLength  = 10000
)

// Provider is the web search tool group.
type Provider struct {
	client  *http.Client
	limiter *rateLimiter
	cache   *expirable.LRU[string, string]
	log     logging.Logger
}

// New builds the provider. A nil client uses http.DefaultClient; tests
// inject one with a fake transport.
func New(client *http.Client, log logging.Logger) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Provider{
		client:  client,
		limiter: &rateLimiter{interval: time.Second},
		cache:   expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
		log:     logging.OrNop(log),
	}
}

func (p *Provider) Name() string { return "websearch" }

func (p *Provider) Initialize(ctx context.Context) error { return nil }

func (p *Provider) Shutdown(ctx context.Context) error {
	p.cache.Purge()
	return nil
}

func (p *Provider) Tools() []ports.ToolExecutor {
	meta := ports.ToolMeta{Category: "network", Tags: []string{"web", "search"}, Timeout: 30 * time.Second}

	return []ports.ToolExecutor{
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "search_web",
				Description: "Search the web and return titles, URLs and snippets.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"query":       {Type: "string", Description: "Search query"},
						"max_results": {Type: "integer", Description: "Result count, clamped to [1,10], default 5"},
						"region":      {Type: "string", Description: "Region code, e.g. us-en"},
					},
					Required: []string{"query"},
				},
			},
			Meta: meta,
			Run:  p.searchWeb,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "extract_content",
				Description: "Fetch a page and extract its readable text.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"url":        {Type: "string", Description: "Page URL"},
						"max_length": {Type: "integer", Description: "Text length cap, clamped to [100,10000], default 2000"},
					},
					Required: []string{"url"},
				},
			},
			Meta: meta,
			Run:  p.extractContent,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "search_and_extract",
				Description: "Search the web, then extract readable text from the top results.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"query":              {Type: "string", Description: "Search query"},
						"max_results":        {Type: "integer", Description: "Result count, clamped to [1,10], default 3"},
						"max_content_length": {Type: "integer", Description: "Per-page text cap, clamped to [100,10000], default 1000"},
					},
					Required: []string{"query"},
				},
			},
			Meta: meta,
			Run:  p.searchAndExtract,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "get_search_suggestions",
				Description: "Fetch query completions for a search prefix.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"query":           {Type: "string", Description: "Query prefix"},
						"max_suggestions": {Type: "integer", Description: "Suggestion count, clamped to [1,10], default 5"},
					},
					Required: []string{"query"},
				},
			},
			Meta: meta,
			Run:  p.getSuggestions,
		},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// cacheKey canonicalizes (tool, arguments). json.Marshal sorts map keys.
func cacheKey(tool string, args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return tool
	}
	return tool + ":" + string(data)
}

// cached runs fetch through the cache: hits skip both the network and the
// rate limiter.
func (p *Provider) cached(ctx context.Context, tool string, args map[string]any, fetch func() (string, error)) (string, bool, error) {
	key := cacheKey(tool, args)
	if text, ok := p.cache.Get(key); ok {
		p.log.Debug("cache hit: %s", key)
		return text, true, nil
	}
	if err := p.limiter.wait(ctx); err != nil {
		return "", false, err
	}
	text, err := fetch()
	if err != nil {
		return "", false, err
	}
	p.cache.Add(key, text)
	return text, false, nil
}

func (p *Provider) searchWeb(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	query := providers.StringArg(call, "query")
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	count := clamp(providers.IntArg(call, "max_results", 5), minResults, maxResults)
	region := providers.StringArg(call, "region")
	args := map[string]any{"query": query, "max_results": count, "region": region}

	text, hit, err := p.cached(ctx, "search_web", args, func() (string, error) {
		results, fetchErr := p.fetchSearch(ctx, query, region, count)
		if fetchErr != nil {
			return "", fetchErr
		}
		return formatSearchResults(query, results), nil
	})
	if err != nil {
		p.log.Warn("search failed, degrading to placeholder: %v", err)
		return p.mockResult(call, query, err), nil
	}
	result := providers.Text(call, text)
	result.Metadata = map[string]any{"query": query, "cached": hit, "fetched_at": time.Now().UTC().Format(time.RFC3339)}
	return result, nil
}

func (p *Provider) extractContent(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	url := providers.StringArg(call, "url")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must be http or https")
	}
	length := clamp(providers.IntArg(call, "max_length", 2000), minLength, maxLength)
	args := map[string]any{"url": url, "max_length": length}

	text, hit, err := p.cached(ctx, "extract_content", args, func() (string, error) {
		page, fetchErr := p.fetchPage(ctx, url, length)
		if fetchErr != nil {
			return "", fetchErr
		}
		return fmt.Sprintf("Title: %s\n\n%s", page.Title, page.Text), nil
	})
	if err != nil {
		p.log.Warn("extraction failed, degrading to placeholder: %v", err)
		return p.mockResult(call, url, err), nil
	}
	result := providers.Text(call, text)
	result.Metadata = map[string]any{"url": url, "cached": hit, "fetched_at": time.Now().UTC().Format(time.RFC3339)}
	return result, nil
}

func (p *Provider) searchAndExtract(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	query := providers.StringArg(call, "query")
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	count := clamp(providers.IntArg(call, "max_results", 3), minResults, maxResults)
	length := clamp(providers.IntArg(call, "max_content_length", 1000), minLength, maxLength)
	args := map[string]any{"query": query, "max_results": count, "max_content_length": length}

	text, hit, err := p.cached(ctx, "search_and_extract", args, func() (string, error) {
		results, fetchErr := p.fetchSearch(ctx, query, "", count)
		if fetchErr != nil {
			return "", fetchErr
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Results for %q with extracted content:\n", query)
		for i, r := range results {
			fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.Title, r.URL)
			if err := p.limiter.wait(ctx); err != nil {
				return "", err
			}
			page, pageErr := p.fetchPage(ctx, r.URL, length)
			if pageErr != nil {
				fmt.Fprintf(&b, "   (content unavailable: %v)\n", pageErr)
				continue
			}
			fmt.Fprintf(&b, "   %s\n", page.Text)
		}
		return b.String(), nil
	})
	if err != nil {
		p.log.Warn("search+extract failed, degrading to placeholder: %v", err)
		return p.mockResult(call, query, err), nil
	}
	result := providers.Text(call, text)
	result.Metadata = map[string]any{"query": query, "cached": hit, "fetched_at": time.Now().UTC().Format(time.RFC3339)}
	return result, nil
}

func (p *Provider) getSuggestions(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	query := providers.StringArg(call, "query")
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	count := clamp(providers.IntArg(call, "max_suggestions", 5), minResults, maxResults)
	args := map[string]any{"query": query, "max_suggestions": count}

	text, hit, err := p.cached(ctx, "get_search_suggestions", args, func() (string, error) {
		suggestions, fetchErr := p.fetchSuggestions(ctx, query, count)
		if fetchErr != nil {
			return "", fetchErr
		}
		if len(suggestions) == 0 {
			return fmt.Sprintf("no suggestions for %q", query), nil
		}
		return fmt.Sprintf("suggestions for %q:\n- %s", query, strings.Join(suggestions, "\n- ")), nil
	})
	if err != nil {
		p.log.Warn("suggestions failed, degrading to placeholder: %v", err)
		return p.mockResult(call, query, err), nil
	}
	result := providers.Text(call, text)
	result.Metadata = map[string]any{"query": query, "cached": hit, "fetched_at": time.Now().UTC().Format(time.RFC3339)}
	return result, nil
}

// mockResult is the degraded outcome for remote failures: a partial result
// carrying the query and an explanatory note.
func (p *Provider) mockResult(call ports.ToolCall, subject string, cause error) *ports.ToolResult {
	text := fmt.Sprintf("search service unavailable for %q; returning placeholder result\nnote: %v", subject, cause)
	return &ports.ToolResult{
		CallID:   call.ID,
		Kind:     ports.ResultPartial,
		Content:  text,
		Message:  "degraded: remote endpoint unavailable",
		Metadata: map[string]any{"mock": true, "subject": subject},
	}
}

// rateLimiter spaces outbound requests one interval apart.
type rateLimiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	next := r.last.Add(r.interval)
	if !next.After(now) {
		r.last = now
		r.mu.Unlock()
		return nil
	}
	r.last = next
	r.mu.Unlock()
	select {
	case <-time.After(next.Sub(now)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
