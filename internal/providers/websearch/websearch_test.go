package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"conduit/internal/ports"
)

const searchHTML = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F">The Go Programming Language</a>
  <div class="result__snippet">Build simple, secure, scalable systems.</div>
</div>
<div class="result">
  <a class="result__a" href="https://go.dev/doc/">Documentation</a>
  <div class="result__snippet">Learn how to use Go.</div>
</div>
<div class="result">
  <a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
  <div class="result__snippet">News from the Go project.</div>
</div>
</body></html>`

const pageHTML = `<html><head><title>Sample Page</title></head><body>
<script>var tracked = true;</script>
<nav>Home About</nav>
<article><p>First paragraph of the article.</p><p>Second paragraph with details.</p></article>
<footer>Copyright</footer>
</body></html>`

// fakeTransport answers scripted bodies keyed by URL substring.
type fakeTransport struct {
	calls     int
	responses map[string]string
	err       error
}

func (t *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	for substr, body := range t.responses {
		if strings.Contains(req.URL.String(), substr) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(body)),
				Header:     make(http.Header),
				Request:    req,
			}, nil
		}
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func newTestProvider(t *fakeTransport) *Provider {
	return New(&http.Client{Transport: t}, nil)
}

func call(t *testing.T, p *Provider, name string, args map[string]any) (*ports.ToolResult, error) {
	t.Helper()
	for _, tool := range p.Tools() {
		if tool.Definition().Name == name {
			return tool.Execute(context.Background(), ports.ToolCall{ID: "c1", Name: name, Arguments: args})
		}
	}
	t.Fatalf("tool %s not declared", name)
	return nil, nil
}

func TestSearchWebParsesResults(t *testing.T) {
	transport := &fakeTransport{responses: map[string]string{"html.duckduckgo.com": searchHTML}}
	p := newTestProvider(transport)

	result, err := call(t, p, "search_web", map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(result.Content, "The Go Programming Language") {
		t.Fatalf("title missing:\n%s", result.Content)
	}
	// Redirect links are unwrapped.
	if !strings.Contains(result.Content, "https://go.dev/") {
		t.Fatalf("redirect URL not unwrapped:\n%s", result.Content)
	}
	if strings.Contains(result.Content, "uddg=") {
		t.Fatalf("raw redirect leaked:\n%s", result.Content)
	}
}

func TestSearchWebCacheSkipsNetworkAndLimiter(t *testing.T) {
	transport := &fakeTransport{responses: map[string]string{"html.duckduckgo.com": searchHTML}}
	p := newTestProvider(transport)

	first, err := call(t, p, "search_web", map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	start := time.Now()
	second, err := call(t, p, "search_web", map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("cached search failed: %v", err)
	}
	if transport.calls != 1 {
		t.Fatalf("expected one network call, got %d", transport.calls)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("cache hit waited on the rate limiter (%s)", elapsed)
	}
	if second.Content != first.Content {
		t.Fatalf("cache returned different content")
	}
	if cached, _ := second.Metadata["cached"].(bool); !cached {
		t.Fatalf("second result not marked cached")
	}
}

func TestSearchWebClampsMaxResults(t *testing.T) {
	transport := &fakeTransport{responses: map[string]string{"html.duckduckgo.com": searchHTML}}
	p := newTestProvider(transport)

	result, err := call(t, p, "search_web", map[string]any{"query": "golang", "max_results": 0})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(result.Content, "(1)") {
		t.Fatalf("max_results=0 should clamp to 1:\n%s", result.Content)
	}
	if strings.Contains(result.Content, "Documentation") {
		t.Fatalf("more than one result returned:\n%s", result.Content)
	}
}

func TestSearchWebDegradesToMock(t *testing.T) {
	transport := &fakeTransport{err: fmt.Errorf("connection refused")}
	p := newTestProvider(transport)

	result, err := call(t, p, "search_web", map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("degraded search must not error: %v", err)
	}
	if result.Kind != ports.ResultPartial {
		t.Fatalf("expected partial kind, got %s", result.Kind)
	}
	if !strings.Contains(result.Content, "golang") || !strings.Contains(result.Content, "placeholder") {
		t.Fatalf("mock result missing query or note:\n%s", result.Content)
	}
	if mock, _ := result.Metadata["mock"].(bool); !mock {
		t.Fatalf("mock flag missing")
	}
}

func TestExtractContent(t *testing.T) {
	transport := &fakeTransport{responses: map[string]string{"example.com/article": pageHTML}}
	p := newTestProvider(transport)

	result, err := call(t, p, "extract_content", map[string]any{"url": "https://example.com/article"})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.Contains(result.Content, "Title: Sample Page") {
		t.Fatalf("title missing:\n%s", result.Content)
	}
	if !strings.Contains(result.Content, "First paragraph of the article.") {
		t.Fatalf("article text missing:\n%s", result.Content)
	}
	if strings.Contains(result.Content, "tracked") || strings.Contains(result.Content, "Copyright") {
		t.Fatalf("script/footer text leaked:\n%s", result.Content)
	}
}

func TestExtractContentTruncates(t *testing.T) {
	long := "<html><head><title>T</title></head><body><p>" + strings.Repeat("word ", 500) + "</p></body></html>"
	transport := &fakeTransport{responses: map[string]string{"example.com/long": long}}
	p := newTestProvider(transport)

	result, err := call(t, p, "extract_content", map[string]any{"url": "https://example.com/long", "max_length": 100})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.HasSuffix(result.Content, "...") {
		t.Fatalf("expected truncation marker:\n%s", result.Content)
	}

	if _, err := call(t, p, "extract_content", map[string]any{"url": "ftp://example.com/x"}); err == nil {
		t.Fatalf("non-http url must be rejected")
	}
}

func TestGetSearchSuggestions(t *testing.T) {
	payload := `["gol",["golang","golang tutorial","golang testing","gold price"]]`
	transport := &fakeTransport{responses: map[string]string{"duckduckgo.com/ac": payload}}
	p := newTestProvider(transport)

	result, err := call(t, p, "get_search_suggestions", map[string]any{"query": "gol", "max_suggestions": 2})
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}
	if !strings.Contains(result.Content, "golang") || !strings.Contains(result.Content, "golang tutorial") {
		t.Fatalf("suggestions missing:\n%s", result.Content)
	}
	if strings.Contains(result.Content, "golang testing") {
		t.Fatalf("max_suggestions not applied:\n%s", result.Content)
	}
}
