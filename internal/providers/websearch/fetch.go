package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	searchEndpoint     = "https://html.duckduckgo.com/html/"
	suggestionEndpoint = "https://duckduckgo.com/ac/"
	userAgent          = "Mozilla/5.0 (compatible; conduit/1.0)"
)

// searchResult is one search hit.
type searchResult struct {
	Title   string
	URL     string
	Snippet string
}

// pageContent is the readable text of one fetched page.
type pageContent struct {
	Title string
	Text  string
}

func (p *Provider) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp, nil
}

// fetchSearch queries the DuckDuckGo HTML endpoint and parses result nodes.
func (p *Provider) fetchSearch(ctx context.Context, query, region string, count int) ([]searchResult, error) {
	params := url.Values{"q": {query}}
	if region != "" {
		params.Set("kl", region)
	}
	resp, err := p.get(ctx, searchEndpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	var results []searchResult
	doc.Find(".result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if title == "" || href == "" {
			return true
		}
		results = append(results, searchResult{
			Title:   title,
			URL:     cleanResultURL(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < count
	})
	if len(results) == 0 {
		return nil, fmt.Errorf("no results parsed for %q", query)
	}
	return results, nil
}

// cleanResultURL unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=<encoded>).
func cleanResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.Contains(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			if decoded, err := url.QueryUnescape(target); err == nil {
				return decoded
			}
			return target
		}
	}
	return href
}

func formatSearchResults(query string, results []searchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q (%d):\n", query, len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// fetchSuggestions queries the completion endpoint, which answers
// [query, [suggestions...]].
func (p *Provider) fetchSuggestions(ctx context.Context, query string, count int) ([]string, error) {
	params := url.Values{"q": {query}, "type": {"list"}}
	resp, err := p.get(ctx, suggestionEndpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	if len(payload) < 2 {
		return nil, nil
	}
	var suggestions []string
	if err := json.Unmarshal(payload[1], &suggestions); err != nil {
		return nil, fmt.Errorf("parse suggestion list: %w", err)
	}
	if len(suggestions) > count {
		suggestions = suggestions[:count]
	}
	return suggestions, nil
}

// fetchPage extracts the readable text of url, capped to maxLen runes.
func (p *Provider) fetchPage(ctx context.Context, pageURL string, maxLen int) (*pageContent, error) {
	resp, err := p.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, iframe").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	body := doc.Find("article").First()
	if body.Length() == 0 {
		body = doc.Find("main").First()
	}
	if body.Length() == 0 {
		body = doc.Find("body").First()
	}
	text := collapseWhitespace(body.Text())
	if text == "" {
		return nil, fmt.Errorf("no readable text in %s", pageURL)
	}
	runes := []rune(text)
	if len(runes) > maxLen {
		text = string(runes[:maxLen]) + "..."
	}
	return &pageContent{Title: title, Text: text}, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
