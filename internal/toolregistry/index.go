package toolregistry

import (
	"sort"
	"strings"
	"sync"

	"conduit/internal/ports"
)

// Categories is the closed set of capability categories.
var Categories = []string{
	"mathematics",
	"statistics",
	"linear-algebra",
	"calculus",
	"number-theory",
	"data-processing",
	"file-ops",
	"network",
	"database",
	"ai-ml",
	"utilities",
}

// Complexity labels inferred from descriptions.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityAdvanced = "advanced"
)

var advancedKeywords = []string{
	"matrix", "integral", "derivative", "eigen", "regression",
	"optimize", "differential", "fourier", "neural",
}

var moderateKeywords = []string{
	"multi", "batch", "aggregate", "transform", "pipeline",
	"recursive", "parse", "merge",
}

// IndexEntry is the discovery record for one registered tool.
type IndexEntry struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Complexity  string   `json:"complexity"`
	InputTypes  []string `json:"input_types"`
	OutputTypes []string `json:"output_types"`
	description string
}

// Match pairs a tool name with its relevance score.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Index supports capability discovery by category, tag, io shape and
// natural-language scoring.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*IndexEntry
}

func newIndex() *Index {
	return &Index{entries: make(map[string]*IndexEntry)}
}

func (ix *Index) add(name string, def ports.ToolDefinition, meta ports.ToolMeta) {
	entry := &IndexEntry{
		Name:        name,
		Category:    normalizeCategory(meta.Category),
		Tags:        deriveTags(def.Description, meta.Tags),
		Complexity:  inferComplexity(def.Description),
		InputTypes:  inputTypes(def.Parameters),
		OutputTypes: outputTypes(meta.Tags),
		description: def.Description,
	}
	ix.mu.Lock()
	ix.entries[name] = entry
	ix.mu.Unlock()
}

func (ix *Index) remove(name string) {
	ix.mu.Lock()
	delete(ix.entries, name)
	ix.mu.Unlock()
}

// Lookup returns the index entry for a tool, if present.
func (ix *Index) Lookup(name string) (*IndexEntry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	entry, ok := ix.entries[name]
	return entry, ok
}

// ByCategory returns tool names in the given category, sorted.
func (ix *Index) ByCategory(category string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var names []string
	for _, entry := range ix.entries {
		if entry.Category == category {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return names
}

// ByTags returns tools carrying every requested tag.
func (ix *Index) ByTags(tags []string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var names []string
	for _, entry := range ix.entries {
		if containsAll(entry.Tags, tags) {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return names
}

// ByIOShape returns tools accepting input and producing output.
func (ix *Index) ByIOShape(input, output string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var names []string
	for _, entry := range ix.entries {
		if (input == "" || contains(entry.InputTypes, input)) &&
			(output == "" || contains(entry.OutputTypes, output)) {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Search scores every entry against a natural-language query using word
// overlap plus substring weighting, and returns matches sorted descending.
func (ix *Index) Search(query string) []Match {
	words := tokenize(query)
	if len(words) == 0 {
		return nil
	}
	lowered := strings.ToLower(query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var matches []Match
	for _, entry := range ix.entries {
		score := 0.0
		haystack := strings.ToLower(entry.Name + " " + entry.description + " " + strings.Join(entry.Tags, " "))
		haystackWords := tokenize(haystack)
		for _, w := range words {
			if contains(haystackWords, w) {
				score += 1.0
			} else if strings.Contains(haystack, w) {
				score += 0.5
			}
		}
		if strings.Contains(lowered, strings.ToLower(strings.TrimPrefix(entry.Name, entry.Category+"_"))) {
			score += 2.0
		}
		if score > 0 {
			matches = append(matches, Match{Name: entry.Name, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Name < matches[j].Name
	})
	return matches
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	for _, known := range Categories {
		if category == known {
			return known
		}
	}
	return "utilities"
}

func deriveTags(description string, seed []string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, t := range seed {
		t = strings.ToLower(t)
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	for _, w := range tokenize(description) {
		if len(w) >= 5 && !seen[w] {
			seen[w] = true
			tags = append(tags, w)
		}
		if len(tags) >= 12 {
			break
		}
	}
	return tags
}

func inferComplexity(description string) string {
	lowered := strings.ToLower(description)
	for _, kw := range advancedKeywords {
		if strings.Contains(lowered, kw) {
			return ComplexityAdvanced
		}
	}
	for _, kw := range moderateKeywords {
		if strings.Contains(lowered, kw) {
			return ComplexityModerate
		}
	}
	return ComplexitySimple
}

func inputTypes(schema ports.ParameterSchema) []string {
	seen := make(map[string]bool)
	var types []string
	for _, prop := range schema.Properties {
		if !seen[prop.Type] {
			seen[prop.Type] = true
			types = append(types, prop.Type)
		}
	}
	sort.Strings(types)
	return types
}

// outputTypes reads "output:<type>" tags; plain string output is the default.
func outputTypes(tags []string) []string {
	var types []string
	for _, t := range tags {
		if rest, ok := strings.CutPrefix(t, "output:"); ok {
			types = append(types, rest)
		}
	}
	if len(types) == 0 {
		types = []string{"string"}
	}
	return types
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	var words []string
	for _, f := range fields {
		if len(f) >= 2 {
			words = append(words, f)
		}
	}
	return words
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

func containsAll(list, items []string) bool {
	for _, item := range items {
		if !contains(list, strings.ToLower(item)) {
			return false
		}
	}
	return true
}
