// Package planner detects multi-step requests and compiles them into
// deterministic step programs bound to registered tool names. No model
// call happens during planning.
package planner

import (
	"strings"

	"conduit/internal/logging"
	"conduit/internal/toolregistry"
)

// Planner builds task plans against the registry. It references tools by
// name only; the registry is the single coupling point.
type Planner struct {
	registry *toolregistry.Registry
	log      logging.Logger
}

func New(registry *toolregistry.Registry, log logging.Logger) *Planner {
	return &Planner{registry: registry, log: logging.OrNop(log)}
}

// IsComplex reports whether the query needs a step program: a complexity
// keyword, two sequence indicators next to a project keyword, or three
// numbered items.
func IsComplex(query string) bool {
	lower := strings.ToLower(query)
	words := wordSet(lower)
	for _, keyword := range complexityKeywords {
		if words[keyword] {
			return true
		}
	}
	sequences := 0
	for _, indicator := range sequenceIndicators {
		if strings.Contains(lower, indicator) {
			sequences++
		}
	}
	if sequences >= 2 {
		for _, keyword := range projectKeywords {
			if words[keyword] {
				return true
			}
		}
	}
	return len(numberedItemRe.FindAllString(query, -1)) >= 3
}

// Categorize picks the first category whose pattern table matches.
func Categorize(query string) string {
	for _, category := range categoryOrder {
		for _, re := range categoryPatterns[category] {
			if re.MatchString(query) {
				return category
			}
		}
	}
	return CategoryDevelopment
}

// Plan compiles the query into a TaskPlan, or reports false for simple
// queries. Steps whose tool is not registered are dropped; a plan needs a
// todo seed plus at least one surviving step.
func (p *Planner) Plan(query string) (*TaskPlan, bool) {
	if !IsComplex(query) {
		return nil, false
	}
	category := Categorize(query)

	var steps []*TaskStep
	for _, tmpl := range templates[category] {
		entry, err := p.registry.Get(tmpl.Tool)
		if err != nil {
			p.log.Debug("plan step %q dropped: %v", tmpl.Description, err)
			continue
		}
		steps = append(steps, &TaskStep{
			Description: tmpl.Description,
			Tool:        entry.QualifiedName,
			Params:      copyParams(tmpl.Params),
			Status:      StatusPending,
		})
	}
	if len(steps) == 0 {
		return nil, false
	}

	// The first step seeds the monitoring provider with the full plan.
	if entry, err := p.registry.Get("monitor_create_todos"); err == nil {
		todos := make([]any, 0, len(steps))
		for _, step := range steps {
			todos = append(todos, step.Description)
		}
		seed := &TaskStep{
			Description: "Track plan for: " + query,
			Tool:        entry.QualifiedName,
			Params:      map[string]any{"todos": todos},
			Status:      StatusPending,
		}
		steps = append([]*TaskStep{seed}, steps...)
	}
	if len(steps) < 2 {
		return nil, false
	}
	for i, step := range steps {
		step.Index = i
	}

	plan := newPlan(query, category, steps)
	p.log.Info("plan %s: category %s, %d steps", plan.ID, category, len(steps))
	return plan, true
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func wordSet(lower string) map[string]bool {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
