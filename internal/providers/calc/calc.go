// Package calc is the calculation provider: a restricted expression
// evaluator with named variable bindings private to the provider instance.
package calc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"conduit/internal/ports"
	"conduit/internal/providers"
)

// Provider evaluates expressions and keeps variable bindings.
type Provider struct {
	mu   sync.Mutex
	vars map[string]any
}

// New creates the calculation provider.
func New() *Provider {
	return &Provider{vars: make(map[string]any)}
}

func (p *Provider) Name() string { return "calc" }

func (p *Provider) Initialize(ctx context.Context) error { return nil }

func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vars = make(map[string]any)
	return nil
}

func (p *Provider) Tools() []ports.ToolExecutor {
	return []ports.ToolExecutor{
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name: "calculate",
				Description: "Evaluate a mathematical expression. Supports arithmetic " +
					"(+ - * / // % **), comparisons, list functions (min/max/sum), " +
					"trig/log/sqrt and friends, constants pi/e/tau/inf/nan, stored " +
					"variables, and assignment like `x = 2 + 2`.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"expression": {Type: "string", Description: "The expression to evaluate"},
					},
					Required: []string{"expression"},
				},
			},
			Meta: ports.ToolMeta{Category: "mathematics", Tags: []string{"arithmetic", "output:number"}},
			Run:  p.calculate,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "set_variable",
				Description: "Store a named variable for use in later calculations.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"name":  {Type: "string", Description: "Variable name"},
						"value": {Type: "number", Description: "Numeric value"},
					},
					Required: []string{"name", "value"},
				},
			},
			Meta: ports.ToolMeta{Category: "mathematics", Tags: []string{"variables"}},
			Run:  p.setVariable,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "get_variables",
				Description: "List all stored variables and their values.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: ports.ToolMeta{Category: "mathematics", Tags: []string{"variables"}},
			Run:  p.getVariables,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "clear_variables",
				Description: "Remove every stored variable.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: ports.ToolMeta{Category: "mathematics", Tags: []string{"variables"}},
			Run:  p.clearVariables,
		},
	}
}

func (p *Provider) calculate(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	expression := providers.StringArg(call, "expression")
	if expression == "" {
		return nil, fmt.Errorf("missing expression")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	value, err := newEvaluator(p.vars).Evaluate(expression)
	if err != nil {
		return nil, err
	}
	result := providers.Text(call, formatValue(value))
	result.Metadata = map[string]any{"expression": expression}
	return result, nil
}

func (p *Provider) setVariable(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	name := providers.StringArg(call, "name")
	if name == "" || !isIdentifier(name) {
		return nil, fmt.Errorf("invalid variable name %q", name)
	}
	value, ok := call.Arguments["value"]
	if !ok {
		return nil, fmt.Errorf("missing value")
	}
	numeric, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("value must be numeric, got %T", value)
	}
	p.mu.Lock()
	p.vars[name] = numeric
	p.mu.Unlock()
	return providers.Text(call, fmt.Sprintf("%s = %s", name, formatValue(numeric))), nil
}

func (p *Provider) getVariables(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	p.mu.Lock()
	snapshot := make(map[string]any, len(p.vars))
	for k, v := range p.vars {
		snapshot[k] = v
	}
	p.mu.Unlock()

	if len(snapshot) == 0 {
		return providers.Text(call, "no variables set"), nil
	}
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	formatted := make(map[string]string, len(snapshot))
	for _, name := range names {
		formatted[name] = formatValue(snapshot[name])
	}
	data, err := json.Marshal(formatted)
	if err != nil {
		return nil, err
	}
	result := providers.Text(call, string(data))
	result.Metadata = map[string]any{"count": len(snapshot)}
	return result, nil
}

func (p *Provider) clearVariables(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	p.mu.Lock()
	n := len(p.vars)
	p.vars = make(map[string]any)
	p.mu.Unlock()
	return providers.Text(call, fmt.Sprintf("cleared %d variables", n)), nil
}

// Variables returns a copy of the bindings, used by tests.
func (p *Provider) Variables() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]any, len(p.vars))
	for k, v := range p.vars {
		out[k] = v
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
