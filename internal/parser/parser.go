// Package parser extracts tool invocations from model output. The model is
// instructed to emit `FUNCTION_CALL: tool(key="value", ...)` lines; real
// output is messier, so extraction layers three strategies per call: a
// strict recursive-descent parse, regex capture, and a comma splitter. The
// first strategy yielding arguments wins.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/logging"
	"conduit/internal/ports"
)

const marker = "FUNCTION_CALL:"

var callHeadRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// Parser implements ports.FunctionCallParser.
type Parser struct {
	log logging.Logger
}

func New(log logging.Logger) *Parser {
	return &Parser{log: logging.OrNop(log)}
}

// HasMarker reports whether content contains call syntax at all.
func HasMarker(content string) bool {
	return strings.Contains(content, marker)
}

// Parse extracts every FUNCTION_CALL from content. A marker whose call
// cannot be parsed produces a ParseError carrying the offending snippet.
func (p *Parser) Parse(content string) ([]ports.ToolCall, error) {
	var calls []ports.ToolCall
	rest := content
	for {
		i := strings.Index(rest, marker)
		if i < 0 {
			break
		}
		rest = rest[i+len(marker):]
		expr, remainder := cutCallExpression(rest)
		rest = remainder
		if expr == "" {
			return calls, &conduiterrors.ParseError{
				Snippet: snippet(remainder),
				Err:     fmt.Errorf("no call expression after marker"),
			}
		}
		call, err := parseCall(expr)
		if err != nil {
			return calls, &conduiterrors.ParseError{Snippet: snippet(expr), Err: err}
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// Validate checks a parsed call against the tool's declared schema.
func (p *Parser) Validate(call ports.ToolCall, definition ports.ToolDefinition) error {
	for _, required := range definition.Parameters.Required {
		if _, ok := call.Arguments[required]; !ok {
			return &conduiterrors.ValidationError{Field: required, Reason: "missing required parameter"}
		}
	}
	for name := range call.Arguments {
		if len(definition.Parameters.Properties) == 0 {
			break
		}
		if _, declared := definition.Parameters.Properties[name]; !declared {
			return &conduiterrors.ValidationError{Field: name, Reason: "parameter not declared by the tool"}
		}
	}
	return nil
}

// cutCallExpression takes `name(...)` with balanced parentheses from the
// front of s, honoring quotes, and returns it plus the remainder.
func cutCallExpression(s string) (string, string) {
	head := callHeadRe.FindStringSubmatchIndex(s)
	if head == nil {
		return "", s
	}
	depth := 0
	quote := byte(0)
	for i := head[1] - 1; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[:i+1]), s[i+1:]
			}
		}
	}
	return "", s
}

// parseCall maps one call expression to a ToolCall via the layered
// strategies.
func parseCall(expr string) (ports.ToolCall, error) {
	head := callHeadRe.FindStringSubmatch(expr)
	if head == nil {
		return ports.ToolCall{}, fmt.Errorf("not a call expression")
	}
	name := head[1]
	open := strings.Index(expr, "(")
	body := strings.TrimSpace(expr[open+1 : len(expr)-1])

	if body == "" {
		return ports.ToolCall{Name: name, Arguments: map[string]any{}}, nil
	}
	for _, strategy := range []func(string) map[string]any{
		parseStructured,
		parseRegex,
		parseCommaSplit,
	} {
		if args := strategy(body); len(args) > 0 {
			return ports.ToolCall{Name: name, Arguments: args}, nil
		}
	}
	return ports.ToolCall{}, fmt.Errorf("no strategy parsed arguments from %q", body)
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60]
	}
	return s
}
