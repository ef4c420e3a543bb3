package agent

import (
	"fmt"
	"sort"
	"strings"

	"conduit/internal/ports"
)

// BuildSystemPrompt enumerates the registered tools with their typed
// parameters and states the call syntax the parser understands.
func BuildSystemPrompt(definitions []ports.ToolDefinition) string {
	var b strings.Builder
	b.WriteString(`You are Conduit, an assistant that completes tasks by calling tools.

To call a tool, emit a line in exactly this form:
FUNCTION_CALL: tool_name(param="value", count=3, flag=true, items=["a", "b"])

Rules:
- One call per FUNCTION_CALL line; put nothing else on that line.
- Quote string values; leave numbers and booleans bare.
- Only call tools listed below, with the parameters they declare.
- When no tool is needed, answer directly without a FUNCTION_CALL line.

Available tools:
`)
	for _, def := range definitions {
		fmt.Fprintf(&b, "- %s(%s)", def.Name, formatParameters(def.Parameters))
		if def.Description != "" {
			fmt.Fprintf(&b, ": %s", def.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatParameters(schema ports.ParameterSchema) string {
	if len(schema.Properties) == 0 {
		return ""
	}
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	// Required parameters first, both groups alphabetical.
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, 0, len(names))
	for _, name := range names {
		p := schema.Properties[name]
		part := fmt.Sprintf("%s: %s", name, p.Type)
		if !required[name] {
			part += "?"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}
