package dispatcher

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"conduit/internal/ports"
)

// normalizeArguments validates and coerces raw arguments against the tool's
// parameter schema. It returns the cleaned mapping and the list of
// validation errors; a non-empty list means the executor must not run.
func normalizeArguments(schema ports.ParameterSchema, raw map[string]any) (map[string]any, []string) {
	cleaned := make(map[string]any, len(raw))
	var problems []string

	for name, value := range raw {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			s = unquote(s)
			if s == "" {
				continue
			}
			value = s
		}
		prop, declared := schema.Properties[name]
		if !declared {
			// Undeclared parameters pass through untouched; providers may
			// accept open-ended maps.
			cleaned[name] = value
			continue
		}
		coerced, err := coerce(prop.Type, value)
		if err != nil {
			problems = append(problems, fmt.Sprintf("parameter %q: %v", name, err))
			continue
		}
		cleaned[name] = coerced
	}

	for _, required := range schema.Required {
		if _, ok := cleaned[required]; !ok {
			problems = append(problems, fmt.Sprintf("missing required parameter: %s", required))
		}
	}
	return cleaned, problems
}

// unquote strips one layer of wrapping quotes and collapses common doubled
// escapes that LLMs emit.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	replacer := strings.NewReplacer(
		`\\n`, "\n",
		`\\t`, "\t",
		`\"`, `"`,
		`\'`, `'`,
	)
	return replacer.Replace(s)
}

func coerce(declaredType string, value any) (any, error) {
	switch declaredType {
	case "string":
		switch v := value.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case bool:
			return strconv.FormatBool(v), nil
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("cannot represent %T as string", value)
			}
			return string(data), nil
		}
	case "integer":
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			return int(v), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", value)
		}
	case "number":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("expected number, got %q", v)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("expected number, got %T", value)
		}
	case "boolean":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
			if err != nil {
				return nil, fmt.Errorf("expected boolean, got %q", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
	case "array":
		switch v := value.(type) {
		case []any:
			return v, nil
		case string:
			return coerceArrayString(v)
		default:
			return nil, fmt.Errorf("expected array, got %T", value)
		}
	case "object":
		switch v := value.(type) {
		case map[string]any:
			return v, nil
		case string:
			var obj map[string]any
			if err := json.Unmarshal([]byte(v), &obj); err != nil {
				return nil, fmt.Errorf("expected object, got %q", v)
			}
			return obj, nil
		default:
			return nil, fmt.Errorf("expected object, got %T", value)
		}
	default:
		return value, nil
	}
}

// coerceArrayString accepts a JSON array or a comma-separated string.
func coerceArrayString(s string) ([]any, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			return arr, nil
		}
	}
	parts := strings.Split(trimmed, ",")
	arr := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			arr = append(arr, unquote(p))
		}
	}
	return arr, nil
}
