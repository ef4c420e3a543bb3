package parser

import (
	"reflect"
	"testing"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/ports"
)

func parseOne(t *testing.T, content string) ports.ToolCall {
	t.Helper()
	calls, err := New(nil).Parse(content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	return calls[0]
}

func TestParseStructuredCall(t *testing.T) {
	call := parseOne(t, `I will calculate that.
FUNCTION_CALL: calc_calculate(expression="2 + 3 * 4")`)
	if call.Name != "calc_calculate" {
		t.Fatalf("unexpected name %s", call.Name)
	}
	if call.Arguments["expression"] != "2 + 3 * 4" {
		t.Fatalf("unexpected arguments %v", call.Arguments)
	}
}

func TestParseTypedLiterals(t *testing.T) {
	call := parseOne(t,
		`FUNCTION_CALL: search_web(query="golang testing", max_results=5, strict=true, score=0.5)`)
	want := map[string]any{
		"query":       "golang testing",
		"max_results": 5,
		"strict":      true,
		"score":       0.5,
	}
	if !reflect.DeepEqual(call.Arguments, want) {
		t.Fatalf("arguments mismatch:\ngot  %v\nwant %v", call.Arguments, want)
	}
}

func TestParseArrayArgument(t *testing.T) {
	call := parseOne(t,
		`FUNCTION_CALL: monitor_create_todos(todos=["write tests", "run tests", "ship"])`)
	todos, ok := call.Arguments["todos"].([]any)
	if !ok || len(todos) != 3 {
		t.Fatalf("array not parsed: %v", call.Arguments)
	}
	if todos[0] != "write tests" || todos[2] != "ship" {
		t.Fatalf("array contents wrong: %v", todos)
	}
}

func TestParseMultipleCalls(t *testing.T) {
	content := `FUNCTION_CALL: calc_calculate(expression="1+1")
Some commentary in between.
FUNCTION_CALL: calc_get_variables()`
	calls, err := New(nil).Parse(content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected two calls, got %d", len(calls))
	}
	if calls[1].Name != "calc_get_variables" || len(calls[1].Arguments) != 0 {
		t.Fatalf("second call wrong: %+v", calls[1])
	}
}

func TestRegexFallbackHandlesUnquotedValues(t *testing.T) {
	// An unquoted value containing spaces defeats the strict parser, so
	// the regex pass has to recover it.
	call := parseOne(t, `FUNCTION_CALL: remote_execute_command(command=ls -la /tmp)`)
	if call.Arguments["command"] != "ls -la /tmp" {
		t.Fatalf("command lost: %v", call.Arguments)
	}
}

func TestCommaSplitLastResort(t *testing.T) {
	args := parseCommaSplit(`name=widget, value=42`)
	if args["name"] != "widget" || args["value"] != "42" {
		t.Fatalf("comma split wrong: %v", args)
	}
	if parseCommaSplit("no pairs here") != nil {
		t.Fatalf("expected nil for no pairs")
	}
}

func TestQuotedCommasSurviveExtraction(t *testing.T) {
	call := parseOne(t, `FUNCTION_CALL: calc_calculate(expression="max(1, 2, 3)")`)
	if call.Arguments["expression"] != "max(1, 2, 3)" {
		t.Fatalf("nested call text mangled: %v", call.Arguments)
	}
}

func TestEscapedQuotes(t *testing.T) {
	call := parseOne(t, `FUNCTION_CALL: remote_write_file(filename="a.txt", content="say \"hi\"\nbye")`)
	if call.Arguments["content"] != "say \"hi\"\nbye" {
		t.Fatalf("escapes not applied: %q", call.Arguments["content"])
	}
}

func TestUnparsableMarkerIsParseError(t *testing.T) {
	_, err := New(nil).Parse("FUNCTION_CALL: this is not a call at all")
	if err == nil {
		t.Fatalf("expected parse error")
	}
	var pe *conduiterrors.ParseError
	if !asParseError(err, &pe) {
		t.Fatalf("expected ParseError, got %T", err)
	}
}

func asParseError(err error, target **conduiterrors.ParseError) bool {
	pe, ok := err.(*conduiterrors.ParseError)
	if ok {
		*target = pe
	}
	return ok
}

func TestNoMarkerYieldsNoCalls(t *testing.T) {
	calls, err := New(nil).Parse("just a plain answer with tool_name(x=1) mentioned")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(calls))
	}
	if HasMarker("plain") {
		t.Fatalf("HasMarker false positive")
	}
	if !HasMarker("FUNCTION_CALL: x()") {
		t.Fatalf("HasMarker miss")
	}
}

func TestValidateAgainstDefinition(t *testing.T) {
	p := New(nil)
	def := ports.ToolDefinition{
		Name: "calc_calculate",
		Parameters: ports.ParameterSchema{
			Type:       "object",
			Properties: map[string]ports.Property{"expression": {Type: "string"}},
			Required:   []string{"expression"},
		},
	}
	good := ports.ToolCall{Name: "calc_calculate", Arguments: map[string]any{"expression": "1+1"}}
	if err := p.Validate(good, def); err != nil {
		t.Fatalf("valid call rejected: %v", err)
	}
	missing := ports.ToolCall{Name: "calc_calculate", Arguments: map[string]any{}}
	if err := p.Validate(missing, def); !conduiterrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	extra := ports.ToolCall{Name: "calc_calculate", Arguments: map[string]any{"expression": "1", "bogus": "x"}}
	if err := p.Validate(extra, def); !conduiterrors.IsValidation(err) {
		t.Fatalf("expected validation error for undeclared parameter, got %v", err)
	}
}
