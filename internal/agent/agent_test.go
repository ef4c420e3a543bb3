package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"conduit/internal/dispatcher"
	"conduit/internal/llm"
	"conduit/internal/planner"
	"conduit/internal/ports"
	"conduit/internal/session"
	"conduit/internal/toolregistry"
)

type stubTool struct {
	name    string
	output  string
	fail    bool
	calls   int
	lastArg map[string]any
}

func (s *stubTool) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	s.calls++
	s.lastArg = call.Arguments
	if s.fail {
		return &ports.ToolResult{Kind: ports.ResultError, Message: "stub failure"}, nil
	}
	return &ports.ToolResult{Kind: ports.ResultSuccess, Content: s.output}, nil
}

func (s *stubTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{Name: s.name, Description: "stub", Parameters: ports.ParameterSchema{Type: "object"}}
}

func (s *stubTool) Metadata() ports.ToolMeta {
	return ports.ToolMeta{Name: s.name, Category: "utilities", Version: "1.0.0"}
}

type env struct {
	agent    *Agent
	mock     *llm.Mock
	registry *toolregistry.Registry
	store    *session.Store
	tools    map[string]*stubTool
}

func newEnv(t *testing.T, responses []string, provider string, toolSpecs ...*stubTool) *env {
	t.Helper()
	registry := toolregistry.New(nil)
	tools := make(map[string]*stubTool)
	for _, spec := range toolSpecs {
		qualified := registry.Register(provider, spec)
		tools[qualified] = spec
	}
	store := session.NewStore()
	mock := &llm.Mock{Responses: responses}
	d := dispatcher.New(registry, nil, dispatcher.Options{Stats: store.Stats()})
	a := New(Options{
		Client:     mock,
		Dispatcher: d,
		Planner:    planner.New(registry, nil),
		Registry:   registry,
		Store:      store,
	})
	return &env{agent: a, mock: mock, registry: registry, store: store, tools: tools}
}

func TestDirectAnswerWithoutTools(t *testing.T) {
	e := newEnv(t, []string{"Just an answer."}, "calc", &stubTool{name: "calculate"})
	answer, err := e.agent.Query(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if answer != "Just an answer." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if len(e.mock.Requests) != 1 {
		t.Fatalf("expected one model turn, got %d", len(e.mock.Requests))
	}
	system := e.mock.Requests[0].Messages[0]
	if system.Role != "system" || !strings.Contains(system.Content, "calc_calculate") {
		t.Fatalf("system prompt missing tool listing: %q", system.Content)
	}
	if !strings.Contains(system.Content, "FUNCTION_CALL:") {
		t.Fatalf("system prompt missing call syntax")
	}
}

func TestToolCallThenSynthesis(t *testing.T) {
	e := newEnv(t, []string{
		`FUNCTION_CALL: calc_calculate(expression="2+2")`,
		"The answer is 4.",
	}, "calc", &stubTool{name: "calculate", output: "4"})

	answer, err := e.agent.Query(context.Background(), "what is 2+2")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if answer != "The answer is 4." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if e.tools["calc_calculate"].calls != 1 {
		t.Fatalf("tool not dispatched")
	}
	if e.tools["calc_calculate"].lastArg["expression"] != "2+2" {
		t.Fatalf("arguments lost: %v", e.tools["calc_calculate"].lastArg)
	}
	if len(e.mock.Requests) != 2 {
		t.Fatalf("expected synthesis turn, got %d requests", len(e.mock.Requests))
	}
	synthesis := e.mock.Requests[1].Messages
	last := synthesis[len(synthesis)-1].Content
	if !strings.Contains(last, "Tool calc_calculate: 4") {
		t.Fatalf("tool results not handed to synthesis turn: %q", last)
	}
}

func TestParseFailureReturnsRawText(t *testing.T) {
	raw := "FUNCTION_CALL: this is not a call at all"
	e := newEnv(t, []string{raw}, "calc", &stubTool{name: "calculate"})
	answer, err := e.agent.Query(context.Background(), "do something")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if answer != raw {
		t.Fatalf("expected raw text back, got %q", answer)
	}
	if len(e.mock.Requests) != 1 {
		t.Fatalf("no synthesis turn expected, got %d requests", len(e.mock.Requests))
	}
	if e.tools["calc_calculate"].calls != 0 {
		t.Fatalf("nothing should have been dispatched")
	}
}

func TestHistoryCarriesBetweenQueries(t *testing.T) {
	e := newEnv(t, []string{"first", "second"}, "calc", &stubTool{name: "calculate"})
	if _, err := e.agent.Query(context.Background(), "one"); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if _, err := e.agent.Query(context.Background(), "two"); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	second := e.mock.Requests[1].Messages
	// system + (user one, assistant first) + user two
	if len(second) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(second))
	}
	if second[1].Content != "one" || second[2].Content != "first" {
		t.Fatalf("history not carried: %+v", second)
	}
	e.agent.ClearHistory()
	if e.agent.history.Len() != 0 {
		t.Fatalf("history not cleared")
	}
}

func planEnv(t *testing.T, failTool string) *env {
	t.Helper()
	registry := toolregistry.New(nil)
	tools := make(map[string]*stubTool)
	add := func(provider, name string) {
		spec := &stubTool{name: name, output: "ok", fail: provider+"_"+name == failTool}
		tools[registry.Register(provider, spec)] = spec
	}
	add("remote", "execute_command")
	add("remote", "init_workspace")
	add("remote", "list_repositories")
	add("monitor", "create_todos")
	add("monitor", "get_progress_summary")
	store := session.NewStore()
	mock := &llm.Mock{}
	d := dispatcher.New(registry, nil, dispatcher.Options{Stats: store.Stats()})
	a := New(Options{
		Client:     mock,
		Dispatcher: d,
		Planner:    planner.New(registry, nil),
		Registry:   registry,
		Store:      store,
	})
	return &env{agent: a, mock: mock, registry: registry, store: store, tools: tools}
}

func TestComplexQueryExecutesPlanWithoutModelTurn(t *testing.T) {
	e := planEnv(t, "")
	answer, err := e.agent.Query(context.Background(), "Deploy the web application to the production server")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(e.mock.Requests) != 0 {
		t.Fatalf("plan path must not call the model, got %d requests", len(e.mock.Requests))
	}
	if !strings.Contains(answer, "Plan plan_") || !strings.Contains(answer, "completed") {
		t.Fatalf("report missing plan header: %q", answer)
	}
	if !strings.Contains(answer, "✅") {
		t.Fatalf("report missing completed markers: %q", answer)
	}
	for name, tool := range e.tools {
		if tool.calls != 1 {
			t.Fatalf("tool %s dispatched %d times", name, tool.calls)
		}
	}
}

func TestPlanStepFailureStopsExecution(t *testing.T) {
	e := planEnv(t, "remote_init_workspace")
	answer, err := e.agent.Query(context.Background(), "Deploy the web application to the production server")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !strings.Contains(answer, "❌") || !strings.Contains(answer, "failed") {
		t.Fatalf("report should show the failure: %q", answer)
	}
	if !strings.Contains(answer, "⏳") {
		t.Fatalf("later steps should stay pending: %q", answer)
	}
	// Steps after the failed one never ran.
	if e.tools["remote_list_repositories"].calls != 0 {
		t.Fatalf("execution did not stop at the failed step")
	}
	stats := e.store.Stats().Snapshot()
	if stats["queries_failed"].(int64) != 1 {
		t.Fatalf("failed plan not counted: %v", stats)
	}
}

func TestSystemPromptParameterOrdering(t *testing.T) {
	prompt := BuildSystemPrompt([]ports.ToolDefinition{{
		Name:        "remote_write_file",
		Description: "Write a file",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"mode":     {Type: "string"},
				"filename": {Type: "string"},
				"content":  {Type: "string"},
			},
			Required: []string{"filename", "content"},
		},
	}})
	want := "remote_write_file(content: string, filename: string, mode: string?)"
	if !strings.Contains(prompt, want) {
		t.Fatalf("parameter listing wrong:\n%s", prompt)
	}
}

func TestHistoryEvictsOldestUnderBudget(t *testing.T) {
	h := newHistory(10)
	h.Add("user", strings.Repeat("a", 20))
	h.Add("assistant", strings.Repeat("b", 20))
	h.Add("user", "recent")
	if h.Len() != 1 {
		t.Fatalf("expected only the newest turn, got %d", h.Len())
	}
	if h.Messages()[0].Content != "recent" {
		t.Fatalf("wrong survivor: %+v", h.Messages())
	}
}

func TestHistoryKeepsNewestEvenOverBudget(t *testing.T) {
	h := newHistory(2)
	h.Add("user", strings.Repeat("x", 100))
	if h.Len() != 1 {
		t.Fatalf("newest turn must survive: %d", h.Len())
	}
}

func TestPlanReportShowsResultSnippets(t *testing.T) {
	plan := &planner.TaskPlan{
		ID:       "plan_test",
		Query:    "q",
		Category: "development",
		Status:   planner.StatusCompleted,
		Steps: []*planner.TaskStep{
			{Index: 0, Description: "check", Tool: "dev_git_status", Status: planner.StatusCompleted,
				Completed: true, Result: "clean tree\nsecond line ignored"},
		},
	}
	report := planReport(plan)
	if !strings.Contains(report, "clean tree") || strings.Contains(report, "second line") {
		t.Fatalf("snippet not trimmed to first line:\n%s", report)
	}
	if !strings.Contains(report, fmt.Sprintf("Steps completed: %d/%d", 1, 1)) {
		t.Fatalf("completion counter missing:\n%s", report)
	}
}
