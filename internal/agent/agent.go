// Package agent runs the interaction loop: plan or single model turn,
// function-call extraction, dispatch and a synthesis turn.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"conduit/internal/dispatcher"
	"conduit/internal/logging"
	"conduit/internal/observability"
	"conduit/internal/parser"
	"conduit/internal/planner"
	"conduit/internal/ports"
	"conduit/internal/session"
	"conduit/internal/toolregistry"
)

// Options wires the loop's collaborators.
type Options struct {
	Client        ports.LLMClient
	Parser        ports.FunctionCallParser
	Dispatcher    *dispatcher.Dispatcher
	Planner       *planner.Planner
	Registry      *toolregistry.Registry
	Store         *session.Store
	Metrics       *observability.Metrics
	Logger        logging.Logger
	HistoryBudget int
	Temperature   float64
	MaxTokens     int
}

// Agent is the query loop over one conversation.
type Agent struct {
	client      ports.LLMClient
	parser      ports.FunctionCallParser
	dispatcher  *dispatcher.Dispatcher
	planner     *planner.Planner
	registry    *toolregistry.Registry
	store       *session.Store
	metrics     *observability.Metrics
	log         logging.Logger
	history     *history
	temperature float64
	maxTokens   int
}

func New(opts Options) *Agent {
	p := opts.Parser
	if p == nil {
		p = parser.New(opts.Logger)
	}
	return &Agent{
		client:      opts.Client,
		parser:      p,
		dispatcher:  opts.Dispatcher,
		planner:     opts.Planner,
		registry:    opts.Registry,
		store:       opts.Store,
		metrics:     opts.Metrics,
		log:         logging.OrNop(opts.Logger),
		history:     newHistory(opts.HistoryBudget),
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// ClearHistory drops the conversation so far.
func (a *Agent) ClearHistory() { a.history.Clear() }

// Query answers one user query. Tool failures never surface as Go
// errors; only model transport failures do.
func (a *Agent) Query(ctx context.Context, query string) (string, error) {
	started := time.Now()

	if a.planner != nil {
		if plan, ok := a.planner.Plan(query); ok {
			report := a.executePlan(ctx, plan)
			a.recordQuery(ctx, plan.Status != planner.StatusFailed, started)
			a.history.Add("user", query)
			a.history.Add("assistant", report)
			return report, nil
		}
	}

	messages := a.conversation(query)
	resp, err := a.complete(ctx, messages)
	if err != nil {
		a.recordQuery(ctx, false, started)
		return "", err
	}

	calls, parseErr := a.parser.Parse(resp.Content)
	if parseErr != nil {
		// Model emitted call syntax we could not recover; hand the raw
		// text back rather than dropping the turn.
		a.log.Warn("call extraction failed: %v", parseErr)
		a.finishTurn(query, resp.Content)
		a.recordQuery(ctx, true, started)
		return resp.Content, nil
	}
	if len(calls) == 0 {
		a.finishTurn(query, resp.Content)
		a.recordQuery(ctx, true, started)
		return resp.Content, nil
	}

	lines := make([]string, 0, len(calls))
	for _, call := range calls {
		result := a.dispatcher.Dispatch(ctx, call.Name, call.Arguments)
		lines = append(lines, fmt.Sprintf("Tool %s: %s", call.Name, resultText(result)))
	}
	toolOutput := strings.Join(lines, "\n")

	answer, err := a.synthesize(ctx, messages, resp.Content, toolOutput)
	if err != nil {
		a.log.Warn("synthesis turn failed, returning tool output: %v", err)
		answer = toolOutput
	}
	a.finishTurn(query, answer)
	a.recordQuery(ctx, true, started)
	return answer, nil
}

func (a *Agent) conversation(query string) []ports.Message {
	system := BuildSystemPrompt(a.registry.Definitions())
	messages := make([]ports.Message, 0, a.history.Len()+2)
	messages = append(messages, ports.Message{Role: "system", Content: system})
	messages = append(messages, a.history.Messages()...)
	messages = append(messages, ports.Message{Role: "user", Content: query})
	return messages
}

func (a *Agent) complete(ctx context.Context, messages []ports.Message) (*ports.CompletionResponse, error) {
	resp, err := a.client.Complete(ctx, ports.CompletionRequest{
		Messages:    messages,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if a.metrics != nil {
		prompt, completion := 0, 0
		if resp != nil {
			prompt, completion = resp.PromptTokens, resp.CompletionTokens
		}
		a.metrics.RecordLLMRequest(ctx, a.client.Model(), err == nil, prompt, completion)
	}
	return resp, err
}

// synthesize runs one more model turn over the tool results to produce
// the user-facing answer.
func (a *Agent) synthesize(ctx context.Context, messages []ports.Message, assistant, toolOutput string) (string, error) {
	followUp := append(messages,
		ports.Message{Role: "assistant", Content: assistant},
		ports.Message{Role: "user", Content: "Tool results:\n" + toolOutput +
			"\n\nUsing these results, answer the original question. Do not emit further FUNCTION_CALL lines."})
	resp, err := a.complete(ctx, followUp)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// executePlan runs the plan step by step through the dispatcher. A step
// failure fails the plan and stops execution; the report shows how far
// it got.
func (a *Agent) executePlan(ctx context.Context, plan *planner.TaskPlan) string {
	a.log.Info("executing plan %s (%s, %d steps)", plan.ID, plan.Category, len(plan.Steps))
	for i, step := range plan.Steps {
		plan.StartStep(i)
		result := a.dispatcher.Dispatch(ctx, step.Tool, step.Params)
		if result.Kind == ports.ResultError {
			detail := resultText(result)
			plan.FailStep(i, detail)
			a.log.Warn("plan %s step %d (%s) failed: %s", plan.ID, i, step.Tool, detail)
			break
		}
		plan.CompleteStep(i, result.Content)
	}
	return planReport(plan)
}

func planReport(plan *planner.TaskPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan %s (%s): %s\n", plan.ID, plan.Category, plan.Status)
	fmt.Fprintf(&b, "Query: %s\n", plan.Query)
	fmt.Fprintf(&b, "Steps completed: %d/%d\n", plan.CurrentStep(), len(plan.Steps))
	for _, step := range plan.Steps {
		fmt.Fprintf(&b, "%s %d. %s [%s]\n", statusEmoji(step.Status), step.Index+1, step.Description, step.Tool)
		if step.Result != "" {
			fmt.Fprintf(&b, "   %s\n", firstLine(step.Result))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusEmoji(status string) string {
	switch status {
	case planner.StatusCompleted:
		return "✅"
	case planner.StatusFailed:
		return "❌"
	case planner.StatusInProgress:
		return "🔄"
	default:
		return "⏳"
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	const max = 200
	if len(line) > max {
		return line[:max] + "..."
	}
	return line
}

func resultText(result *ports.ToolResult) string {
	switch {
	case result == nil:
		return "(no result)"
	case result.Content != "":
		return result.Content
	case result.Message != "":
		return result.Message
	case result.Error != nil:
		return result.Error.Error()
	}
	return "(empty result)"
}

func (a *Agent) finishTurn(query, answer string) {
	a.history.Add("user", query)
	a.history.Add("assistant", answer)
}

func (a *Agent) recordQuery(ctx context.Context, success bool, started time.Time) {
	if a.store != nil {
		a.store.Stats().RecordQuery(success, time.Since(started))
	}
	if a.metrics != nil {
		a.metrics.RecordQuery(ctx, success)
	}
}
