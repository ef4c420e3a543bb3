// Package monitor exposes session and todo bookkeeping as tools over the
// session store.
package monitor

import (
	"context"
	"fmt"
	"strings"

	"conduit/internal/logging"
	"conduit/internal/ports"
	"conduit/internal/providers"
	"conduit/internal/session"
)

// Provider is the monitoring tool group.
type Provider struct {
	store *session.Store
	log   logging.Logger
}

func New(store *session.Store, log logging.Logger) *Provider {
	return &Provider{store: store, log: logging.OrNop(log)}
}

func (p *Provider) Name() string { return "monitor" }

func (p *Provider) Initialize(ctx context.Context) error { return nil }

func (p *Provider) Shutdown(ctx context.Context) error { return nil }

func (p *Provider) Tools() []ports.ToolExecutor {
	meta := ports.ToolMeta{Category: "utilities", Tags: []string{"session", "todos"}}

	return []ports.ToolExecutor{
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "create_session",
				Description: "Start a new tracking session and make it current.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"session_id": {Type: "string", Description: "Optional session id, generated when omitted"},
					},
				},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				s := p.store.CreateSession(providers.StringArg(call, "session_id"))
				result := providers.Text(call, fmt.Sprintf("session %s created", s.ID))
				result.Metadata = map[string]any{"session_id": s.ID}
				return result, nil
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name: "create_todos",
				Description: "Add todo items to the current session. Items are either plain " +
					"strings or objects with content, active_form and status.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"todos": {Type: "array", Description: "Todo items"},
					},
					Required: []string{"todos"},
				},
			},
			Meta: meta,
			Run:  p.createTodos,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "update_todo_status",
				Description: "Transition a todo item to a new status.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"todo_id": {Type: "string", Description: "Todo id, e.g. todo_1"},
						"status": {Type: "string", Description: "New status",
							Enum: []any{session.StatusPending, session.StatusInProgress, session.StatusCompleted, session.StatusFailed, session.StatusCancelled}},
						"notes": {Type: "string", Description: "Optional progress notes"},
					},
					Required: []string{"todo_id", "status"},
				},
			},
			Meta: meta,
			Run:  p.updateTodoStatus,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "get_current_todos",
				Description: "List the current session's todo items in creation order.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: meta,
			Run:  p.getCurrentTodos,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "clear_todos",
				Description: "Remove every todo item from the current session.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				n := p.store.ClearTodos(p.store.Current())
				return providers.Text(call, fmt.Sprintf("cleared %d todos", n)), nil
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "get_progress_summary",
				Description: "Report totals, active items and session duration.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				return providers.Text(call, p.store.ProgressSummary(p.store.Current(), 3)), nil
			},
		},
	}
}

func (p *Provider) createTodos(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	raw, ok := call.Arguments["todos"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("todos must be a non-empty list")
	}
	s := p.store.Current()
	var lines []string
	warnings := 0
	for i, entry := range raw {
		content, activeForm, status, warned, err := parseTodoEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("todo %d: %w", i+1, err)
		}
		if warned {
			warnings++
			p.log.Warn("todo %d: unknown status, degrading to pending", i+1)
		}
		item := p.store.AddTodo(s, content, activeForm, status)
		lines = append(lines, fmt.Sprintf("[%s] %s (%s)", item.ID, item.Content, item.Status))
	}
	text := fmt.Sprintf("created %d todos in session %s:\n%s", len(raw), s.ID, strings.Join(lines, "\n"))
	if warnings > 0 {
		text += fmt.Sprintf("\nwarning: %d items had unknown statuses and were set to pending", warnings)
	}
	result := providers.Text(call, text)
	result.Metadata = map[string]any{"session_id": s.ID, "count": len(raw)}
	return result, nil
}

// parseTodoEntry accepts a plain string or an object form.
func parseTodoEntry(entry any) (content, activeForm, status string, warned bool, err error) {
	switch v := entry.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", "", "", false, fmt.Errorf("empty todo content")
		}
		return v, "", session.StatusPending, false, nil
	case map[string]any:
		content, _ = v["content"].(string)
		if strings.TrimSpace(content) == "" {
			return "", "", "", false, fmt.Errorf("missing content")
		}
		activeForm, _ = v["active_form"].(string)
		status, _ = v["status"].(string)
		if status == "" {
			return content, activeForm, session.StatusPending, false, nil
		}
		if !session.ValidStatus(status) {
			return content, activeForm, session.StatusPending, true, nil
		}
		return content, activeForm, status, false, nil
	}
	return "", "", "", false, fmt.Errorf("unsupported todo entry type %T", entry)
}

func (p *Provider) updateTodoStatus(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	id := providers.StringArg(call, "todo_id")
	status := providers.StringArg(call, "status")
	notes := providers.StringArg(call, "notes")
	item, err := p.store.UpdateTodoStatus(p.store.Current(), id, status, notes)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return providers.Text(call, fmt.Sprintf("no todo with id %q in the current session", id)), nil
	}
	return providers.Text(call, fmt.Sprintf("[%s] %s -> %s", item.ID, item.Content, item.Status)), nil
}

func (p *Provider) getCurrentTodos(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	s := p.store.Current()
	items := s.OrderedTodos()
	if len(items) == 0 {
		return providers.Text(call, "no todos in the current session"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "todos in session %s:\n", s.ID)
	for _, item := range items {
		fmt.Fprintf(&b, "[%s] %s (%s)", item.ID, item.Content, item.Status)
		if item.Notes != "" {
			fmt.Fprintf(&b, " (%s)", item.Notes)
		}
		b.WriteString("\n")
	}
	return providers.Text(call, strings.TrimRight(b.String(), "\n")), nil
}
