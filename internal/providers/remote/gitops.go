package remote

import (
	"context"
	"fmt"
	"strings"

	"conduit/internal/ports"
	"conduit/internal/providers"
)

// gitTools are the git wrappers scoped to the selected repository.
func (p *Provider) gitTools(meta ports.ToolMeta) []ports.ToolExecutor {
	return []ports.ToolExecutor{
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_status",
				Description: "Show the working tree status of the current repository.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				return p.git(ctx, call, "status")
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_add",
				Description: "Stage files in the current repository. Defaults to all changes.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"files": {Type: "array", Description: "File paths to stage, defaults to ."},
					},
				},
			},
			Meta: meta,
			Run:  p.gitAdd,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_commit",
				Description: "Commit staged changes in the current repository.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"message": {Type: "string", Description: "Commit message"},
					},
					Required: []string{"message"},
				},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				message := providers.StringArg(call, "message")
				if strings.TrimSpace(message) == "" {
					return nil, fmt.Errorf("empty commit message")
				}
				return p.git(ctx, call, "commit", "-m", message)
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_log",
				Description: "Show recent commits of the current repository.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"count": {Type: "integer", Description: "Number of commits, defaults to 10"},
					},
				},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				count := providers.IntArg(call, "count", 10)
				if count < 1 {
					count = 10
				}
				return p.git(ctx, call, "log", "--oneline", "-n", fmt.Sprintf("%d", count))
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_diff",
				Description: "Show unstaged changes of the current repository, optionally for one file.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"file": {Type: "string", Description: "Optional file path"},
					},
				},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				if file := providers.StringArg(call, "file"); file != "" {
					if err := checkPath(file); err != nil {
						return nil, err
					}
					return p.git(ctx, call, "diff", "--", file)
				}
				return p.git(ctx, call, "diff")
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_branch",
				Description: "List branches of the current repository.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				return p.git(ctx, call, "branch", "-a")
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_checkout",
				Description: "Check out a branch in the current repository, optionally creating it.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"branch": {Type: "string", Description: "Branch name"},
						"create": {Type: "boolean", Description: "Create the branch first"},
					},
					Required: []string{"branch"},
				},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				branch := providers.StringArg(call, "branch")
				if strings.TrimSpace(branch) == "" {
					return nil, fmt.Errorf("empty branch name")
				}
				if create, _ := call.Arguments["create"].(bool); create {
					return p.git(ctx, call, "checkout", "-b", branch)
				}
				return p.git(ctx, call, "checkout", branch)
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_push",
				Description: "Push the current repository to its default remote.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				return p.git(ctx, call, "push")
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_pull",
				Description: "Pull the current repository from its default remote.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: meta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				return p.git(ctx, call, "pull")
			},
		},
	}
}

func (p *Provider) gitAdd(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	files := []string{"."}
	if raw, ok := call.Arguments["files"].([]any); ok && len(raw) > 0 {
		files = files[:0]
		for _, f := range raw {
			s, ok := f.(string)
			if !ok {
				return nil, fmt.Errorf("files must be strings, got %T", f)
			}
			if err := checkPath(s); err != nil {
				return nil, err
			}
			files = append(files, s)
		}
	}
	return p.git(ctx, call, append([]string{"add"}, files...)...)
}

// git runs one git subcommand inside the selected repository.
func (p *Provider) git(ctx context.Context, call ports.ToolCall, args ...string) (*ports.ToolResult, error) {
	p.mu.Lock()
	repo := p.currentRepo
	p.mu.Unlock()
	if repo == "" {
		return errorResult(call, "no repository selected; use clone_repository or switch_repository first"), nil
	}
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	command := fmt.Sprintf("cd %s && git %s", shellQuote(p.ws+"/"+repo), strings.Join(quoted, " "))
	result, err := p.run(ctx, command, nil)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		message := strings.TrimSpace(result.Stderr)
		if message == "" {
			message = strings.TrimSpace(result.Stdout)
		}
		return errorResult(call, fmt.Sprintf("git %s failed: %s", args[0], message)), nil
	}
	out := strings.TrimSpace(result.Stdout)
	if out == "" {
		out = fmt.Sprintf("git %s completed", args[0])
	}
	return providers.Text(call, out), nil
}
