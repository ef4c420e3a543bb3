// Package dev wraps local development tooling: git, filesystem search and
// package installation. Operations shell out to the host tool; failures
// come back as error-kind results carrying the tool's own output.
package dev

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"conduit/internal/logging"
	"conduit/internal/ports"
	"conduit/internal/providers"
)

// runCommand executes one local command. Tests substitute a fake.
type runCommand func(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)

// Provider is the local development tool group.
type Provider struct {
	dir string
	run runCommand
	log logging.Logger
}

// Config sets the working directory for every command.
type Config struct {
	Dir    string
	Logger logging.Logger
}

func New(cfg Config) *Provider {
	p := &Provider{
		dir: cfg.Dir,
		log: logging.OrNop(cfg.Logger),
	}
	p.run = p.execLocal
	return p
}

func (p *Provider) Name() string { return "dev" }

func (p *Provider) Initialize(ctx context.Context) error { return nil }

func (p *Provider) Shutdown(ctx context.Context) error { return nil }

func (p *Provider) execLocal(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = p.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	return stdout.String(), stderr.String(), exitCode, err
}

func (p *Provider) Tools() []ports.ToolExecutor {
	gitMeta := ports.ToolMeta{Category: "utilities", Tags: []string{"git", "local"}}
	fsMeta := ports.ToolMeta{Category: "file-ops", Tags: []string{"search", "local"}}

	return []ports.ToolExecutor{
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_status",
				Description: "Show the local working tree status.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: gitMeta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				return p.command(ctx, call, "git", "status")
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_add",
				Description: "Stage local files. Defaults to all changes.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"files": {Type: "array", Description: "File paths to stage, defaults to ."},
					},
				},
			},
			Meta: gitMeta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				args := []string{"add"}
				if raw, ok := call.Arguments["files"].([]any); ok && len(raw) > 0 {
					for _, f := range raw {
						s, ok := f.(string)
						if !ok {
							return nil, fmt.Errorf("files must be strings, got %T", f)
						}
						args = append(args, s)
					}
				} else {
					args = append(args, ".")
				}
				return p.command(ctx, call, "git", args...)
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_commit",
				Description: "Commit staged local changes.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"message": {Type: "string", Description: "Commit message"},
					},
					Required: []string{"message"},
				},
			},
			Meta: gitMeta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				message := providers.StringArg(call, "message")
				if strings.TrimSpace(message) == "" {
					return nil, fmt.Errorf("empty commit message")
				}
				return p.command(ctx, call, "git", "commit", "-m", message)
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_log",
				Description: "Show recent local commits.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"count": {Type: "integer", Description: "Number of commits, defaults to 10"},
					},
				},
			},
			Meta: gitMeta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				count := providers.IntArg(call, "count", 10)
				if count < 1 {
					count = 10
				}
				return p.command(ctx, call, "git", "log", "--oneline", "-n", fmt.Sprintf("%d", count))
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "git_diff",
				Description: "Show unstaged local changes, optionally for one file.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"file": {Type: "string", Description: "Optional file path"},
					},
				},
			},
			Meta: gitMeta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				if file := providers.StringArg(call, "file"); file != "" {
					return p.command(ctx, call, "git", "diff", "--", file)
				}
				return p.command(ctx, call, "git", "diff")
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "find_files",
				Description: "Find files by name pattern under the working directory.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"pattern": {Type: "string", Description: "Name glob, e.g. *.go"},
						"path":    {Type: "string", Description: "Subdirectory to search, defaults to ."},
					},
					Required: []string{"pattern"},
				},
			},
			Meta: fsMeta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				pattern := providers.StringArg(call, "pattern")
				root := providers.StringArg(call, "path")
				if root == "" {
					root = "."
				}
				return p.command(ctx, call, "find", root, "-name", pattern, "-not", "-path", "*/.git/*")
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "search_in_files",
				Description: "Search file contents under the working directory.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"query": {Type: "string", Description: "Text or regular expression to search for"},
						"path":  {Type: "string", Description: "Subdirectory to search, defaults to ."},
					},
					Required: []string{"query"},
				},
			},
			Meta: fsMeta,
			Run: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
				query := providers.StringArg(call, "query")
				root := providers.StringArg(call, "path")
				if root == "" {
					root = "."
				}
				result, err := p.command(ctx, call, "grep", "-rn", "--exclude-dir=.git", query, root)
				if err != nil {
					return nil, err
				}
				// grep exits 1 on no matches, which is not a failure.
				if result.Kind == ports.ResultError {
					if code, _ := result.Metadata["exit_code"].(int); code == 1 {
						return providers.Text(call, "no matches found"), nil
					}
				}
				return result, nil
			},
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "install_package",
				Description: "Install a package with the named package manager (go, pip, npm, apt).",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"manager": {Type: "string", Description: "Package manager", Enum: []any{"go", "pip", "npm", "apt"}},
						"package": {Type: "string", Description: "Package to install"},
					},
					Required: []string{"manager", "package"},
				},
			},
			Meta: ports.ToolMeta{Category: "utilities", Tags: []string{"packages"}, Timeout: 120 * time.Second},
			Run:  p.installPackage,
		},
	}
}

func (p *Provider) installPackage(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	manager := providers.StringArg(call, "manager")
	pkg := providers.StringArg(call, "package")
	if strings.TrimSpace(pkg) == "" {
		return nil, fmt.Errorf("empty package name")
	}
	switch manager {
	case "go":
		return p.command(ctx, call, "go", "install", pkg)
	case "pip":
		return p.command(ctx, call, "pip", "install", pkg)
	case "npm":
		return p.command(ctx, call, "npm", "install", pkg)
	case "apt":
		return p.command(ctx, call, "apt-get", "install", "-y", pkg)
	}
	return nil, fmt.Errorf("unsupported package manager %q", manager)
}

// command runs one local tool and maps its outcome to a result. A non-zero
// exit returns the tool's own text with an error kind and no retry.
func (p *Provider) command(ctx context.Context, call ports.ToolCall, name string, args ...string) (*ports.ToolResult, error) {
	p.log.Debug("local exec: %s %s", name, strings.Join(args, " "))
	stdout, stderr, exitCode, err := p.run(ctx, name, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if exitCode != 0 {
		message := strings.TrimSpace(stderr)
		if message == "" {
			message = strings.TrimSpace(stdout)
		}
		if message == "" {
			message = fmt.Sprintf("%s exited with code %d", name, exitCode)
		}
		result := &ports.ToolResult{CallID: call.ID, Kind: ports.ResultError, Content: message, Message: message}
		result.Metadata = map[string]any{"exit_code": exitCode}
		return result, nil
	}
	out := strings.TrimRight(stdout, "\n")
	if out == "" {
		out = fmt.Sprintf("%s completed", name)
	}
	return providers.Text(call, out), nil
}
