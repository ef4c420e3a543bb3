// Package remote exposes shell, file and repository tools executed on a
// remote host through the ssh pool.
package remote

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"conduit/internal/logging"
	"conduit/internal/ports"
	"conduit/internal/providers"
	"conduit/internal/sshpool"
)

const defaultWorkspace = "workspace"

// Runner lends a transport for one exchange. *sshpool.Pool satisfies it.
type Runner interface {
	With(ctx context.Context, host, user string, fn func(sshpool.Conn) error) error
}

// Config identifies the remote target.
type Config struct {
	Host      string
	User      string
	Workspace string
	Logger    logging.Logger
}

// Provider is the remote tool group. It tracks the currently selected
// repository; git tools operate inside it.
type Provider struct {
	runner Runner
	host   string
	user   string
	ws     string
	log    logging.Logger

	mu          sync.Mutex
	currentRepo string
}

func New(runner Runner, cfg Config) *Provider {
	ws := cfg.Workspace
	if ws == "" {
		ws = defaultWorkspace
	}
	return &Provider{
		runner: runner,
		host:   cfg.Host,
		user:   cfg.User,
		ws:     ws,
		log:    logging.OrNop(cfg.Logger),
	}
}

func (p *Provider) Name() string { return "remote" }

func (p *Provider) Initialize(ctx context.Context) error { return nil }

func (p *Provider) Shutdown(ctx context.Context) error { return nil }

func (p *Provider) Tools() []ports.ToolExecutor {
	execMeta := ports.ToolMeta{Category: "utilities", Tags: []string{"shell", "remote"}, Timeout: 60 * time.Second, RequiresAuth: true}
	fileMeta := ports.ToolMeta{Category: "file-ops", Tags: []string{"remote", "files"}, RequiresAuth: true}
	repoMeta := ports.ToolMeta{Category: "utilities", Tags: []string{"git", "repository"}, RequiresAuth: true}

	tools := []ports.ToolExecutor{
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name: "execute_command",
				Description: "Execute a shell command on the remote host inside the current " +
					"workspace. Returns exit code, stdout and stderr.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"command":    {Type: "string", Description: "Shell command to run"},
						"input_data": {Type: "string", Description: "Optional text piped to the command via stdin"},
					},
					Required: []string{"command"},
				},
			},
			Meta: execMeta,
			Run:  p.executeCommand,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "write_file",
				Description: "Write a text file on the remote host, relative to the current workspace.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"filename": {Type: "string", Description: "Relative file path"},
						"content":  {Type: "string", Description: "File content"},
					},
					Required: []string{"filename", "content"},
				},
			},
			Meta: fileMeta,
			Run:  p.writeFile,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "read_file",
				Description: "Read a text file from the remote host, relative to the current workspace.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"filename": {Type: "string", Description: "Relative file path"},
					},
					Required: []string{"filename"},
				},
			},
			Meta: fileMeta,
			Run:  p.readFile,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "list_directory",
				Description: "List a directory on the remote host, relative to the current workspace.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"path": {Type: "string", Description: "Relative directory path, defaults to the workspace root"},
					},
				},
			},
			Meta: fileMeta,
			Run:  p.listDirectory,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "init_workspace",
				Description: "Create the remote workspace directory if it does not exist.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: repoMeta,
			Run:  p.initWorkspace,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "clone_repository",
				Description: "Clone a git repository into the workspace and select it.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"url":  {Type: "string", Description: "Repository URL"},
						"name": {Type: "string", Description: "Optional directory name, derived from the URL when omitted"},
					},
					Required: []string{"url"},
				},
			},
			Meta: repoMeta,
			Run:  p.cloneRepository,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "list_repositories",
				Description: "List repositories present in the workspace.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: repoMeta,
			Run:  p.listRepositories,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "switch_repository",
				Description: "Select the repository subsequent git tools operate on.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"name": {Type: "string", Description: "Repository directory name"},
					},
					Required: []string{"name"},
				},
			},
			Meta: repoMeta,
			Run:  p.switchRepository,
		},
		&providers.FuncTool{
			Def: ports.ToolDefinition{
				Name:        "get_current_repository",
				Description: "Report the currently selected repository.",
				Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
			},
			Meta: repoMeta,
			Run:  p.getCurrentRepository,
		},
	}
	return append(tools, p.gitTools(repoMeta)...)
}

// run executes command on the remote host in dir, formatting the exchange.
func (p *Provider) run(ctx context.Context, command string, stdin io.Reader) (*sshpool.CommandResult, error) {
	var result *sshpool.CommandResult
	err := p.runner.With(ctx, p.host, p.user, func(conn sshpool.Conn) error {
		r, runErr := conn.Run(ctx, command, stdin)
		result = r
		return runErr
	})
	return result, err
}

func formatOutput(r *sshpool.CommandResult) string {
	return fmt.Sprintf("Exit Code: %d\nSTDOUT:\n%s\nSTDERR:\n%s", r.ExitCode, r.Stdout, r.Stderr)
}

// execDir is the directory commands run in: the selected repository when
// one is set, the workspace root otherwise.
func (p *Provider) execDir() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentRepo != "" {
		return p.ws + "/" + p.currentRepo
	}
	return p.ws
}

func (p *Provider) executeCommand(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	command := providers.StringArg(call, "command")
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("empty command")
	}
	var stdin io.Reader
	if input := providers.StringArg(call, "input_data"); input != "" {
		// The payload goes through stdin, never the command line.
		if !strings.HasSuffix(input, "\n") {
			input += "\n"
		}
		stdin = strings.NewReader(input)
	}
	full := fmt.Sprintf("cd %s && %s", shellQuote(p.execDir()), command)
	p.log.Debug("remote exec: %s", command)
	result, err := p.run(ctx, full, stdin)
	if err != nil {
		return nil, err
	}
	out := providers.Text(call, formatOutput(result))
	out.Metadata = map[string]any{"exit_code": result.ExitCode}
	return out, nil
}

func (p *Provider) initWorkspace(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	result, err := p.run(ctx, "mkdir -p "+shellQuote(p.ws), nil)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return errorResult(call, fmt.Sprintf("workspace init failed: %s", strings.TrimSpace(result.Stderr))), nil
	}
	return providers.Text(call, fmt.Sprintf("workspace ready at %s", p.ws)), nil
}

func (p *Provider) cloneRepository(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	url := providers.StringArg(call, "url")
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("empty url")
	}
	name := providers.StringArg(call, "name")
	if name == "" {
		name = repoNameFromURL(url)
	}
	if err := checkRepoName(name); err != nil {
		return nil, err
	}
	command := fmt.Sprintf("mkdir -p %s && cd %s && git clone %s %s",
		shellQuote(p.ws), shellQuote(p.ws), shellQuote(url), shellQuote(name))
	result, err := p.run(ctx, command, nil)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return errorResult(call, fmt.Sprintf("clone failed: %s", strings.TrimSpace(result.Stderr))), nil
	}
	p.mu.Lock()
	p.currentRepo = name
	p.mu.Unlock()
	p.log.Info("cloned %s into %s", url, name)
	return providers.Text(call, fmt.Sprintf("cloned %s into %s (now current)", url, name)), nil
}

func (p *Provider) listRepositories(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	result, err := p.run(ctx, "ls -1 "+shellQuote(p.ws), nil)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return providers.Text(call, "no repositories (workspace missing)"), nil
	}
	names := []string{}
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	if len(names) == 0 {
		return providers.Text(call, "no repositories"), nil
	}
	sort.Strings(names)
	p.mu.Lock()
	current := p.currentRepo
	p.mu.Unlock()
	var b strings.Builder
	b.WriteString("repositories:\n")
	for _, name := range names {
		if name == current {
			fmt.Fprintf(&b, "- %s (current)\n", name)
			continue
		}
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return providers.Text(call, strings.TrimRight(b.String(), "\n")), nil
}

func (p *Provider) switchRepository(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	name := providers.StringArg(call, "name")
	if err := checkRepoName(name); err != nil {
		return nil, err
	}
	result, err := p.run(ctx, "test -d "+shellQuote(p.ws+"/"+name), nil)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return errorResult(call, fmt.Sprintf("repository %q not found in %s", name, p.ws)), nil
	}
	p.mu.Lock()
	p.currentRepo = name
	p.mu.Unlock()
	return providers.Text(call, fmt.Sprintf("switched to %s", name)), nil
}

func (p *Provider) getCurrentRepository(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	p.mu.Lock()
	current := p.currentRepo
	p.mu.Unlock()
	if current == "" {
		return providers.Text(call, "no repository selected"), nil
	}
	return providers.Text(call, current), nil
}

// CurrentRepository returns the selection, used by tests.
func (p *Provider) CurrentRepository() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentRepo
}

func repoNameFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSuffix(trimmed, ".git")
}

// errorResult is a non-retryable failure payload: the outcome is definite,
// so no error is attached.
func errorResult(call ports.ToolCall, message string) *ports.ToolResult {
	return &ports.ToolResult{CallID: call.ID, Kind: ports.ResultError, Content: message, Message: message}
}
