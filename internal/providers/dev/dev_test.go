package dev

import (
	"context"
	"strings"
	"testing"

	"conduit/internal/ports"
)

type recordedCall struct {
	name string
	args []string
}

type fakeExec struct {
	calls  []recordedCall
	stdout string
	stderr string
	exit   int
	err    error
}

func (f *fakeExec) run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	return f.stdout, f.stderr, f.exit, f.err
}

func newTestProvider(f *fakeExec) *Provider {
	p := New(Config{Dir: "/tmp/project"})
	p.run = f.run
	return p
}

func call(t *testing.T, p *Provider, name string, args map[string]any) (*ports.ToolResult, error) {
	t.Helper()
	for _, tool := range p.Tools() {
		if tool.Definition().Name == name {
			return tool.Execute(context.Background(), ports.ToolCall{ID: "c1", Name: name, Arguments: args})
		}
	}
	t.Fatalf("tool %s not declared", name)
	return nil, nil
}

func TestGitStatus(t *testing.T) {
	f := &fakeExec{stdout: "On branch main\nnothing to commit\n"}
	p := newTestProvider(f)

	result, err := call(t, p, "git_status", nil)
	if err != nil {
		t.Fatalf("git_status failed: %v", err)
	}
	if !strings.Contains(result.Content, "On branch main") {
		t.Fatalf("unexpected content: %s", result.Content)
	}
	got := f.calls[0]
	if got.name != "git" || got.args[0] != "status" {
		t.Fatalf("unexpected command: %v", got)
	}
}

func TestGitCommitFailureReturnsStderr(t *testing.T) {
	f := &fakeExec{stderr: "nothing to commit, working tree clean\n", exit: 1}
	p := newTestProvider(f)

	result, err := call(t, p, "git_commit", map[string]any{"message": "wip"})
	if err != nil {
		t.Fatalf("expected result, got error %v", err)
	}
	if result.Kind != ports.ResultError {
		t.Fatalf("expected error kind, got %s", result.Kind)
	}
	if !strings.Contains(result.Content, "nothing to commit") {
		t.Fatalf("stderr not surfaced: %s", result.Content)
	}
}

func TestGitAddDefaultsToAll(t *testing.T) {
	f := &fakeExec{}
	p := newTestProvider(f)

	if _, err := call(t, p, "git_add", nil); err != nil {
		t.Fatalf("git_add failed: %v", err)
	}
	got := f.calls[0]
	if strings.Join(got.args, " ") != "add ." {
		t.Fatalf("unexpected args: %v", got.args)
	}

	if _, err := call(t, p, "git_add", map[string]any{"files": []any{"a.go", "b.go"}}); err != nil {
		t.Fatalf("git_add failed: %v", err)
	}
	got = f.calls[1]
	if strings.Join(got.args, " ") != "add a.go b.go" {
		t.Fatalf("unexpected args: %v", got.args)
	}
}

func TestFindFiles(t *testing.T) {
	f := &fakeExec{stdout: "./internal/a.go\n./internal/b.go\n"}
	p := newTestProvider(f)

	result, err := call(t, p, "find_files", map[string]any{"pattern": "*.go"})
	if err != nil {
		t.Fatalf("find_files failed: %v", err)
	}
	if !strings.Contains(result.Content, "a.go") {
		t.Fatalf("unexpected content: %s", result.Content)
	}
	got := f.calls[0]
	if got.name != "find" {
		t.Fatalf("expected find, got %s", got.name)
	}
}

func TestSearchInFilesNoMatches(t *testing.T) {
	f := &fakeExec{exit: 1}
	p := newTestProvider(f)

	result, err := call(t, p, "search_in_files", map[string]any{"query": "needle"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !result.Succeeded() || result.Content != "no matches found" {
		t.Fatalf("grep exit 1 must be a clean miss, got %s %q", result.Kind, result.Content)
	}
}

func TestInstallPackage(t *testing.T) {
	f := &fakeExec{stdout: "installed\n"}
	p := newTestProvider(f)

	if _, err := call(t, p, "install_package", map[string]any{"manager": "pip", "package": "requests"}); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	got := f.calls[0]
	if got.name != "pip" || strings.Join(got.args, " ") != "install requests" {
		t.Fatalf("unexpected command: %v", got)
	}

	if _, err := call(t, p, "install_package", map[string]any{"manager": "cargo", "package": "x"}); err == nil {
		t.Fatalf("expected error for unsupported manager")
	}
}
