package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"conduit/internal/ports"
	"conduit/internal/toolregistry"
)

const samplePlugin = `package echo

import (
	"fmt"
	"strings"

	"conduit/pkg/pluginapi"
)

type provider struct{}

func New() pluginapi.Provider { return &provider{} }

func (p *provider) Name() string      { return "echo" }
func (p *provider) Initialize() error { return nil }
func (p *provider) Shutdown() error   { return nil }

func (p *provider) Tools() []pluginapi.Tool {
	return []pluginapi.Tool{
		{
			Name:        "shout",
			Description: "Uppercase the given text",
			Category:    "utilities",
			Schema: pluginapi.Schema{
				Type: "object",
				Properties: map[string]pluginapi.Property{
					"text": {Type: "string", Description: "Text to uppercase"},
				},
				Required: []string{"text"},
			},
			Run: func(args map[string]any) (string, error) {
				text, ok := args["text"].(string)
				if !ok {
					return "", fmt.Errorf("missing text")
				}
				return strings.ToUpper(text), nil
			},
		},
	}
}
`

const updatedPlugin = `package echo

import "conduit/pkg/pluginapi"

type provider struct{}

func New() pluginapi.Provider { return &provider{} }

func (p *provider) Name() string      { return "echo" }
func (p *provider) Initialize() error { return nil }
func (p *provider) Shutdown() error   { return nil }

func (p *provider) Tools() []pluginapi.Tool {
	return []pluginapi.Tool{
		{Name: "whisper", Description: "Return the text unchanged",
			Run: func(args map[string]any) (string, error) {
				text, _ := args["text"].(string)
				return text, nil
			}},
	}
}
`

func writePlugin(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	return path
}

func TestLoadFileRegistersTools(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "echo.go", samplePlugin)
	registry := toolregistry.New(nil)
	loader := NewLoader(registry, nil)

	record, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if record.ProviderName != "echo" {
		t.Fatalf("expected provider echo, got %s", record.ProviderName)
	}
	entry, err := registry.Get("echo_shout")
	if err != nil {
		t.Fatalf("tool not registered: %v", err)
	}

	result, err := entry.Executor.Execute(context.Background(), ports.ToolCall{
		ID: "c1", Name: "echo_shout", Arguments: map[string]any{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Content != "HELLO" {
		t.Fatalf("expected HELLO, got %q", result.Content)
	}
}

func TestLoadFileShortCircuitsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "echo.go", samplePlugin)
	registry := toolregistry.New(nil)
	loader := NewLoader(registry, nil)

	first, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	second, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if first != second {
		t.Fatalf("unchanged content must return the same record")
	}
}

func TestReloadReplacesTools(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "echo.go", samplePlugin)
	registry := toolregistry.New(nil)
	loader := NewLoader(registry, nil)

	if _, err := loader.LoadFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	writePlugin(t, dir, "echo.go", updatedPlugin)
	record, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(record.ToolNames) != 1 || record.ToolNames[0] != "echo_whisper" {
		t.Fatalf("unexpected tools after reload: %v", record.ToolNames)
	}
	if registry.Has("echo_shout") {
		t.Fatalf("old tool must be unregistered on reload")
	}
	if !registry.Has("echo_whisper") {
		t.Fatalf("new tool missing after reload")
	}
}

func TestUnloadRemovesTools(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "echo.go", samplePlugin)
	registry := toolregistry.New(nil)
	loader := NewLoader(registry, nil)

	if _, err := loader.LoadFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !loader.Unload(path) {
		t.Fatalf("unload reported miss")
	}
	if registry.Size() != 0 {
		t.Fatalf("tools remain after unload: %d", registry.Size())
	}
	if loader.Unload(path) {
		t.Fatalf("second unload must be a miss")
	}
}

func TestDiscoverAllSkipsUnderscoreAndRejected(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "echo.go", samplePlugin)
	writePlugin(t, dir, "_draft.go", samplePlugin)
	writePlugin(t, dir, "evil.go", "package evil\n\nimport \"os\"\n\nfunc New() any { return os.Args }\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	registry := toolregistry.New(nil)
	loader := NewLoader(registry, nil)
	loaded := loader.DiscoverAll([]string{dir, filepath.Join(dir, "missing")})
	if loaded != 1 {
		t.Fatalf("expected 1 loaded plugin, got %d", loaded)
	}
	if len(loader.Records()) != 1 {
		t.Fatalf("expected 1 record")
	}
}
