// Package plugins discovers provider source files, validates them
// statically, interprets accepted files and registers their tools.
package plugins

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"conduit/internal/logging"
	"conduit/internal/ports"
	"conduit/internal/toolregistry"
	"conduit/pkg/pluginapi"
)

// Record tracks one loaded plugin file.
type Record struct {
	Path         string    `json:"path"`
	Hash         string    `json:"hash"`
	PackageName  string    `json:"package_name"`
	ProviderName string    `json:"provider_name"`
	ToolNames    []string  `json:"tool_names"`
	Warnings     []string  `json:"warnings,omitempty"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// Loader owns the plugin lifecycle: discover, validate, interpret,
// register, reload, unload.
type Loader struct {
	registry *toolregistry.Registry
	log      logging.Logger

	mu        sync.Mutex
	records   map[string]*Record
	providers map[string]pluginapi.Provider
}

func NewLoader(registry *toolregistry.Registry, log logging.Logger) *Loader {
	return &Loader{
		registry:  registry,
		log:       logging.OrNop(log),
		records:   make(map[string]*Record),
		providers: make(map[string]pluginapi.Provider),
	}
}

// DiscoverAll loads every plugin source file directly under the given
// directories. Underscore-prefixed files and subdirectories are skipped.
// Missing directories are not an error. Returns the number of loaded files.
func (l *Loader) DiscoverAll(dirs []string) int {
	loaded := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			l.log.Debug("plugin dir %s not readable: %v", dir, err)
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, "_") || !strings.HasSuffix(name, ".go") {
				continue
			}
			path := filepath.Join(dir, name)
			if _, err := l.LoadFile(path); err != nil {
				l.log.Warn("plugin %s rejected: %v", path, err)
				continue
			}
			loaded++
		}
	}
	return loaded
}

// LoadFile validates and interprets one plugin source file. An unchanged
// content hash short-circuits; a changed file is unloaded and replaced.
func (l *Loader) LoadFile(path string) (*Record, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin: %w", err)
	}
	sum := sha256.Sum256(source)
	hash := hex.EncodeToString(sum[:])

	l.mu.Lock()
	if prev, ok := l.records[path]; ok && prev.Hash == hash {
		l.mu.Unlock()
		return prev, nil
	}
	l.mu.Unlock()

	validation, err := Validate(path, source)
	if err != nil {
		return nil, err
	}
	for _, warning := range validation.Warnings {
		l.log.Warn("plugin %s: %s", path, warning)
	}

	provider, err := interpret(string(source), validation.PackageName)
	if err != nil {
		return nil, err
	}
	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("plugin %s initialize: %w", path, err)
	}
	tools := provider.Tools()
	if len(tools) == 0 {
		return nil, fmt.Errorf("plugin %s registers no tools", path)
	}

	// Replace a previous version before registering the new tools.
	l.Unload(path)

	record := &Record{
		Path:         path,
		Hash:         hash,
		PackageName:  validation.PackageName,
		ProviderName: provider.Name(),
		Warnings:     validation.Warnings,
		LoadedAt:     time.Now(),
	}
	for _, tool := range tools {
		name := l.registry.Register(provider.Name(), adaptTool(tool))
		record.ToolNames = append(record.ToolNames, name)
	}

	l.mu.Lock()
	l.records[path] = record
	l.providers[path] = provider
	l.mu.Unlock()

	l.log.Info("plugin %s loaded: provider %s, %d tools", path, record.ProviderName, len(record.ToolNames))
	return record, nil
}

// interpret evaluates the source and instantiates its provider via the
// package's New constructor.
func interpret(source, pkgName string) (pluginapi.Provider, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("interpreter stdlib: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("interpreter symbols: %w", err)
	}
	if _, err := i.Eval(source); err != nil {
		return nil, fmt.Errorf("interpret plugin: %w", err)
	}
	v, err := i.Eval(pkgName + ".New()")
	if err != nil {
		return nil, fmt.Errorf("instantiate provider: %w", err)
	}
	provider, ok := v.Interface().(pluginapi.Provider)
	if !ok {
		return nil, fmt.Errorf("%s.New() does not return a plugin provider", pkgName)
	}
	return provider, nil
}

// Unload removes a plugin's tools and shuts its provider down.
func (l *Loader) Unload(path string) bool {
	l.mu.Lock()
	record, ok := l.records[path]
	provider := l.providers[path]
	delete(l.records, path)
	delete(l.providers, path)
	l.mu.Unlock()
	if !ok {
		return false
	}
	removed := l.registry.UnregisterProvider(record.ProviderName)
	if provider != nil {
		if err := provider.Shutdown(); err != nil {
			l.log.Warn("plugin %s shutdown: %v", path, err)
		}
	}
	l.log.Info("plugin %s unloaded, %d tools removed", path, removed)
	return true
}

// Records lists loaded plugins sorted by path.
func (l *Loader) Records() []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := make([]*Record, 0, len(l.records))
	for _, record := range l.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records
}

// adaptTool bridges a pluginapi.Tool to the engine executor contract.
func adaptTool(tool pluginapi.Tool) ports.ToolExecutor {
	properties := make(map[string]ports.Property, len(tool.Schema.Properties))
	for name, prop := range tool.Schema.Properties {
		properties[name] = ports.Property{Type: prop.Type, Description: prop.Description}
	}
	schemaType := tool.Schema.Type
	if schemaType == "" {
		schemaType = "object"
	}
	category := tool.Category
	if category == "" {
		category = "utilities"
	}
	return &pluginTool{
		def: ports.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: ports.ParameterSchema{
				Type:       schemaType,
				Properties: properties,
				Required:   tool.Schema.Required,
			},
		},
		meta: ports.ToolMeta{Name: tool.Name, Category: category, Version: "1.0.0", Tags: []string{"plugin"}},
		run:  tool.Run,
	}
}

type pluginTool struct {
	def  ports.ToolDefinition
	meta ports.ToolMeta
	run  func(args map[string]any) (string, error)
}

func (t *pluginTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	text, err := t.run(call.Arguments)
	if err != nil {
		return nil, err
	}
	return &ports.ToolResult{CallID: call.ID, Kind: ports.ResultSuccess, Content: text}, nil
}

func (t *pluginTool) Definition() ports.ToolDefinition { return t.def }

func (t *pluginTool) Metadata() ports.ToolMeta { return t.meta }
