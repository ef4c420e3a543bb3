// Package toolregistry holds the process-wide map from qualified tool names
// to descriptors and executors, with running call statistics and a
// capability index for discovery.
package toolregistry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"conduit/internal/logging"
	"conduit/internal/ports"
)

// Entry pairs a registered executor with its resolved identity.
type Entry struct {
	QualifiedName string
	Provider      string
	Definition    ports.ToolDefinition
	Meta          ports.ToolMeta
	Executor      ports.ToolExecutor
}

// Registry is the single coupling point between planner, dispatcher,
// providers and the plugin loader.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Entry
	stats  Stats
	index  *Index
	logger logging.Logger
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*Entry),
		index:  newIndex(),
		logger: logging.OrNop(logger),
	}
}

// QualifiedName derives the registry key for a tool. Tool names already
// carrying the provider prefix are kept as-is.
func QualifiedName(provider, local string) string {
	if provider == "" || strings.HasPrefix(local, provider+"_") {
		return local
	}
	return provider + "_" + local
}

// Register adds a tool under its qualified name. Name collisions warn and
// overwrite the prior binding; they are never silently dropped.
func (r *Registry) Register(provider string, tool ports.ToolExecutor) string {
	def := tool.Definition()
	meta := tool.Metadata()
	name := QualifiedName(provider, def.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		r.logger.Warn("tool %q already registered, overwriting", name)
	}
	meta.Provider = provider
	r.tools[name] = &Entry{
		QualifiedName: name,
		Provider:      provider,
		Definition:    def,
		Meta:          meta,
		Executor:      tool,
	}
	r.index.add(name, def, meta)
	return name
}

// RegisterProvider registers every tool of a provider group.
func (r *Registry) RegisterProvider(provider ports.Provider) []string {
	var names []string
	for _, tool := range provider.Tools() {
		names = append(names, r.Register(provider.Name(), tool))
	}
	return names
}

// Get resolves a tool by qualified name. An unqualified name resolves when
// exactly one registered tool carries it as local suffix.
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.tools[name]; ok {
		return entry, nil
	}
	var match *Entry
	for _, entry := range r.tools {
		if strings.TrimPrefix(entry.QualifiedName, entry.Provider+"_") == name {
			if match != nil {
				return nil, fmt.Errorf("tool name %q is ambiguous", name)
			}
			match = entry
		}
	}
	if match == nil {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return match, nil
}

// Has reports whether name resolves to a registered tool.
func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// List returns all registered entries.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*Entry, 0, len(r.tools))
	for _, entry := range r.tools {
		entries = append(entries, entry)
	}
	return entries
}

// Definitions returns every descriptor, for the system prompt and the bridge.
func (r *Registry) Definitions() []ports.ToolDefinition {
	entries := r.List()
	defs := make([]ports.ToolDefinition, 0, len(entries))
	for _, entry := range entries {
		def := entry.Definition
		def.Name = entry.QualifiedName
		defs = append(defs, def)
	}
	return defs
}

// ProviderCounts returns per-provider tool counts.
func (r *Registry) ProviderCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, entry := range r.tools {
		counts[entry.Provider]++
	}
	return counts
}

// Unregister removes a tool by qualified name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return fmt.Errorf("tool not found: %s", name)
	}
	delete(r.tools, name)
	r.index.remove(name)
	return nil
}

// UnregisterProvider removes every tool registered by a provider, used on
// plugin unload.
func (r *Registry) UnregisterProvider(provider string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for name, entry := range r.tools {
		if entry.Provider == provider {
			delete(r.tools, name)
			r.index.remove(name)
			removed++
		}
	}
	return removed
}

// Size returns the number of registered tools.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// RecordCall feeds the running counters after a dispatch.
func (r *Registry) RecordCall(success bool, elapsed time.Duration) {
	r.stats.record(success, elapsed)
}

// Snapshot returns the running counters.
func (r *Registry) Snapshot() StatsSnapshot {
	return r.stats.snapshot()
}

// Index exposes the capability index for discovery queries.
func (r *Registry) Index() *Index {
	return r.index
}
