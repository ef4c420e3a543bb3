// Package pluginapi is the surface plugin source files are written
// against. It is interpreted into plugin code at load time and therefore
// depends on nothing outside the standard library.
package pluginapi

// Property describes one tool parameter.
type Property struct {
	Type        string
	Description string
}

// Schema declares a tool's parameters in JSON Schema shape.
type Schema struct {
	Type       string
	Properties map[string]Property
	Required   []string
}

// Tool is one capability a plugin offers.
type Tool struct {
	Name        string
	Description string
	Category    string
	Schema      Schema
	Run         func(args map[string]any) (string, error)
}

// Provider is the contract a plugin must satisfy. Plugin files export a
// New() constructor returning one.
type Provider interface {
	Name() string
	Initialize() error
	Shutdown() error
	Tools() []Tool
}
