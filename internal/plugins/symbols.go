package plugins

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"conduit/pkg/pluginapi"
)

// Symbols exposes pkg/pluginapi to interpreted plugin code, laid out the
// way yaegi extract emits bindings.
var Symbols = interp.Exports{
	"conduit/pkg/pluginapi/pluginapi": {
		"Property":  reflect.ValueOf((*pluginapi.Property)(nil)),
		"Schema":    reflect.ValueOf((*pluginapi.Schema)(nil)),
		"Tool":      reflect.ValueOf((*pluginapi.Tool)(nil)),
		"Provider":  reflect.ValueOf((*pluginapi.Provider)(nil)),
		"_Provider": reflect.ValueOf((*_conduit_pkg_pluginapi_Provider)(nil)),
	},
}

// _conduit_pkg_pluginapi_Provider is an interface wrapper so interpreted
// types can satisfy pluginapi.Provider.
type _conduit_pkg_pluginapi_Provider struct {
	IValue      interface{}
	WInitialize func() error
	WName       func() string
	WShutdown   func() error
	WTools      func() []pluginapi.Tool
}

func (W _conduit_pkg_pluginapi_Provider) Initialize() error       { return W.WInitialize() }
func (W _conduit_pkg_pluginapi_Provider) Name() string            { return W.WName() }
func (W _conduit_pkg_pluginapi_Provider) Shutdown() error         { return W.WShutdown() }
func (W _conduit_pkg_pluginapi_Provider) Tools() []pluginapi.Tool { return W.WTools() }
