package plugins

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	conduiterrors "conduit/internal/errors"
)

// blockedImports cannot appear in plugin source. Plugins run interpreted in
// the engine process; these packages reach process state, the filesystem or
// the network directly.
var blockedImports = map[string]string{
	"os":            "process and filesystem access",
	"os/exec":       "subprocess execution",
	"syscall":       "raw system calls",
	"unsafe":        "memory safety escape",
	"net":           "raw network access",
	"net/http":      "network access",
	"plugin":        "native code loading",
	"reflect":       "reflection over engine internals",
	"runtime/debug": "runtime manipulation",
	"io/ioutil":     "filesystem access",
}

// dangerousPatterns reject a file on literal occurrence in source text,
// even inside strings, since interpreted code can assemble calls at
// runtime.
var dangerousPatterns = []string{
	"exec.Command",
	"os.Remove",
	"os.StartProcess",
	"syscall.",
	"eval(",
	"system(",
	"rm -rf",
}

// Validation is the static check outcome for one accepted file.
type Validation struct {
	PackageName string
	Warnings    []string
}

// Validate statically checks plugin source before interpretation. Parse
// failures, blocklisted imports and dangerous patterns reject the file
// with a security error; a missing provider constructor only warns.
func Validate(filename string, source []byte) (*Validation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, source, parser.ParseComments)
	if err != nil {
		return nil, &conduiterrors.SecurityError{Reason: fmt.Sprintf("plugin %s does not parse: %v", filename, err)}
	}

	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if reason, blocked := blockedImports[path]; blocked {
			return nil, &conduiterrors.SecurityError{
				Reason: fmt.Sprintf("plugin %s imports %q (%s)", filename, path, reason),
			}
		}
	}

	text := string(source)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(text, pattern) {
			return nil, &conduiterrors.SecurityError{
				Reason: fmt.Sprintf("plugin %s contains dangerous pattern %q", filename, pattern),
			}
		}
	}

	v := &Validation{PackageName: file.Name.Name}
	if !importsPluginAPI(file) {
		v.Warnings = append(v.Warnings, "file does not import the plugin API")
	}
	if !declaresConstructor(file) {
		v.Warnings = append(v.Warnings, "file does not declare a New() provider constructor")
	}
	return v, nil
}

func importsPluginAPI(file *ast.File) bool {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err == nil && strings.HasSuffix(path, "pkg/pluginapi") {
			return true
		}
	}
	return false
}

func declaresConstructor(file *ast.File) bool {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if ok && fn.Recv == nil && fn.Name.Name == "New" {
			return true
		}
	}
	return false
}
