package remote

import (
	"fmt"
	"path"
	"strings"

	conduiterrors "conduit/internal/errors"
)

// writeExtensions is the whitelist for remote file writes.
var writeExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".cfg":  true,
	".ini":  true,
	".sh":   true,
	".sql":  true,
	".csv":  true,
	".xml":  true,
	".html": true,
	".css":  true,
}

// checkPath rejects traversal and absolute paths. Remote paths are always
// relative to the workspace.
func checkPath(p string) error {
	if strings.TrimSpace(p) == "" {
		return &conduiterrors.ValidationError{Field: "path", Reason: "empty path"}
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "~") {
		return &conduiterrors.SecurityError{Reason: fmt.Sprintf("absolute path not allowed: %s", p)}
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return &conduiterrors.SecurityError{Reason: fmt.Sprintf("path traversal not allowed: %s", p)}
		}
	}
	return nil
}

// checkWritePath additionally enforces the extension whitelist.
func checkWritePath(p string) error {
	if err := checkPath(p); err != nil {
		return err
	}
	ext := strings.ToLower(path.Ext(p))
	if !writeExtensions[ext] {
		return &conduiterrors.SecurityError{Reason: fmt.Sprintf("file extension %q not allowed for writes", ext)}
	}
	return nil
}

// checkRepoName accepts a single plain path segment.
func checkRepoName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &conduiterrors.ValidationError{Field: "name", Reason: "empty repository name"}
	}
	if strings.ContainsAny(name, "/\\") || name == ".." || name == "." {
		return &conduiterrors.SecurityError{Reason: fmt.Sprintf("invalid repository name %q", name)}
	}
	return nil
}

// shellQuote single-quotes s for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
