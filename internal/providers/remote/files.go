package remote

import (
	"context"
	"fmt"
	"strings"

	"conduit/internal/ports"
	"conduit/internal/providers"
	"conduit/internal/sshpool"
)

// withFiles opens one SFTP exchange on a leased transport.
func (p *Provider) withFiles(ctx context.Context, fn func(sshpool.FileClient) error) error {
	return p.runner.With(ctx, p.host, p.user, func(conn sshpool.Conn) error {
		files, err := conn.Files()
		if err != nil {
			return err
		}
		defer files.Close()
		return fn(files)
	})
}

func (p *Provider) writeFile(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	filename := providers.StringArg(call, "filename")
	if err := checkWritePath(filename); err != nil {
		return nil, err
	}
	content, ok := call.Arguments["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content must be a string")
	}
	full := p.execDir() + "/" + filename
	err := p.withFiles(ctx, func(files sshpool.FileClient) error {
		return files.WriteFile(full, []byte(content))
	})
	if err != nil {
		return nil, err
	}
	result := providers.Text(call, fmt.Sprintf("wrote %d bytes to %s", len(content), filename))
	result.Metadata = map[string]any{"path": full, "bytes": len(content)}
	return result, nil
}

func (p *Provider) readFile(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	filename := providers.StringArg(call, "filename")
	if err := checkPath(filename); err != nil {
		return nil, err
	}
	full := p.execDir() + "/" + filename
	var data []byte
	err := p.withFiles(ctx, func(files sshpool.FileClient) error {
		var readErr error
		data, readErr = files.ReadFile(full)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	result := providers.Text(call, string(data))
	result.Metadata = map[string]any{"path": full, "bytes": len(data)}
	return result, nil
}

func (p *Provider) listDirectory(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := p.execDir()
	if sub := providers.StringArg(call, "path"); sub != "" {
		if err := checkPath(sub); err != nil {
			return nil, err
		}
		dir = dir + "/" + sub
	}
	var entries []sshpool.FileInfo
	err := p.withFiles(ctx, func(files sshpool.FileClient) error {
		var listErr error
		entries, listErr = files.List(dir)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return providers.Text(call, fmt.Sprintf("%s is empty", dir)), nil
	}
	var b strings.Builder
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		fmt.Fprintf(&b, "%s %10d  %s\n", e.Mode, e.Size, name)
	}
	result := providers.Text(call, strings.TrimRight(b.String(), "\n"))
	result.Metadata = map[string]any{"path": dir, "entries": len(entries)}
	return result, nil
}
