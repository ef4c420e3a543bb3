package sshpool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sshDialer builds the production DialFunc: private-key auth over tcp,
// wrapping the resulting client as a Conn.
func sshDialer(keyPath string, timeout time.Duration) DialFunc {
	return func(ctx context.Context, host, user string) (Conn, error) {
		keyData, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		config := &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         timeout,
		}
		addr := host
		if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
			addr = net.JoinHostPort(host, "22")
		}
		dialer := net.Dialer{Timeout: timeout}
		netConn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		c, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
		if err != nil {
			netConn.Close()
			return nil, err
		}
		return &sshConn{client: ssh.NewClient(c, chans, reqs)}, nil
	}
}

type sshConn struct {
	client *ssh.Client
}

func (c *sshConn) Run(ctx context.Context, command string, stdin io.Reader) (*CommandResult, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	case err := <-done:
		result := &CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func (c *sshConn) Files() (FileClient, error) {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, fmt.Errorf("open sftp: %w", err)
	}
	return &sftpFiles{client: client}, nil
}

func (c *sshConn) Ping() error {
	_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
	return err
}

func (c *sshConn) Close() error {
	return c.client.Close()
}

type sftpFiles struct {
	client *sftp.Client
}

func (f *sftpFiles) ReadFile(path string) ([]byte, error) {
	file, err := f.client.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (f *sftpFiles) WriteFile(path string, data []byte) error {
	file, err := f.client.Create(path)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (f *sftpFiles) List(path string) ([]FileInfo, error) {
	infos, err := f.client.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, FileInfo{
			Name:    info.Name(),
			Size:    info.Size(),
			Mode:    info.Mode().String(),
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

func (f *sftpFiles) Close() error {
	return f.client.Close()
}
