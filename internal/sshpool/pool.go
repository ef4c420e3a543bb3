// Package sshpool maintains reusable SSH transports keyed by (host, user).
// Acquired connections are leased to one holder at a time, verified with a
// keepalive before reuse, and swept after an idle TTL.
package sshpool

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/logging"
)

const defaultIdleTTL = 300 * time.Second

// CommandResult is the outcome of one remote command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// FileInfo describes one remote directory entry.
type FileInfo struct {
	Name    string
	Size    int64
	Mode    string
	IsDir   bool
	ModTime time.Time
}

// Conn is a live transport to one remote host. The production implementation
// wraps an ssh client; tests substitute fakes.
type Conn interface {
	// Run executes command remotely. A non-zero exit status is reported in
	// the result, not as an error. stdin may be nil.
	Run(ctx context.Context, command string, stdin io.Reader) (*CommandResult, error)
	// Files opens an SFTP subsystem session. Callers close it after the
	// exchange.
	Files() (FileClient, error)
	// Ping verifies the transport still answers.
	Ping() error
	Close() error
}

// FileClient is one SFTP exchange.
type FileClient interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	List(path string) ([]FileInfo, error)
	Close() error
}

// DialFunc establishes a new transport. Tests inject fakes here.
type DialFunc func(ctx context.Context, host, user string) (Conn, error)

// Options configure the pool.
type Options struct {
	KeyPath     string
	DialTimeout time.Duration
	IdleTTL     time.Duration
	Logger      logging.Logger
	Dial        DialFunc
}

type entry struct {
	conn     Conn
	lastUsed time.Time
	inUse    bool
}

// Pool caches one transport per (host, user).
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
	opts    Options
	log     logging.Logger
	closed  bool
	done    chan struct{}
}

// New builds a pool. When opts.Dial is nil the ssh/sftp dialer is used.
func New(opts Options) *Pool {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = sshDialer(opts.KeyPath, opts.DialTimeout)
	}
	return &Pool{
		entries: make(map[string]*entry),
		opts:    opts,
		log:     logging.OrNop(opts.Logger),
		done:    make(chan struct{}),
	}
}

func key(host, user string) string { return user + "@" + host }

// Lease is one scoped acquisition. Release returns the transport to the
// pool; transient leases close their connection instead.
type Lease struct {
	Conn Conn

	pool      *Pool
	key       string
	transient bool
	released  bool
}

// Release returns the connection to the pool. Safe to call once.
func (l *Lease) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	if l.transient {
		l.Conn.Close()
		return
	}
	l.pool.mu.Lock()
	defer l.pool.mu.Unlock()
	if e, ok := l.pool.entries[l.key]; ok && e.conn == l.Conn {
		e.inUse = false
		e.lastUsed = time.Now()
	}
}

// Acquire returns a leased transport to host as user. The cached entry is
// reused when its keepalive answers; a stale entry is re-dialed. When the
// cached entry is already leased, a transient connection is dialed and
// closed on Release so each pooled entry has at most one holder.
func (p *Pool) Acquire(ctx context.Context, host, user string) (*Lease, error) {
	k := key(host, user)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &conduiterrors.ConnectionError{Target: k, Err: fmt.Errorf("pool closed")}
	}
	if e, ok := p.entries[k]; ok && !e.inUse {
		if err := e.conn.Ping(); err == nil {
			e.inUse = true
			e.lastUsed = time.Now()
			p.mu.Unlock()
			return &Lease{Conn: e.conn, pool: p, key: k}, nil
		}
		p.log.Debug("stale connection to %s, re-dialing", k)
		e.conn.Close()
		delete(p.entries, k)
	}
	busy := false
	if e, ok := p.entries[k]; ok && e.inUse {
		busy = true
	}
	p.mu.Unlock()

	conn, err := p.opts.Dial(ctx, host, user)
	if err != nil {
		return nil, &conduiterrors.ConnectionError{Target: k, Err: err}
	}
	if busy {
		return &Lease{Conn: conn, pool: p, key: k, transient: true}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		conn.Close()
		return nil, &conduiterrors.ConnectionError{Target: k, Err: fmt.Errorf("pool closed")}
	}
	if e, ok := p.entries[k]; ok {
		// Lost the race; keep the new connection as a transient lease.
		if e.inUse {
			return &Lease{Conn: conn, pool: p, key: k, transient: true}, nil
		}
		e.conn.Close()
	}
	p.entries[k] = &entry{conn: conn, lastUsed: time.Now(), inUse: true}
	p.log.Info("connected to %s", k)
	return &Lease{Conn: conn, pool: p, key: k}, nil
}

// With runs fn with a leased transport and always releases it.
func (p *Pool) With(ctx context.Context, host, user string, fn func(Conn) error) error {
	lease, err := p.Acquire(ctx, host, user)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(lease.Conn)
}

// Sweep closes entries idle beyond the TTL and reports how many were closed.
func (p *Pool) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-p.opts.IdleTTL)
	closed := 0
	for k, e := range p.entries {
		if e.inUse || e.lastUsed.After(cutoff) {
			continue
		}
		e.conn.Close()
		delete(p.entries, k)
		closed++
		p.log.Debug("swept idle connection %s", k)
	}
	return closed
}

// Start launches the periodic idle sweep until ctx is cancelled or the pool
// is closed.
func (p *Pool) Start(ctx context.Context) {
	interval := p.opts.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			case <-ticker.C:
				p.Sweep()
			}
		}
	}()
}

// Size reports the number of pooled entries.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close closes every pooled connection and rejects further acquisitions.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	for k, e := range p.entries {
		e.conn.Close()
		delete(p.entries, k)
	}
	return nil
}
