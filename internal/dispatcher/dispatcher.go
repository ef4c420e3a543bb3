// Package dispatcher performs every tool invocation: argument validation
// and coercion, deadline enforcement, retry with linear backoff, telemetry
// and output post-validation.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/logging"
	"conduit/internal/observability"
	"conduit/internal/outputcheck"
	"conduit/internal/ports"
	"conduit/internal/session"
	"conduit/internal/toolregistry"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultBaseDelay = 1 * time.Second
)

// Options configures a Dispatcher.
type Options struct {
	DefaultTimeout    time.Duration
	DefaultMaxRetries int
	Logger            logging.Logger
	Metrics           *observability.Metrics
	Stats             *session.AgentStats
}

// Dispatcher is the reliable invocation path in front of the registry.
type Dispatcher struct {
	registry *toolregistry.Registry
	checker  *outputcheck.Validator
	logger   logging.Logger
	metrics  *observability.Metrics
	stats    *session.AgentStats

	defaultTimeout    time.Duration
	defaultMaxRetries int
}

// New creates a dispatcher over the registry.
func New(registry *toolregistry.Registry, checker *outputcheck.Validator, opts Options) *Dispatcher {
	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		registry:          registry,
		checker:           checker,
		logger:            logging.OrNop(opts.Logger),
		metrics:           opts.Metrics,
		stats:             opts.Stats,
		defaultTimeout:    timeout,
		defaultMaxRetries: opts.DefaultMaxRetries,
	}
}

// Dispatch resolves, validates and executes one tool call. It never returns
// a Go error for tool failures; every outcome is a ToolResult.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) *ports.ToolResult {
	started := time.Now()
	callID := "call_" + uuid.NewString()[:8]

	entry, err := d.registry.Get(name)
	if err != nil {
		return d.finish(ctx, name, &ports.ToolResult{
			CallID:    callID,
			Kind:      ports.ResultError,
			Message:   fmt.Sprintf("unknown tool %q", name),
			Error:     err,
			Duration:  time.Since(started),
			Timestamp: time.Now(),
		})
	}

	cleaned, problems := normalizeArguments(entry.Definition.Parameters, args)
	if len(problems) > 0 {
		d.logger.Debug("validation failed for %s: %v", entry.QualifiedName, problems)
		return d.finish(ctx, entry.QualifiedName, &ports.ToolResult{
			CallID:           callID,
			Kind:             ports.ResultError,
			Message:          fmt.Sprintf("argument validation failed for %s", entry.QualifiedName),
			Error:            &conduiterrors.ValidationError{Reason: strings.Join(problems, "; ")},
			ValidationErrors: problems,
			Duration:         time.Since(started),
			Timestamp:        time.Now(),
		})
	}

	timeout := entry.Meta.Timeout
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}
	maxRetries := entry.Meta.MaxRetries
	if maxRetries <= 0 {
		maxRetries = d.defaultMaxRetries
	}
	baseDelay := entry.Meta.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	call := ports.ToolCall{
		ID:        callID,
		Name:      entry.QualifiedName,
		Arguments: cleaned,
		Deadline:  time.Now().Add(timeout),
	}

	result, retries := d.executeWithRetry(ctx, entry, call, timeout, maxRetries, baseDelay)
	result.CallID = callID
	result.Retries = retries
	result.Duration = time.Since(started)
	result.Timestamp = time.Now()

	if result.Kind == ports.ResultSuccess || result.Kind == ports.ResultPartial {
		d.postValidate(entry, call, result)
	}
	return d.finish(ctx, entry.QualifiedName, result)
}

// executeWithRetry runs the provider executor up to maxRetries+1 times with
// linear base_delay*attempt waits. The executor runs on its own goroutine so
// an executor ignoring the context cannot stall the dispatcher beyond the
// deadline.
func (d *Dispatcher) executeWithRetry(
	ctx context.Context,
	entry *toolregistry.Entry,
	call ports.ToolCall,
	timeout time.Duration,
	maxRetries int,
	baseDelay time.Duration,
) (*ports.ToolResult, int) {
	attempts := 0
	var result *ports.ToolResult

	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := d.executeGuarded(attemptCtx, entry.Executor, call)
		if attemptCtx.Err() == context.DeadlineExceeded {
			timeoutErr := &conduiterrors.TimeoutError{
				Tool:    entry.QualifiedName,
				Elapsed: timeout.String(),
			}
			result = &ports.ToolResult{Kind: ports.ResultError, Error: timeoutErr,
				Message: timeoutErr.Error()}
			return timeoutErr
		}
		if err != nil {
			wrapped := err
			if !conduiterrors.IsValidation(err) && !conduiterrors.IsSecurity(err) &&
				!conduiterrors.IsTimeout(err) && !conduiterrors.IsConnection(err) {
				wrapped = &conduiterrors.ToolError{Tool: entry.QualifiedName, Err: err}
			}
			result = &ports.ToolResult{Kind: ports.ResultError, Error: wrapped, Message: wrapped.Error()}
			if !conduiterrors.IsRetryable(wrapped) {
				return backoff.Permanent(wrapped)
			}
			return wrapped
		}
		if res == nil {
			res = &ports.ToolResult{Kind: ports.ResultSuccess}
		}
		if res.Kind == "" {
			if res.Error != nil {
				res.Kind = ports.ResultError
			} else {
				res.Kind = ports.ResultSuccess
			}
		}
		result = res
		if res.Kind == ports.ResultError && res.Error != nil && conduiterrors.IsRetryable(res.Error) {
			return res.Error
		}
		return nil
	}

	lb := &linearBackOff{base: baseDelay, maxAttempts: maxRetries}
	_ = backoff.Retry(operation, backoff.WithContext(lb, ctx))
	return result, attempts - 1
}

// executeGuarded isolates the executor on a goroutine and converts panics
// into tool errors.
func (d *Dispatcher) executeGuarded(ctx context.Context, exec ports.ToolExecutor, call ports.ToolCall) (*ports.ToolResult, error) {
	type outcome struct {
		res *ports.ToolResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("tool execution panicked: %v", r)}
			}
		}()
		res, err := exec.Execute(ctx, call)
		ch <- outcome{res: res, err: err}
	}()
	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		// The goroutine runs to completion; its result is discarded.
		return nil, ctx.Err()
	}
}

// postValidate classifies the payload text and flips the result kind when
// the classification is ERROR. The payload is preserved either way.
func (d *Dispatcher) postValidate(entry *toolregistry.Entry, call ports.ToolCall, result *ports.ToolResult) {
	if d.checker == nil || result.Content == "" {
		return
	}
	class := inferCommandClass(entry.QualifiedName, call.Arguments)
	if class == "" {
		return
	}
	report := d.checker.Classify(class, result.Content, nil)
	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	result.Metadata["output_validation"] = report
	if d.stats != nil {
		d.stats.RecordOutputValidation(report.Status == outputcheck.StatusError,
			report.Status == outputcheck.StatusWarning)
	}
	if report.Status == outputcheck.StatusError {
		result.Kind = ports.ResultError
		if result.Message == "" {
			result.Message = "output validation flagged an error"
		}
	}
}

// inferCommandClass maps a tool name (and command argument when present)
// onto an output-validation command class.
func inferCommandClass(tool string, args map[string]any) string {
	switch {
	case strings.Contains(tool, "write_file"):
		return outputcheck.ClassFileCreation
	case strings.Contains(tool, "read_file"):
		return outputcheck.ClassFileReading
	case strings.Contains(tool, "list_directory"), strings.Contains(tool, "list_files"):
		return outputcheck.ClassDirectoryListing
	case strings.Contains(tool, "execute_command"), strings.Contains(tool, "git_"),
		strings.Contains(tool, "install_package"):
		if cmd, ok := args["command"].(string); ok && strings.Contains(cmd, "mkdir") {
			return outputcheck.ClassDirectoryCreation
		}
		return outputcheck.ClassCommandExecution
	}
	return ""
}

func (d *Dispatcher) finish(ctx context.Context, tool string, result *ports.ToolResult) *ports.ToolResult {
	success := result.Kind == ports.ResultSuccess
	d.registry.RecordCall(success, result.Duration)
	if d.metrics != nil {
		d.metrics.RecordToolExecution(ctx, tool, success, result.Retries, result.Duration)
	}
	if d.stats != nil {
		d.stats.RecordToolCall(success, result.Retries, len(result.ValidationErrors))
	}
	if !success {
		d.logger.Debug("tool %s failed: %v", tool, result.Error)
	}
	return result
}

// linearBackOff waits base*attempt between attempts and stops after
// maxAttempts retries, matching the descriptor retry contract.
type linearBackOff struct {
	base        time.Duration
	maxAttempts int
	attempt     int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt > b.maxAttempts {
		return backoff.Stop
	}
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
