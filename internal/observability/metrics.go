// Package observability wires the engine counters into an OpenTelemetry
// meter backed by a Prometheus exporter. The bridge mounts the scrape
// handler under /metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics manages all engine metrics.
type Metrics struct {
	meter metric.Meter

	toolExecutions metric.Int64Counter
	toolDuration   metric.Float64Histogram
	toolRetries    metric.Int64Counter

	llmRequests     metric.Int64Counter
	llmTokensInput  metric.Int64Counter
	llmTokensOutput metric.Int64Counter

	queries        metric.Int64Counter
	sessionsActive metric.Int64UpDownCounter

	handler http.Handler
}

// New creates the metrics collector and its Prometheus scrape handler.
func New() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("conduit")

	m := &Metrics{meter: meter, handler: promhttp.Handler()}

	if m.toolExecutions, err = meter.Int64Counter(
		"conduit.tool.executions.total",
		metric.WithDescription("Total number of tool executions"),
		metric.WithUnit("{execution}"),
	); err != nil {
		return nil, err
	}
	if m.toolDuration, err = meter.Float64Histogram(
		"conduit.tool.duration",
		metric.WithDescription("Tool execution duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.toolRetries, err = meter.Int64Counter(
		"conduit.tool.retries.total",
		metric.WithDescription("Total retry attempts across tool executions"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return nil, err
	}
	if m.llmRequests, err = meter.Int64Counter(
		"conduit.llm.requests.total",
		metric.WithDescription("Total number of LLM requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.llmTokensInput, err = meter.Int64Counter(
		"conduit.llm.tokens.input",
		metric.WithDescription("Total input tokens sent to the LLM"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}
	if m.llmTokensOutput, err = meter.Int64Counter(
		"conduit.llm.tokens.output",
		metric.WithDescription("Total output tokens from the LLM"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}
	if m.queries, err = meter.Int64Counter(
		"conduit.queries.total",
		metric.WithDescription("Total user queries processed"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, err
	}
	if m.sessionsActive, err = meter.Int64UpDownCounter(
		"conduit.sessions.active",
		metric.WithDescription("Active sessions"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.handler == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// RecordToolExecution tracks one dispatch outcome.
func (m *Metrics) RecordToolExecution(ctx context.Context, tool string, success bool, retries int, elapsed time.Duration) {
	if m == nil || m.toolExecutions == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	)
	m.toolExecutions.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, elapsed.Seconds(), attrs)
	if retries > 0 {
		m.toolRetries.Add(ctx, int64(retries), metric.WithAttributes(attribute.String("tool", tool)))
	}
}

// RecordLLMRequest tracks one model call with token usage.
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, success bool, promptTokens, completionTokens int) {
	if m == nil || m.llmRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.Bool("success", success),
	)
	m.llmRequests.Add(ctx, 1, attrs)
	if promptTokens > 0 {
		m.llmTokensInput.Add(ctx, int64(promptTokens), attrs)
	}
	if completionTokens > 0 {
		m.llmTokensOutput.Add(ctx, int64(completionTokens), attrs)
	}
}

// RecordQuery tracks one processed user query.
func (m *Metrics) RecordQuery(ctx context.Context, success bool) {
	if m == nil || m.queries == nil {
		return
	}
	m.queries.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// SessionOpened and SessionClosed adjust the active-session gauge.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m != nil && m.sessionsActive != nil {
		m.sessionsActive.Add(ctx, 1)
	}
}

func (m *Metrics) SessionClosed(ctx context.Context) {
	if m != nil && m.sessionsActive != nil {
		m.sessionsActive.Add(ctx, -1)
	}
}
