package session

import (
	"sync"
	"time"
)

// AgentStats aggregates engine-wide counters. It is the single source of
// truth for statistics surfaced to users; the registry's per-call counters
// feed the same dispatch events.
type AgentStats struct {
	mu sync.Mutex

	QueriesTotal   int64
	QueriesSuccess int64
	QueriesFailed  int64

	ToolCallsTotal   int64
	ToolCallsSuccess int64
	ToolCallsFailed  int64

	ValidationErrors       int64
	RetriesTotal           int64
	OutputValidationErrors int64
	OutputValidationWarns  int64

	avgResponse time.Duration
}

// RecordQuery tracks one user query and its response time.
func (a *AgentStats) RecordQuery(success bool, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.QueriesTotal++
	if success {
		a.QueriesSuccess++
	} else {
		a.QueriesFailed++
	}
	a.avgResponse += (elapsed - a.avgResponse) / time.Duration(a.QueriesTotal)
}

// RecordToolCall tracks one dispatched call.
func (a *AgentStats) RecordToolCall(success bool, retries int, validationErrs int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ToolCallsTotal++
	if success {
		a.ToolCallsSuccess++
	} else {
		a.ToolCallsFailed++
	}
	a.RetriesTotal += int64(retries)
	a.ValidationErrors += int64(validationErrs)
}

// RecordOutputValidation tracks post-validation classifications.
func (a *AgentStats) RecordOutputValidation(isError, isWarning bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if isError {
		a.OutputValidationErrors++
	}
	if isWarning {
		a.OutputValidationWarns++
	}
}

// Snapshot returns a structured copy of the counters.
func (a *AgentStats) Snapshot() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{
		"queries_total":            a.QueriesTotal,
		"queries_success":          a.QueriesSuccess,
		"queries_failed":           a.QueriesFailed,
		"tool_calls_total":         a.ToolCallsTotal,
		"tool_calls_success":       a.ToolCallsSuccess,
		"tool_calls_failed":        a.ToolCallsFailed,
		"validation_errors":        a.ValidationErrors,
		"retries_total":            a.RetriesTotal,
		"output_validation_errors": a.OutputValidationErrors,
		"output_validation_warns":  a.OutputValidationWarns,
		"avg_response_time":        a.avgResponse.String(),
	}
}

// Stats exposes the store's aggregate counters.
func (st *Store) Stats() *AgentStats {
	return &st.stats
}
