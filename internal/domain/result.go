package domain

import (
	"fmt"
	"maps"
	"time"
)

// Status is the outcome class of one agent invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPartial Status = "partial"
)

// Metadata keys recorded on every ExecutionResult.
const (
	MetaRunID      = "run_id"
	MetaAgentID    = "agent_id"
	MetaAgentType  = "agent_type"
	MetaWorkspace  = "workspace_id"
	MetaFocusFile  = "focus_file"
	MetaInputType  = "input_type"
	MetaDurationMs = "duration_ms"
	MetaAttempts   = "attempts"
	MetaProvider   = "provider"
	MetaError      = "error"
)

// ExecutionResult is the outcome of one agent invocation. It is built once by
// NewExecutionResult and not modified afterwards.
type ExecutionResult struct {
	Output   string         `json:"output"`
	Status   Status         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}

// NewExecutionResult copies metadata so later caller mutations do not leak in.
func NewExecutionResult(output string, status Status, metadata map[string]any) ExecutionResult {
	return ExecutionResult{
		Output:   output,
		Status:   status,
		Metadata: maps.Clone(metadata),
		At:       time.Now(),
	}
}

// IsSuccess reports whether the run completed without any failure markers.
func (r ExecutionResult) IsSuccess() bool { return r.Status == StatusSuccess }

// Meta returns a metadata value as a string, or "" when unset.
func (r ExecutionResult) Meta(key string) string {
	v, ok := r.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
