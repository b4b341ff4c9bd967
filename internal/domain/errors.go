package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for rejected workspace mutations.
var (
	ErrLastWorkspace      = errors.New("cannot remove the last workspace")
	ErrDuplicateWorkspace = errors.New("workspace already exists")
	ErrImmutableID        = errors.New("workspace id cannot be changed")
)

// ErrNoAgentsEnabled is returned when the current workspace has no enabled
// agent to run.
var ErrNoAgentsEnabled = errors.New("no agents enabled in workspace")

// ValidationIssue is one structured, user-displayable diagnostic. Warnings
// never block an action; errors do.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Warning bool   `json:"warning,omitempty"`
}

func (v ValidationIssue) String() string {
	if v.Path == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// SplitIssues separates blocking errors from warnings.
func SplitIssues(issues []ValidationIssue) (errs, warnings []ValidationIssue) {
	for _, i := range issues {
		if i.Warning {
			warnings = append(warnings, i)
		} else {
			errs = append(errs, i)
		}
	}
	return errs, warnings
}

func joinIssues(issues []ValidationIssue) string {
	parts := make([]string, len(issues))
	for i, is := range issues {
		parts[i] = is.String()
	}
	return strings.Join(parts, "; ")
}

// ConfigLoadError reports a persisted file that is not structurally valid.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// ConfigValidationError carries every violation found, not just the first.
type ConfigValidationError struct {
	Subject string
	Issues  []ValidationIssue
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, joinIssues(e.Issues))
}

// WorkspaceNotFoundError references an unknown workspace id.
type WorkspaceNotFoundError struct {
	ID string
}

func (e *WorkspaceNotFoundError) Error() string {
	return fmt.Sprintf("workspace '%s' not found", e.ID)
}

// AgentNotFoundError references an unknown or disabled agent.
type AgentNotFoundError struct {
	ID       string
	Disabled bool
}

func (e *AgentNotFoundError) Error() string {
	if e.Disabled {
		return fmt.Sprintf("agent '%s' is disabled", e.ID)
	}
	return fmt.Sprintf("agent '%s' not found", e.ID)
}

// TemplateSyntaxError reports unbalanced delimiters.
type TemplateSyntaxError struct {
	AgentID string
	Issues  []ValidationIssue
}

func (e *TemplateSyntaxError) Error() string {
	return fmt.Sprintf("template syntax error for %s: %s", e.AgentID, joinIssues(e.Issues))
}

// TemplateValidationError reports a template that parses but references
// unknown variables or is otherwise unusable.
type TemplateValidationError struct {
	AgentID string
	Issues  []ValidationIssue
}

func (e *TemplateValidationError) Error() string {
	return fmt.Sprintf("template validation failed for %s: %s", e.AgentID, joinIssues(e.Issues))
}

// InputResolutionError is a file or URL read failure, including SSRF and
// size-cap rejections.
type InputResolutionError struct {
	Source string
	Reason string
	Err    error
}

func (e *InputResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolving input %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolving input %s: %s", e.Source, e.Reason)
}

func (e *InputResolutionError) Unwrap() error { return e.Err }

// AgentExecutionError is a failure of the external agent-execution capability.
type AgentExecutionError struct {
	AgentID string
	Message string
	Err     error
}

func (e *AgentExecutionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.AgentID == "" {
		return "agent execution failed: " + msg
	}
	return fmt.Sprintf("agent %s execution failed: %s", e.AgentID, msg)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// TransientConnectionError is the one retryable AgentExecutionError.
type TransientConnectionError struct {
	*AgentExecutionError
}

// NewTransientError wraps cause as a retryable execution error.
func NewTransientError(agentID string, cause error) *TransientConnectionError {
	return &TransientConnectionError{&AgentExecutionError{
		AgentID: agentID,
		Message: "transient connection error",
		Err:     cause,
	}}
}

func (e *TransientConnectionError) Unwrap() error { return e.AgentExecutionError }

// IsTransient reports whether err is, or wraps, a TransientConnectionError.
func IsTransient(err error) bool {
	var t *TransientConnectionError
	return errors.As(err, &t)
}
