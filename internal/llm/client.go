// Package llm defines the external agent-execution capability.
//
// Providers wrap agent CLIs (Claude Code's `claude` binary or any other
// command that reads a prompt on stdin and prints a result) rather than
// talking to model APIs directly, so auth, tool execution and rate limiting
// stay with the CLI.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Request is one agent invocation.
type Request struct {
	// Instruction is the agent's system prompt (its definition body).
	Instruction string `json:"instruction"`
	// Prompt is the rendered input text.
	Prompt string `json:"prompt"`
	// WorkDir is the directory the agent runs in.
	WorkDir        string   `json:"workDir"`
	AllowedTools   []string `json:"allowedTools,omitempty"`
	PermissionMode string   `json:"permissionMode,omitempty"`
	Model          string   `json:"model,omitempty"`
}

// Usage tracks token consumption when the provider reports it.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	CacheRead    int `json:"cacheReadInputTokens,omitempty"`
	CacheWrite   int `json:"cacheCreationInputTokens,omitempty"`
}

// Response is the provider's output for one invocation.
type Response struct {
	Output    string        `json:"output"`
	SessionID string        `json:"sessionId,omitempty"`
	Usage     Usage         `json:"usage"`
	CostUSD   float64       `json:"costUsd,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	// Completed is false when the provider finished but flagged its own
	// run as incomplete (for example hitting a turn limit).
	Completed bool `json:"completed"`
}

// Client is implemented by every agent-execution provider.
type Client interface {
	// Run executes the agent and blocks until it finishes.
	Run(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name (e.g. "claude").
	Name() string
}

// ProviderError is returned when a provider reports a failure.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status (429, 500, 529...) when the provider reports one
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// StartError means the provider process could not be started at all.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
