package pipeline

import (
	"strings"
)

// State is the per-invocation pipeline state.
type State string

const (
	StateIdle           State = "idle"
	StateResolvingInput State = "resolving_input"
	StateRendering      State = "rendering"
	StateInvoking       State = "invoking"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateAborted        State = "aborted"
	// StateIgnored marks a trigger dropped by the debounce guard. The
	// pipeline itself never enters it.
	StateIgnored State = "ignored"
)

// Terminal reports whether s ends an invocation.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateAborted:
		return true
	}
	return false
}

// PartialPolicy decides whether successful output should be reported as
// partial.
type PartialPolicy func(output string) bool

// DefaultPartialMarkers are matched case-insensitively by the default policy.
var DefaultPartialMarkers = []string{"warning:", "error:", "failed", "but succeeded"}

// MarkerPolicy reports partial when non-blank output contains any marker,
// ignoring case.
func MarkerPolicy(markers ...string) PartialPolicy {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}
	return func(output string) bool {
		if strings.TrimSpace(output) == "" {
			return false
		}
		out := strings.ToLower(output)
		for _, m := range lowered {
			if strings.Contains(out, m) {
				return true
			}
		}
		return false
	}
}

// NeverPartial reports every successful run as success.
func NeverPartial(string) bool { return false }
