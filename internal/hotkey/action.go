// Package hotkey dispatches hotkey actions to the session cursors and the
// execution pipeline, one event at a time in arrival order.
package hotkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentclick/internal/pipeline"
)

// Action is one of the hotkey actions.
type Action string

const (
	ActionExecute       Action = "execute"
	ActionNextAgent     Action = "next-agent"
	ActionNextWorkspace Action = "next-workspace"
)

// Actions lists every action.
var Actions = []Action{ActionExecute, ActionNextAgent, ActionNextWorkspace}

// DefaultBindings maps key chords to actions for external binders.
var DefaultBindings = map[string]string{
	"pause":            string(ActionExecute),
	"ctrl+pause":       string(ActionNextAgent),
	"ctrl+shift+pause": string(ActionNextWorkspace),
}

// ParseAction accepts the canonical names plus underscore and camel forms.
func ParseAction(s string) (Action, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", "-")
	switch norm {
	case "execute", "exec", "run":
		return ActionExecute, nil
	case "next-agent", "nextagent", "cycle-agent":
		return ActionNextAgent, nil
	case "next-workspace", "nextworkspace", "cycle-workspace":
		return ActionNextWorkspace, nil
	}
	return "", fmt.Errorf("unknown hotkey action %q (want execute, next-agent or next-workspace)", s)
}

// Event is one hotkey press.
type Event struct {
	Action Action
	// Source names where the press came from (gateway, signal, tui).
	Source string
	// Request is passed to the pipeline for execute events.
	Request pipeline.Request
	At      time.Time
}
