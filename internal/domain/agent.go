// Package domain holds the core AgentClick types shared across packages.
package domain

import (
	"fmt"
	"sync"
	"time"
)

// AgentKind is the closed set of agent definition kinds. The kind is fixed by
// the directory the definition was discovered in.
type AgentKind string

const (
	KindCommand AgentKind = "command"
	KindSkill   AgentKind = "skill"
	KindAgent   AgentKind = "agent"
)

// AllKinds lists every AgentKind in catalog scan order.
var AllKinds = []AgentKind{KindCommand, KindSkill, KindAgent}

// FallbackColor is used when neither the definition nor its kind supplies a color.
const FallbackColor = "#95a5a6"

// ParseAgentKind converts a string into an AgentKind.
func ParseAgentKind(s string) (AgentKind, error) {
	k := AgentKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown agent kind %q (want command, skill or agent)", s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k AgentKind) Valid() bool {
	switch k {
	case KindCommand, KindSkill, KindAgent:
		return true
	}
	return false
}

// DefaultEmoji returns the emoji shown for an agent of this kind when its
// definition does not set one.
func (k AgentKind) DefaultEmoji() string {
	switch k {
	case KindCommand:
		return "📝"
	case KindSkill:
		return "🎯"
	case KindAgent:
		return "🤖"
	default:
		return "❓"
	}
}

// DefaultColor returns the accent color for this kind.
func (k AgentKind) DefaultColor() string {
	switch k {
	case KindCommand:
		return "#3498db"
	case KindSkill:
		return "#9b59b6"
	case KindAgent:
		return "#2ecc71"
	default:
		return FallbackColor
	}
}

// Agent is one invokable prompt definition discovered by the catalog.
// The body is loaded lazily and memoized on the instance, so agents are
// always handled by pointer.
type Agent struct {
	ID          string         `json:"id"`
	Kind        AgentKind      `json:"kind"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     string         `json:"version,omitempty"`
	Source      string         `json:"source"`
	Emoji       string         `json:"emoji"`
	Color       string         `json:"color"`
	Enabled     bool           `json:"enabled"`
	Workspace   string         `json:"workspace,omitempty"` // owning workspace id; empty when unassigned
	Tools       []string       `json:"tools,omitempty"`
	CustomTools []string       `json:"customTools,omitempty"`
	Allowed     []string       `json:"allowedTools,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	ModTime     time.Time      `json:"modTime"`
	Size        int64          `json:"size"`

	mu      sync.Mutex
	content *string
}

// Content returns the memoized body and whether it has been loaded.
func (a *Agent) Content() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.content == nil {
		return "", false
	}
	return *a.content, true
}

// SetContent memoizes the body.
func (a *Agent) SetContent(body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.content = &body
}

// SystemPrompt returns the instruction text used when the body is blank.
func (a *Agent) SystemPrompt() string {
	return fmt.Sprintf("You are %s, %s. Type: %s. Use your capabilities to assist the user effectively.",
		a.Name, a.Description, a.Kind)
}

// DisplayLabel is the "<emoji> <name>" string shown in notifications and listings.
func (a *Agent) DisplayLabel() string {
	if a.Emoji == "" {
		return a.Name
	}
	return a.Emoji + " " + a.Name
}
