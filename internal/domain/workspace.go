package domain

// Defaults for the synthesized workspace used when none are configured.
const (
	DefaultWorkspaceID    = "default"
	DefaultWorkspaceName  = "Default Workspace"
	DefaultWorkspaceEmoji = "🔧"
	DefaultWorkspaceColor = "#0078d4"
)

// AgentRef is a workspace's reference to a catalog agent, with a
// per-assignment enabled flag.
type AgentRef struct {
	Kind    AgentKind `json:"type"`
	ID      string    `json:"id"`
	Enabled bool      `json:"enabled"`
}

// Workspace is a named context of agents sharing a folder and visual identity.
type Workspace struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Folder string     `json:"folder"`
	Emoji  string     `json:"emoji"`
	Color  string     `json:"color"`
	Agents []AgentRef `json:"agents"`

	// CurrentAgent indexes EnabledAgents(); 0 when none are enabled.
	CurrentAgent int `json:"currentAgentIndex"`
}

// EnabledAgents returns the enabled subsequence of Agents, in order.
func (w *Workspace) EnabledAgents() []AgentRef {
	out := make([]AgentRef, 0, len(w.Agents))
	for _, a := range w.Agents {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// CurrentAgentRef returns the agent the cursor points at.
func (w *Workspace) CurrentAgentRef() (AgentRef, bool) {
	enabled := w.EnabledAgents()
	if len(enabled) == 0 {
		return AgentRef{}, false
	}
	idx := w.CurrentAgent
	if idx < 0 || idx >= len(enabled) {
		idx = 0
	}
	return enabled[idx], true
}

// HasAgent reports whether an agent id is assigned to the workspace.
func (w *Workspace) HasAgent(id string) bool {
	for _, a := range w.Agents {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (w Workspace) Clone() Workspace {
	c := w
	if w.Agents != nil {
		c.Agents = make([]AgentRef, len(w.Agents))
		copy(c.Agents, w.Agents)
	}
	return c
}

// ClampCursor forces CurrentAgent into range for the enabled subsequence.
func (w *Workspace) ClampCursor() {
	n := len(w.EnabledAgents())
	if n == 0 || w.CurrentAgent < 0 || w.CurrentAgent >= n {
		w.CurrentAgent = 0
	}
}

// DisplayLabel is "<name> <emoji>".
func (w *Workspace) DisplayLabel() string {
	if w.Emoji == "" {
		return w.Name
	}
	return w.Name + " " + w.Emoji
}
