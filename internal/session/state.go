// Package session owns the process-wide workspace and agent cursors.
package session

import (
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

// Store loads and persists the workspace collection.
// *config.WorkspaceStore satisfies it.
type Store interface {
	Load() ([]domain.Workspace, string, error)
	Save(workspaces []domain.Workspace, current string) error
}

// Signal tells the caller what a cycle operation did.
type Signal int

const (
	Advanced Signal = iota
	NoAgentsEnabled
	OnlyOneAgent
	OnlyOneWorkspace
)

func (s Signal) String() string {
	switch s {
	case Advanced:
		return "advanced"
	case NoAgentsEnabled:
		return "no agents enabled"
	case OnlyOneAgent:
		return "only one agent"
	case OnlyOneWorkspace:
		return "only one workspace"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// CycleResult is the state after a cycle operation.
type CycleResult struct {
	Signal    Signal
	Workspace domain.Workspace
	Agent     domain.AgentRef
	HasAgent  bool
	// Count is the number of enabled agents or workspaces involved.
	Count int
}

// ChangeKind names what a Change touched.
type ChangeKind string

const (
	ChangedAgent      ChangeKind = "agent"
	ChangedWorkspace  ChangeKind = "workspace"
	ChangedCollection ChangeKind = "collection"
)

// Change is delivered to listeners after every successful mutation.
type Change struct {
	Kind      ChangeKind
	Workspace domain.Workspace
}

// State holds the ordered workspace collection and the current
// workspace. Every method is safe for concurrent use; reads and writes of
// the cursors happen under one lock with no I/O other than the persist
// call in between.
type State struct {
	store       Store
	fallbackDir string
	log         *logging.Logger

	mu          sync.Mutex
	workspaces  []domain.Workspace
	current     int
	synthesized bool

	listenersMu sync.RWMutex
	listeners   []func(Change)
}

// New creates a State and loads it from store. fallbackDir is the folder of
// the default workspace synthesized when the collection is empty.
func New(store Store, fallbackDir string, log *logging.Logger) *State {
	s := &State{
		store:       store,
		fallbackDir: fallbackDir,
		log:         log.Sub("session"),
	}
	if err := s.Reload(); err != nil {
		s.log.Error().Err(err).Msg("failed to load workspaces, using default workspace")
	}
	return s
}

// Reload re-reads the store. On error the collection falls back to the
// synthesized default and the error is returned for reporting.
func (s *State) Reload() error {
	workspaces, currentID, err := s.store.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		workspaces, currentID = nil, ""
	}
	s.workspaces = workspaces
	s.synthesized = false
	if len(s.workspaces) == 0 {
		s.workspaces = []domain.Workspace{s.defaultWorkspace()}
		s.synthesized = true
		s.log.Info().Str("folder", s.fallbackDir).Msg("no workspaces configured, using default workspace")
	}

	s.current = s.indexOf(currentID)
	if s.current < 0 {
		if currentID != "" {
			s.log.Warn().Str("workspace", currentID).Str("using", s.workspaces[0].ID).Msg("current workspace not found, using first")
		}
		s.current = 0
	}
	for i := range s.workspaces {
		s.workspaces[i].ClampCursor()
	}
	return err
}

func (s *State) defaultWorkspace() domain.Workspace {
	return domain.Workspace{
		ID:     domain.DefaultWorkspaceID,
		Name:   domain.DefaultWorkspaceName,
		Folder: s.fallbackDir,
		Emoji:  domain.DefaultWorkspaceEmoji,
		Color:  domain.DefaultWorkspaceColor,
	}
}

// Synthesized reports whether the collection is the in-memory default that
// has never been saved.
func (s *State) Synthesized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synthesized
}

// OnChange registers a listener called after each successful mutation.
func (s *State) OnChange(fn func(Change)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *State) notify(c Change) {
	s.listenersMu.RLock()
	fns := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (s *State) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.workspaces, func(w domain.Workspace) bool { return w.ID == id })
}

func (s *State) cloneAll() []domain.Workspace {
	out := make([]domain.Workspace, len(s.workspaces))
	for i, w := range s.workspaces {
		out[i] = w.Clone()
	}
	return out
}

// Current returns a copy of the current workspace.
func (s *State) Current() domain.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaces[s.current].Clone()
}

// CurrentAgent returns the current workspace's selected agent reference.
func (s *State) CurrentAgent() (domain.Workspace, domain.AgentRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspaces[s.current].Clone()
	ref, ok := ws.CurrentAgentRef()
	return ws, ref, ok
}

// Workspaces returns copies of every workspace in order.
func (s *State) Workspaces() []domain.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneAll()
}

// Workspace returns a copy of the workspace with id.
func (s *State) Workspace(id string) (domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Workspace{}, &domain.WorkspaceNotFoundError{ID: id}
	}
	return s.workspaces[i].Clone(), nil
}

// NextAgent advances the current workspace's cursor over its enabled
// agents, wrapping to the first. With fewer than two enabled agents it
// changes nothing and says why.
func (s *State) NextAgent() CycleResult {
	s.mu.Lock()
	ws := &s.workspaces[s.current]
	n := len(ws.EnabledAgents())
	res := CycleResult{Count: n}
	switch n {
	case 0:
		res.Signal = NoAgentsEnabled
	case 1:
		res.Signal = OnlyOneAgent
	default:
		ws.CurrentAgent = (ws.CurrentAgent + 1) % n
		res.Signal = Advanced
	}
	res.Workspace = ws.Clone()
	res.Agent, res.HasAgent = ws.CurrentAgentRef()
	s.mu.Unlock()

	if res.Signal == Advanced {
		s.log.Debug().Str("workspace", res.Workspace.ID).Str("agent", res.Agent.ID).Int("index", res.Workspace.CurrentAgent).Msg("agent cycled")
		s.notify(Change{Kind: ChangedAgent, Workspace: res.Workspace})
	}
	return res
}

// SelectAgent points the current workspace's cursor at agentID, which
// must be an enabled agent of that workspace.
func (s *State) SelectAgent(agentID string) error {
	s.mu.Lock()
	ws := &s.workspaces[s.current]
	idx := slices.IndexFunc(ws.EnabledAgents(), func(a domain.AgentRef) bool { return a.ID == agentID })
	if idx < 0 {
		s.mu.Unlock()
		return &domain.AgentNotFoundError{ID: agentID, Disabled: ws.HasAgent(agentID)}
	}
	ws.CurrentAgent = idx
	snapshot := ws.Clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangedAgent, Workspace: snapshot})
	return nil
}

// NextWorkspace moves to the following workspace, wrapping to the first,
// and persists the selection.
func (s *State) NextWorkspace() (CycleResult, error) {
	s.mu.Lock()
	n := len(s.workspaces)
	if n == 1 {
		ws := s.workspaces[s.current].Clone()
		s.mu.Unlock()
		ref, ok := ws.CurrentAgentRef()
		return CycleResult{Signal: OnlyOneWorkspace, Workspace: ws, Agent: ref, HasAgent: ok, Count: 1}, nil
	}

	next := (s.current + 1) % n
	if err := s.persistLocked(s.workspaces, next); err != nil {
		s.mu.Unlock()
		return CycleResult{}, err
	}
	s.current = next
	ws := s.workspaces[next].Clone()
	s.mu.Unlock()

	ref, ok := ws.CurrentAgentRef()
	s.log.Debug().Str("workspace", ws.ID).Msg("workspace cycled")
	s.notify(Change{Kind: ChangedWorkspace, Workspace: ws})
	return CycleResult{Signal: Advanced, Workspace: ws, Agent: ref, HasAgent: ok, Count: n}, nil
}

// Switch makes id the current workspace and persists the selection.
func (s *State) Switch(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return &domain.WorkspaceNotFoundError{ID: id}
	}
	if err := s.persistLocked(s.workspaces, i); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = i
	ws := s.workspaces[i].Clone()
	s.mu.Unlock()

	s.log.Info().Str("workspace", id).Msg("workspace switched")
	s.notify(Change{Kind: ChangedWorkspace, Workspace: ws})
	return nil
}

// persistLocked saves a candidate collection with current index cur.
// The caller holds s.mu and commits only when it returns nil.
func (s *State) persistLocked(workspaces []domain.Workspace, cur int) error {
	if err := s.store.Save(workspaces, workspaces[cur].ID); err != nil {
		return fmt.Errorf("persisting workspaces: %w", err)
	}
	s.synthesized = false
	return nil
}

// validate returns ConfigValidationError for blocking issues and logs
// warnings.
func (s *State) validate(ws domain.Workspace) error {
	errs, warnings := domain.SplitIssues(config.ValidateWorkspace(ws, false))
	for _, w := range warnings {
		s.log.Warn().Str("workspace", ws.ID).Str("path", w.Path).Msg(w.Message)
	}
	if len(errs) > 0 {
		return &domain.ConfigValidationError{Subject: "workspace " + ws.ID, Issues: errs}
	}
	return nil
}

// Add appends a workspace and persists the collection.
func (s *State) Add(ws domain.Workspace) error {
	if err := s.validate(ws); err != nil {
		return err
	}

	s.mu.Lock()
	if s.indexOf(ws.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrDuplicateWorkspace, ws.ID)
	}
	ws = ws.Clone()
	ws.ClampCursor()
	next := append(s.cloneAll(), ws)
	if err := s.persistLocked(next, s.current); err != nil {
		s.mu.Unlock()
		return err
	}
	s.workspaces = next
	s.mu.Unlock()

	s.log.Info().Str("workspace", ws.ID).Msg("workspace added")
	s.notify(Change{Kind: ChangedCollection, Workspace: ws})
	return nil
}

// Update applies fn to a copy of workspace id, validates the result and
// persists it. fn must not change the id.
func (s *State) Update(id string, fn func(*domain.Workspace)) error {
	return s.mutate(id, func(ws *domain.Workspace) error {
		fn(ws)
		if ws.ID != id {
			return fmt.Errorf("%w: %s -> %s", domain.ErrImmutableID, id, ws.ID)
		}
		return s.validate(*ws)
	})
}

// mutate runs fn on a copy of workspace id and commits it when fn and the
// persist both succeed.
func (s *State) mutate(id string, fn func(*domain.Workspace) error) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return &domain.WorkspaceNotFoundError{ID: id}
	}

	next := s.cloneAll()
	if err := fn(&next[i]); err != nil {
		s.mu.Unlock()
		return err
	}
	next[i].ClampCursor()
	if err := s.persistLocked(next, s.current); err != nil {
		s.mu.Unlock()
		return err
	}
	s.workspaces = next
	ws := next[i].Clone()
	s.mu.Unlock()

	s.log.Debug().Str("workspace", id).Msg("workspace updated")
	s.notify(Change{Kind: ChangedCollection, Workspace: ws})
	return nil
}

// Remove deletes a workspace. The last workspace cannot be removed. When
// the current workspace is removed the first remaining one becomes current.
func (s *State) Remove(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return &domain.WorkspaceNotFoundError{ID: id}
	}
	if len(s.workspaces) == 1 {
		s.mu.Unlock()
		return domain.ErrLastWorkspace
	}

	next := slices.Delete(s.cloneAll(), i, i+1)
	cur := s.current
	switch {
	case cur == i:
		cur = 0
	case cur > i:
		cur--
	}
	if err := s.persistLocked(next, cur); err != nil {
		s.mu.Unlock()
		return err
	}
	s.workspaces = next
	s.current = cur
	ws := next[cur].Clone()
	s.mu.Unlock()

	s.log.Info().Str("workspace", id).Msg("workspace removed")
	s.notify(Change{Kind: ChangedCollection, Workspace: ws})
	return nil
}

// Assign adds an agent reference to a workspace. Assigning an agent that
// is already present updates its enabled flag.
func (s *State) Assign(workspaceID string, ref domain.AgentRef) error {
	if !ref.Kind.Valid() || ref.ID == "" {
		return &domain.ConfigValidationError{
			Subject: "agent reference",
			Issues:  []domain.ValidationIssue{{Path: "agent", Message: fmt.Sprintf("invalid reference %s/%q", ref.Kind, ref.ID)}},
		}
	}
	return s.mutate(workspaceID, func(ws *domain.Workspace) error {
		if i := slices.IndexFunc(ws.Agents, func(a domain.AgentRef) bool { return a.ID == ref.ID }); i >= 0 {
			ws.Agents[i].Enabled = ref.Enabled
			ws.Agents[i].Kind = ref.Kind
			return nil
		}
		ws.Agents = append(ws.Agents, ref)
		return nil
	})
}

// Unassign removes an agent reference from a workspace.
func (s *State) Unassign(workspaceID, agentID string) error {
	return s.mutate(workspaceID, func(ws *domain.Workspace) error {
		i := slices.IndexFunc(ws.Agents, func(a domain.AgentRef) bool { return a.ID == agentID })
		if i < 0 {
			return &domain.AgentNotFoundError{ID: agentID}
		}
		ws.Agents = slices.Delete(ws.Agents, i, i+1)
		return nil
	})
}

// SetAgentEnabled toggles one assignment's enabled flag.
func (s *State) SetAgentEnabled(workspaceID, agentID string, enabled bool) error {
	return s.mutate(workspaceID, func(ws *domain.Workspace) error {
		i := slices.IndexFunc(ws.Agents, func(a domain.AgentRef) bool { return a.ID == agentID })
		if i < 0 {
			return &domain.AgentNotFoundError{ID: agentID}
		}
		ws.Agents[i].Enabled = enabled
		return nil
	})
}

// Save persists the collection as it stands, including a synthesized
// default workspace.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(s.workspaces, s.current)
}
