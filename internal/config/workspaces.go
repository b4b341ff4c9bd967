package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

// FileVersion is the schema version written to workspaces and templates files.
const FileVersion = "2.0"

var (
	workspaceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	colorPattern       = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

type workspaceEntry struct {
	Name   string          `yaml:"name"`
	Folder string          `yaml:"folder"`
	Emoji  string          `yaml:"emoji"`
	Color  string          `yaml:"color"`
	Agents []agentRefEntry `yaml:"agents"`
}

type agentRefEntry struct {
	Type    string `yaml:"type"`
	ID      string `yaml:"id"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

type workspaceHeader struct {
	Version          string    `yaml:"version"`
	CurrentWorkspace string    `yaml:"current_workspace"`
	Workspaces       yaml.Node `yaml:"workspaces"`
}

// WorkspaceStore loads and saves the workspace collection. Entries that
// Load skips are kept verbatim and written back by Save.
type WorkspaceStore struct {
	path string
	log  *logging.Logger
	now  func() time.Time

	mu      sync.Mutex
	held    []nodeEntry // skipped by the last Load, in document order
	damaged bool        // the last Load could not parse the file
}

// NewWorkspaceStore creates a store for the workspaces file at path.
func NewWorkspaceStore(path string, log *logging.Logger) *WorkspaceStore {
	return &WorkspaceStore{path: path, log: log.Sub("config.workspaces"), now: time.Now}
}

// Path returns the backing file path.
func (s *WorkspaceStore) Path() string { return s.path }

// Load parses the workspaces file. A missing or empty file yields an empty
// collection. Structural problems return *domain.ConfigLoadError; a single
// invalid workspace is logged and skipped.
func (s *WorkspaceStore) Load() ([]domain.Workspace, string, error) {
	ws, current, held, err := s.load()

	s.mu.Lock()
	s.held = held
	s.damaged = err != nil
	s.mu.Unlock()
	return ws, current, err
}

func (s *WorkspaceStore) load() ([]domain.Workspace, string, []nodeEntry, error) {
	root, err := readMappingDocument(s.path)
	if err != nil || root == nil {
		return nil, "", nil, err
	}

	var h workspaceHeader
	if err := root.Decode(&h); err != nil {
		return nil, "", nil, &domain.ConfigLoadError{Path: s.path, Err: err}
	}
	if h.Version == "" {
		return nil, "", nil, &domain.ConfigLoadError{Path: s.path, Err: errors.New("missing required key: version")}
	}
	if h.Version != FileVersion {
		return nil, "", nil, &domain.ConfigLoadError{
			Path: s.path,
			Err:  fmt.Errorf("unsupported version %q (want %q)", h.Version, FileVersion),
		}
	}

	entries, err := orderedEntries(&h.Workspaces, "workspaces")
	if err != nil {
		return nil, "", nil, &domain.ConfigLoadError{Path: s.path, Err: err}
	}

	var (
		out  []domain.Workspace
		held []nodeEntry
	)
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.key] {
			s.log.Warn().Str("workspace", e.key).Msg("duplicate workspace id, keeping first")
			held = append(held, e)
			continue
		}

		var entry workspaceEntry
		if err := e.value.Decode(&entry); err != nil {
			s.log.Warn().Err(err).Str("workspace", e.key).Msg("skipping unreadable workspace")
			held = append(held, e)
			continue
		}

		ws := s.fromEntry(e.key, entry)
		errs, warnings := domain.SplitIssues(ValidateWorkspace(ws, false))
		for _, w := range warnings {
			s.log.Warn().Str("workspace", ws.ID).Str("path", w.Path).Msg(w.Message)
		}
		if len(errs) > 0 {
			for _, is := range errs {
				s.log.Warn().Str("workspace", ws.ID).Str("path", is.Path).Msg(is.Message)
			}
			s.log.Warn().Str("workspace", ws.ID).Msg("skipping invalid workspace")
			held = append(held, e)
			continue
		}

		seen[ws.ID] = true
		out = append(out, ws)
	}

	s.log.Debug().Int("count", len(out)).Str("current", h.CurrentWorkspace).Msg("workspaces loaded")
	return out, h.CurrentWorkspace, held, nil
}

func (s *WorkspaceStore) fromEntry(id string, e workspaceEntry) domain.Workspace {
	ws := domain.Workspace{
		ID:     id,
		Name:   e.Name,
		Folder: e.Folder,
		Emoji:  e.Emoji,
		Color:  e.Color,
	}
	for _, ref := range e.Agents {
		kind, err := domain.ParseAgentKind(ref.Type)
		if err != nil || ref.ID == "" {
			s.log.Warn().Str("workspace", id).Str("agent", ref.ID).Str("type", ref.Type).Msg("skipping invalid agent reference")
			continue
		}
		enabled := ref.Enabled == nil || *ref.Enabled
		ws.Agents = append(ws.Agents, domain.AgentRef{Kind: kind, ID: ref.ID, Enabled: enabled})
	}
	return ws
}

// Save validates every workspace and atomically rewrites the file, keeping
// workspace and agent order. Nothing is written if any workspace is invalid.
// Entries the last Load skipped follow the saved workspaces unchanged. When
// the last Load failed, or a saved workspace takes the id of a skipped
// entry, the previous file is first copied to a timestamped backup.
func (s *WorkspaceStore) Save(workspaces []domain.Workspace, current string) error {
	var issues []domain.ValidationIssue
	seen := make(map[string]bool)
	for _, ws := range workspaces {
		if seen[ws.ID] {
			issues = append(issues, domain.ValidationIssue{Path: ws.ID, Message: "duplicate workspace id"})
		}
		seen[ws.ID] = true
		errs, _ := domain.SplitIssues(ValidateWorkspace(ws, false))
		for _, e := range errs {
			e.Path = ws.ID + "." + e.Path
			issues = append(issues, e)
		}
	}
	if len(issues) > 0 {
		return &domain.ConfigValidationError{Subject: "workspaces", Issues: issues}
	}

	list := &yaml.Node{Kind: yaml.MappingNode}
	for _, ws := range workspaces {
		entry := workspaceEntry{
			Name:   ws.Name,
			Folder: ws.Folder,
			Emoji:  ws.Emoji,
			Color:  ws.Color,
			Agents: make([]agentRefEntry, 0, len(ws.Agents)),
		}
		for _, a := range ws.Agents {
			enabled := a.Enabled
			entry.Agents = append(entry.Agents, agentRefEntry{
				Type:    string(a.Kind),
				ID:      a.ID,
				Enabled: &enabled,
			})
		}
		var value yaml.Node
		if err := value.Encode(entry); err != nil {
			return fmt.Errorf("encoding workspace %s: %w", ws.ID, err)
		}
		list.Content = append(list.Content, scalarNode(ws.ID), &value)
	}

	s.mu.Lock()
	held, damaged := s.held, s.damaged
	s.mu.Unlock()

	var kept []nodeEntry
	for _, e := range held {
		if seen[e.key] {
			s.log.Warn().Str("workspace", e.key).Msg("saved workspace replaces a skipped entry")
			continue
		}
		kept = append(kept, e)
	}
	if damaged || len(kept) < len(held) {
		if err := s.backup(); err != nil {
			return err
		}
	}
	for _, e := range kept {
		list.Content = append(list.Content, scalarNode(e.key), e.value)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	doc.Content = append(doc.Content,
		scalarNode("version"), quotedNode(FileVersion),
		scalarNode("current_workspace"), scalarNode(current),
		scalarNode("workspaces"), list,
	)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding workspaces: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		return err
	}

	s.mu.Lock()
	s.held, s.damaged = kept, false
	s.mu.Unlock()

	s.log.Debug().Int("count", len(workspaces)).Int("kept", len(kept)).Str("current", current).Msg("workspaces saved")
	return nil
}

// backup copies the current file to <path>.<stamp>.bak. A missing file
// needs no backup.
func (s *WorkspaceStore) backup() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s for backup: %w", s.path, err)
	}
	dst := s.path + "." + s.now().Format("20060102_150405") + ".bak"
	if err := writeFileAtomic(dst, data, 0o600); err != nil {
		return fmt.Errorf("backing up %s: %w", s.path, err)
	}
	s.log.Warn().Str("backup", dst).Msg("workspaces file backed up before rewrite")
	return nil
}

// ValidateWorkspace checks field formats. Folder existence produces a
// warning unless strict is set, in which case it is an error.
func ValidateWorkspace(ws domain.Workspace, strict bool) []ValidationIssue {
	var issues []ValidationIssue

	switch {
	case ws.ID == "":
		issues = append(issues, ValidationIssue{Path: "id", Message: "id is required"})
	case !workspaceIDPattern.MatchString(ws.ID):
		issues = append(issues, ValidationIssue{
			Path:    "id",
			Message: fmt.Sprintf("must match %s, got %q", workspaceIDPattern, ws.ID),
		})
	}

	if isBlank(ws.Name) {
		issues = append(issues, ValidationIssue{Path: "name", Message: "name is required"})
	}
	if isBlank(ws.Emoji) {
		issues = append(issues, ValidationIssue{Path: "emoji", Message: "emoji is required"})
	}

	switch {
	case ws.Color == "":
		issues = append(issues, ValidationIssue{Path: "color", Message: "color is required"})
	case !colorPattern.MatchString(ws.Color):
		issues = append(issues, ValidationIssue{
			Path:    "color",
			Message: fmt.Sprintf("must be a #RRGGBB hex color, got %q", ws.Color),
		})
	}

	if isBlank(ws.Folder) {
		issues = append(issues, ValidationIssue{Path: "folder", Message: "folder is required"})
	} else if info, err := os.Stat(ws.Folder); err != nil {
		issues = append(issues, ValidationIssue{
			Path:    "folder",
			Message: fmt.Sprintf("folder does not exist: %s", ws.Folder),
			Warning: !strict,
		})
	} else if !info.IsDir() {
		issues = append(issues, ValidationIssue{
			Path:    "folder",
			Message: fmt.Sprintf("not a directory: %s", ws.Folder),
			Warning: !strict,
		})
	}

	seen := make(map[string]bool)
	for i, a := range ws.Agents {
		path := fmt.Sprintf("agents[%d]", i)
		if !a.Kind.Valid() {
			issues = append(issues, ValidationIssue{Path: path + ".type", Message: fmt.Sprintf("unknown agent type %q", a.Kind)})
		}
		if a.ID == "" {
			issues = append(issues, ValidationIssue{Path: path + ".id", Message: "agent id is required"})
			continue
		}
		if seen[a.ID] {
			issues = append(issues, ValidationIssue{Path: path + ".id", Message: fmt.Sprintf("agent %q assigned twice", a.ID)})
		}
		seen[a.ID] = true
	}

	return issues
}

// nodeEntry is one key/value pair of a YAML mapping, in document order.
type nodeEntry struct {
	key   string
	value *yaml.Node
}

// readMappingDocument reads a YAML file whose top level must be a mapping.
// Missing or blank files return (nil, nil).
func readMappingDocument(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &domain.ConfigLoadError{Path: path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &domain.ConfigLoadError{Path: path, Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &domain.ConfigLoadError{Path: path, Err: errors.New("top level must be a mapping")}
	}
	return root, nil
}

// orderedEntries returns the pairs of a mapping node. A null node counts as
// an empty mapping; an absent node (zero Kind) is an error.
func orderedEntries(n *yaml.Node, key string) ([]nodeEntry, error) {
	switch {
	case n.Kind == 0:
		return nil, fmt.Errorf("missing required key: %s", key)
	case n.Kind == yaml.ScalarNode && n.Tag == "!!null":
		return nil, nil
	case n.Kind != yaml.MappingNode:
		return nil, fmt.Errorf("%s must be a mapping", key)
	}

	out := make([]nodeEntry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, nodeEntry{key: n.Content[i].Value, value: n.Content[i+1]})
	}
	return out, nil
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func quotedNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle}
}

func isBlank(s string) bool {
	return len(bytes.TrimSpace([]byte(s))) == 0
}
