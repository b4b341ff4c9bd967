package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

type templateEntry struct {
	Template string `yaml:"template"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

type templateHeader struct {
	Version   string    `yaml:"version"`
	Templates yaml.Node `yaml:"templates"`
}

// TemplateStore loads and saves per-agent input templates.
type TemplateStore struct {
	path string
	log  *logging.Logger
}

// NewTemplateStore creates a store for the templates file at path.
func NewTemplateStore(path string, log *logging.Logger) *TemplateStore {
	return &TemplateStore{path: path, log: log.Sub("config.templates")}
}

// Path returns the backing file path.
func (s *TemplateStore) Path() string { return s.path }

// Load returns template definitions in file order. A missing file is an
// empty collection; unreadable entries are logged and skipped.
func (s *TemplateStore) Load() ([]domain.TemplateDefinition, error) {
	root, err := readMappingDocument(s.path)
	if err != nil || root == nil {
		return nil, err
	}

	var h templateHeader
	if err := root.Decode(&h); err != nil {
		return nil, &domain.ConfigLoadError{Path: s.path, Err: err}
	}
	if h.Version != "" && h.Version != FileVersion {
		return nil, &domain.ConfigLoadError{
			Path: s.path,
			Err:  fmt.Errorf("unsupported version %q (want %q)", h.Version, FileVersion),
		}
	}

	entries, err := orderedEntries(&h.Templates, "templates")
	if err != nil {
		return nil, &domain.ConfigLoadError{Path: s.path, Err: err}
	}

	out := make([]domain.TemplateDefinition, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.key == "" || seen[e.key] {
			s.log.Warn().Str("agent", e.key).Msg("skipping duplicate or unnamed template")
			continue
		}

		var entry templateEntry
		if err := e.value.Decode(&entry); err != nil {
			s.log.Warn().Err(err).Str("agent", e.key).Msg("skipping unreadable template")
			continue
		}

		seen[e.key] = true
		out = append(out, domain.TemplateDefinition{
			AgentID: e.key,
			Text:    entry.Template,
			Enabled: entry.Enabled == nil || *entry.Enabled,
		})
	}
	return out, nil
}

// Save atomically rewrites the templates file in the given order. Callers
// validate template text before saving.
func (s *TemplateStore) Save(defs []domain.TemplateDefinition) error {
	list := &yaml.Node{Kind: yaml.MappingNode}
	for _, d := range defs {
		enabled := d.Enabled
		var value yaml.Node
		if err := value.Encode(templateEntry{Template: d.Text, Enabled: &enabled}); err != nil {
			return fmt.Errorf("encoding template %s: %w", d.AgentID, err)
		}
		list.Content = append(list.Content, scalarNode(d.AgentID), &value)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	doc.Content = append(doc.Content,
		scalarNode("version"), quotedNode(FileVersion),
		scalarNode("templates"), list,
	)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding templates: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		return err
	}
	s.log.Debug().Int("count", len(defs)).Msg("templates saved")
	return nil
}
