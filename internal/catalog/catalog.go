// Package catalog discovers agent definition documents under a .claude
// directory and keeps an in-memory, hot-reloadable index of them.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

// SkillFile is the fixed document name inside each skill directory.
const SkillFile = "SKILL.md"

// Options configures a Catalog.
type Options struct {
	// Root is the directory holding commands/, skills/ and agents/.
	Root      string
	CacheSize int
	Logger    *logging.Logger
}

// ContentError reports a definition body that could not be read.
type ContentError struct {
	Path string
	Err  error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("reading agent content %s: %v", e.Path, e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }

// Catalog indexes agents by id in scan order.
type Catalog struct {
	root  string
	log   *logging.Logger
	cache *metadataCache

	mu     sync.RWMutex
	agents map[string]*domain.Agent
	order  []string

	cbMu      sync.RWMutex
	callbacks []func(ChangeEvent)
}

// New creates an empty catalog. Call ScanAll to populate it.
func New(opts Options) *Catalog {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Catalog{
		root:   opts.Root,
		log:    log.Sub("catalog"),
		cache:  newMetadataCache(opts.CacheSize),
		agents: make(map[string]*domain.Agent),
	}
}

// Root returns the scanned directory.
func (c *Catalog) Root() string { return c.root }

// Dir returns the subdirectory scanned for kind.
func (c *Catalog) Dir(kind domain.AgentKind) string {
	switch kind {
	case domain.KindCommand:
		return filepath.Join(c.root, "commands")
	case domain.KindSkill:
		return filepath.Join(c.root, "skills")
	default:
		return filepath.Join(c.root, "agents")
	}
}

type candidate struct {
	kind   domain.AgentKind
	path   string
	stemID string
}

// discover lists definition documents for every kind. Missing
// directories contribute nothing.
func (c *Catalog) discover() []candidate {
	var out []candidate
	for _, kind := range domain.AllKinds {
		dir := c.Dir(kind)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				c.log.Warn().Err(err).Str("dir", dir).Msg("cannot read agent directory")
			}
			continue
		}

		for _, e := range entries {
			name := e.Name()
			if kind == domain.KindSkill {
				if !e.IsDir() {
					continue
				}
				path := filepath.Join(dir, name, SkillFile)
				if _, err := os.Stat(path); err != nil {
					c.log.Debug().Str("skill", name).Msg("skipping skill directory without " + SkillFile)
					continue
				}
				out = append(out, candidate{kind: kind, path: path, stemID: name})
				continue
			}
			if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".md") {
				continue
			}
			out = append(out, candidate{
				kind:   kind,
				path:   filepath.Join(dir, name),
				stemID: strings.TrimSuffix(name, filepath.Ext(name)),
			})
		}
	}
	return out
}

// ScanAll rescans every directory and replaces the index. Unreadable or
// malformed documents are logged and skipped.
func (c *Catalog) ScanAll() []*domain.Agent {
	found := c.scan()

	c.mu.Lock()
	c.agents = make(map[string]*domain.Agent, len(found))
	c.order = c.order[:0]
	for _, a := range found {
		c.agents[a.ID] = a
		c.order = append(c.order, a.ID)
	}
	c.mu.Unlock()

	c.log.Info().Int("agents", len(found)).Str("root", c.root).Msg("catalog scanned")
	return found
}

// scan parses every discovered document without touching the index.
func (c *Catalog) scan() []*domain.Agent {
	var found []*domain.Agent
	seen := make(map[string]string)
	for _, cand := range c.discover() {
		a, err := c.load(cand)
		if err != nil {
			c.log.Warn().Err(err).Str("path", cand.path).Msg("skipping agent definition")
			continue
		}
		if prev, dup := seen[a.ID]; dup {
			c.log.Warn().Str("agent", a.ID).Str("path", cand.path).Str("first", prev).Msg("duplicate agent id, keeping first")
			continue
		}
		seen[a.ID] = cand.path
		found = append(found, a)
	}
	return found
}

// load returns the agent for a document, reusing the cached parse when the
// file is unchanged.
func (c *Catalog) load(cand candidate) (*domain.Agent, error) {
	info, err := os.Stat(cand.path)
	if err != nil {
		return nil, err
	}

	if id := c.idForPath(cand.path); id != "" {
		if e, ok := c.cache.get(id); ok && e.path == cand.path && e.fresh(info.ModTime(), info.Size()) {
			return e.agent, nil
		}
	}

	a, err := c.parse(cand, info)
	if err != nil {
		return nil, err
	}
	c.cache.put(a.ID, cacheEntry{agent: a, path: cand.path, modTime: info.ModTime(), size: info.Size()})
	return a, nil
}

func (c *Catalog) idForPath(path string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		if a := c.agents[id]; a != nil && a.Source == path {
			return id
		}
	}
	// Entries still cached after a rescan dropped them from the index.
	for _, id := range c.cache.keys() {
		if e, ok := c.cache.get(id); ok && e.path == path {
			return id
		}
	}
	return ""
}

func (c *Catalog) parse(cand candidate, info os.FileInfo) (*domain.Agent, error) {
	data, err := os.ReadFile(cand.path)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	header, _, err := splitDocument(string(data))
	switch {
	case errors.Is(err, errNoHeader):
		c.log.Debug().Str("path", cand.path).Msg("no header, using defaults")
	case err != nil:
		return nil, err
	default:
		meta, err = parseHeader(header)
		if err != nil {
			return nil, err
		}
	}

	a := buildAgent(cand, meta, c.log)
	a.ModTime = info.ModTime()
	a.Size = info.Size()
	return a, nil
}

// Get returns the indexed agent with id.
func (c *Catalog) Get(id string) (*domain.Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[id]
	return a, ok
}

// Lookup returns an enabled agent or an AgentNotFoundError.
func (c *Catalog) Lookup(id string) (*domain.Agent, error) {
	a, ok := c.Get(id)
	if !ok {
		return nil, &domain.AgentNotFoundError{ID: id}
	}
	if !a.Enabled {
		return nil, &domain.AgentNotFoundError{ID: id, Disabled: true}
	}
	return a, nil
}

// List returns indexed agents in scan order.
func (c *Catalog) List() []*domain.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.Agent, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.agents[id])
	}
	return out
}

// ListKind returns agents of one kind sorted by id.
func (c *Catalog) ListKind(kind domain.AgentKind) []*domain.Agent {
	var out []*domain.Agent
	for _, a := range c.List() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetCached returns cached metadata for id when its source is unchanged,
// re-parsing the document otherwise. A vanished source removes the agent.
func (c *Catalog) GetCached(id string) (*domain.Agent, bool) {
	e, ok := c.cache.get(id)
	if !ok {
		a, found := c.Get(id)
		if !found {
			return nil, false
		}
		e = cacheEntry{agent: a, path: a.Source}
	}

	info, err := os.Stat(e.path)
	if err == nil && e.fresh(info.ModTime(), info.Size()) {
		return e.agent, true
	}
	a, err := c.Reload(id)
	if err != nil || a == nil {
		return nil, false
	}
	return a, true
}

// CacheLen reports the number of cached metadata entries.
func (c *Catalog) CacheLen() int { return c.cache.len() }

// Reload re-parses one agent's document. It returns (nil, nil) and drops
// the agent when the document no longer exists.
func (c *Catalog) Reload(id string) (*domain.Agent, error) {
	prev, ok := c.Get(id)
	if !ok {
		if e, cached := c.cache.get(id); cached {
			prev = e.agent
		} else {
			return nil, &domain.AgentNotFoundError{ID: id}
		}
	}

	info, err := os.Stat(prev.Source)
	if err != nil {
		if os.IsNotExist(err) {
			c.remove(id)
			c.log.Info().Str("agent", id).Msg("agent source removed")
			return nil, nil
		}
		return nil, err
	}

	cand := candidate{kind: prev.Kind, path: prev.Source, stemID: stemFor(prev.Kind, prev.Source)}
	a, err := c.parse(cand, info)
	if err != nil {
		return nil, err
	}
	c.cache.put(a.ID, cacheEntry{agent: a, path: cand.path, modTime: info.ModTime(), size: info.Size()})

	c.mu.Lock()
	if a.ID != id {
		// Header id changed under us.
		delete(c.agents, id)
		c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
		c.cache.remove(id)
	}
	if _, exists := c.agents[a.ID]; !exists {
		c.order = append(c.order, a.ID)
	}
	c.agents[a.ID] = a
	c.mu.Unlock()

	c.log.Debug().Str("agent", a.ID).Msg("agent reloaded")
	return a, nil
}

func (c *Catalog) remove(id string) {
	c.mu.Lock()
	delete(c.agents, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	c.mu.Unlock()
	c.cache.remove(id)
}

// LoadContent returns the document body after the header, reading it on
// first access and memoizing it on the agent.
func (c *Catalog) LoadContent(a *domain.Agent) (string, error) {
	if body, ok := a.Content(); ok {
		return body, nil
	}

	data, err := os.ReadFile(a.Source)
	if err != nil {
		return "", &ContentError{Path: a.Source, Err: err}
	}
	if !utf8.Valid(data) {
		return "", &ContentError{Path: a.Source, Err: errors.New("content is not valid UTF-8")}
	}

	_, body, err := splitDocument(string(data))
	if err != nil && !errors.Is(err, errNoHeader) {
		return "", &ContentError{Path: a.Source, Err: err}
	}
	a.SetContent(body)
	return body, nil
}

func stemFor(kind domain.AgentKind, path string) string {
	if kind == domain.KindSkill {
		return filepath.Base(filepath.Dir(path))
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
