// Package templates renders per-agent input templates.
package templates

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

// Store persists template definitions. *config.TemplateStore satisfies it.
type Store interface {
	Load() ([]domain.TemplateDefinition, error)
	Save([]domain.TemplateDefinition) error
}

// SampleVariables are the preview defaults.
var SampleVariables = map[string]string{
	domain.VarInput:         "<sample input>",
	domain.VarContextFolder: "/example",
	domain.VarFocusFile:     "main.py",
}

// Result is the outcome of validating template text.
type Result struct {
	Errors   []domain.ValidationIssue `json:"errors"`
	Warnings []domain.ValidationIssue `json:"warnings"`

	syntax bool
}

// OK reports whether there are no errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Err converts a failed result into a typed error for agentID.
func (r Result) Err(agentID string) error {
	if r.OK() {
		return nil
	}
	if r.syntax {
		return &domain.TemplateSyntaxError{AgentID: agentID, Issues: r.Errors}
	}
	return &domain.TemplateValidationError{AgentID: agentID, Issues: r.Errors}
}

// Validate checks delimiter balance and variable names.
func Validate(text string) Result {
	var r Result

	if issues := delimiterIssues(text); len(issues) > 0 {
		r.Errors = append(r.Errors, issues...)
		r.syntax = true
	}

	for _, name := range compile(text).variables() {
		switch {
		case name == "":
			r.Errors = append(r.Errors, domain.ValidationIssue{Path: "{{}}", Message: "empty variable name"})
		case !identPattern.MatchString(name):
			r.Errors = append(r.Errors, domain.ValidationIssue{Path: name, Message: fmt.Sprintf("invalid variable name %q", name)})
		case !domain.IsKnownVariable(name):
			r.Errors = append(r.Errors, domain.ValidationIssue{
				Path:    name,
				Message: fmt.Sprintf("unknown variable %q (known: %v)", name, domain.KnownVariables),
			})
		}
	}

	if r.OK() && !slices.Contains(compile(text).variables(), domain.VarInput) {
		r.Warnings = append(r.Warnings, domain.ValidationIssue{
			Path:    domain.VarInput,
			Message: "template does not reference {{input}}; the resolved input will be dropped",
			Warning: true,
		})
	}
	return r
}

// Engine holds template definitions and their compiled forms.
type Engine struct {
	store Store
	log   *logging.Logger

	mu       sync.RWMutex
	defs     map[string]domain.TemplateDefinition
	order    []string
	compiled map[string]*compiled

	afterCompile func() // test hook, runs between compile and store
}

// NewEngine creates an engine backed by store. Call Load to read it.
func NewEngine(store Store, log *logging.Logger) *Engine {
	return &Engine{
		store:    store,
		log:      log.Sub("templates"),
		defs:     make(map[string]domain.TemplateDefinition),
		compiled: make(map[string]*compiled),
	}
}

// Load replaces definitions with the persisted collection. Invalid
// templates are kept but logged.
func (e *Engine) Load() error {
	defs, err := e.store.Load()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs = make(map[string]domain.TemplateDefinition, len(defs))
	e.order = e.order[:0]
	e.compiled = make(map[string]*compiled)
	for _, d := range defs {
		if r := Validate(d.Text); !r.OK() {
			e.log.Warn().Str("agent", d.AgentID).Err(r.Err(d.AgentID)).Msg("stored template is invalid")
		}
		d.Variables = compile(d.Text).variables()
		e.defs[d.AgentID] = d
		e.order = append(e.order, d.AgentID)
	}
	e.log.Debug().Int("templates", len(defs)).Msg("templates loaded")
	return nil
}

// Template returns the definition for agentID, enabled or not.
func (e *Engine) Template(agentID string) (domain.TemplateDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.defs[agentID]
	return d, ok
}

// HasTemplate reports whether an enabled template exists for agentID.
func (e *Engine) HasTemplate(agentID string) bool {
	d, ok := e.Template(agentID)
	return ok && d.Enabled
}

// List returns definitions in file order.
func (e *Engine) List() []domain.TemplateDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.TemplateDefinition, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.defs[id])
	}
	return out
}

// Apply renders input through the agent's template. Without an enabled
// template the input is returned unchanged. vars override the input value
// when they set it explicitly.
func (e *Engine) Apply(agentID, input string, vars map[string]string) string {
	c, ok := e.compiledFor(agentID)
	if !ok {
		return input
	}

	values := map[string]string{domain.VarInput: input}
	for k, v := range vars {
		values[k] = v
	}
	return c.render(values)
}

// Preview renders the agent's template against sample values, falling
// back to SampleVariables for anything not supplied. It reports false when
// the agent has no enabled template.
func (e *Engine) Preview(agentID string, sample map[string]string) (string, bool) {
	if !e.HasTemplate(agentID) {
		return "", false
	}
	vars := make(map[string]string, len(SampleVariables))
	for k, v := range SampleVariables {
		vars[k] = v
	}
	for k, v := range sample {
		vars[k] = v
	}
	return e.Apply(agentID, vars[domain.VarInput], vars), true
}

func (e *Engine) compiledFor(agentID string) (*compiled, bool) {
	e.mu.RLock()
	d, ok := e.defs[agentID]
	c := e.compiled[agentID]
	e.mu.RUnlock()
	if !ok || !d.Enabled {
		return nil, false
	}
	if c != nil {
		return c, true
	}

	c = compile(d.Text)
	if e.afterCompile != nil {
		e.afterCompile()
	}
	e.mu.Lock()
	// A save in between already invalidated this text.
	if cur, ok := e.defs[agentID]; ok && cur.Text == d.Text {
		e.compiled[agentID] = c
	}
	e.mu.Unlock()
	return c, true
}

// Save validates text and persists it for agentID. Nothing changes when
// validation or the write fails.
func (e *Engine) Save(agentID, text string, enabled bool) (Result, error) {
	if agentID == "" {
		return Result{}, errors.New("agent id is required")
	}
	r := Validate(text)
	if !r.OK() {
		return r, r.Err(agentID)
	}

	def := domain.TemplateDefinition{
		AgentID:   agentID,
		Text:      text,
		Enabled:   enabled,
		Variables: compile(text).variables(),
	}
	if err := e.update(agentID, func(defs map[string]domain.TemplateDefinition) bool {
		defs[agentID] = def
		return true
	}); err != nil {
		return r, err
	}

	e.log.Info().Str("agent", agentID).Bool("enabled", enabled).Msg("template saved")
	return r, nil
}

// SetEnabled toggles an existing template.
func (e *Engine) SetEnabled(agentID string, enabled bool) error {
	if _, ok := e.Template(agentID); !ok {
		return fmt.Errorf("no template for agent %q", agentID)
	}
	return e.update(agentID, func(defs map[string]domain.TemplateDefinition) bool {
		d, ok := defs[agentID]
		if !ok {
			return false
		}
		d.Enabled = enabled
		defs[agentID] = d
		return true
	})
}

// Delete removes a template. Deleting an absent template is a no-op.
func (e *Engine) Delete(agentID string) error {
	return e.update(agentID, func(defs map[string]domain.TemplateDefinition) bool {
		if _, ok := defs[agentID]; !ok {
			return false
		}
		delete(defs, agentID)
		return true
	})
}

// update applies fn to a copy of the definitions, persists the result and
// swaps it in. The agent's compiled form is invalidated on success.
func (e *Engine) update(agentID string, fn func(map[string]domain.TemplateDefinition) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]domain.TemplateDefinition, len(e.defs)+1)
	for k, v := range e.defs {
		next[k] = v
	}
	if !fn(next) {
		return nil
	}

	order := slices.Clone(e.order)
	_, inNext := next[agentID]
	idx := slices.Index(order, agentID)
	switch {
	case inNext && idx < 0:
		order = append(order, agentID)
	case !inNext && idx >= 0:
		order = slices.Delete(order, idx, idx+1)
	}

	list := make([]domain.TemplateDefinition, 0, len(order))
	for _, id := range order {
		list = append(list, next[id])
	}
	if err := e.store.Save(list); err != nil {
		return fmt.Errorf("saving templates: %w", err)
	}

	e.defs = next
	e.order = order
	delete(e.compiled, agentID)
	return nil
}
