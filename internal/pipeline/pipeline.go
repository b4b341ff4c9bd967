// Package pipeline runs one hotkey-triggered agent execution end to end:
// resolve input, render the template, invoke the agent and report the
// outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/agentclick/internal/agent"
	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/input"
	"github.com/soyeahso/agentclick/internal/logging"
	"github.com/soyeahso/agentclick/internal/notify"
	"github.com/soyeahso/agentclick/internal/store"
)

// DefaultDebounce is the window in which a repeated trigger is dropped.
const DefaultDebounce = 200 * time.Millisecond

// AgentSource looks up agents and their bodies. *catalog.Catalog satisfies it.
type AgentSource interface {
	Lookup(id string) (*domain.Agent, error)
	LoadContent(a *domain.Agent) (string, error)
}

// Renderer applies per-agent templates. *templates.Engine satisfies it.
type Renderer interface {
	Apply(agentID, input string, vars map[string]string) string
}

// Executor runs an agent. *agent.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, inv agent.Invocation) (*agent.RunResult, error)
	Provider() string
}

// Session exposes the current workspace. *session.State satisfies it.
type Session interface {
	Current() domain.Workspace
	Workspace(id string) (domain.Workspace, error)
}

// InputResolver produces input text. *input.Resolver satisfies it.
type InputResolver interface {
	Detect() input.Detection
	ProcessURL(ctx context.Context, raw string) (string, error)
	ProcessFile(path string) (string, error)
	ProcessMultiple(ctx context.Context, paths []string, progress input.ProgressFunc) []input.FileResult
	ProcessEmpty(ctx context.Context, label string) (string, bool, error)
	Clipboard() input.Clipboard
}

// History records finished runs. *store.HistoryStore satisfies it.
type History interface {
	Record(run store.Run) (*store.Run, error)
}

// Options wires a Pipeline.
type Options struct {
	Catalog   AgentSource
	Templates Renderer
	Input     InputResolver
	Runner    Executor
	Session   Session
	Notifier  notify.Sink    // nil discards
	History   History        // nil disables history
	Hooks     *hooks.Manager // nil disables events
	Partial   PartialPolicy  // nil uses MarkerPolicy(DefaultPartialMarkers...)
	Debounce  time.Duration
	Logger    *logging.Logger
}

// Request overrides what a trigger operates on. The zero value uses the
// current workspace, its current agent and the clipboard.
type Request struct {
	AgentID     string
	WorkspaceID string
	// Text, when non-nil, is used as input instead of the clipboard.
	Text      *string
	Files     []string
	FocusFile string
}

// Outcome is what one trigger produced.
type Outcome struct {
	RunID  string
	State  State
	Result *domain.ExecutionResult
	Err    error
}

// Pipeline is safe for concurrent use; at most one invocation runs at a
// time.
type Pipeline struct {
	opts Options
	log  *logging.Logger
	now  func() time.Time

	mu          sync.Mutex
	state       State
	lastTrigger time.Time
	last        *Outcome
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Partial == nil {
		opts.Partial = MarkerPolicy(DefaultPartialMarkers...)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{
		opts:  opts,
		log:   log.Sub("pipeline"),
		now:   time.Now,
		state: StateIdle,
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Last returns the most recent finished outcome.
func (p *Pipeline) Last() (Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Outcome{}, false
	}
	return *p.last, true
}

// begin claims the pipeline. It fails while an invocation is running or
// within the debounce window of the previous trigger.
func (p *Pipeline) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if p.state != StateIdle {
		return false
	}
	if !p.lastTrigger.IsZero() && now.Sub(p.lastTrigger) < p.opts.Debounce {
		return false
	}
	p.lastTrigger = now
	p.state = StateResolvingInput
	return true
}

func (p *Pipeline) transition(ctx context.Context, runID string, s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.log.Debug().Str("run", runID).Str("state", string(s)).Msg("pipeline state")
	p.emit(ctx, hooks.EventPipelineState, map[string]any{"run_id": runID, "state": string(s)})
}

func (p *Pipeline) finish(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &o
	p.state = StateIdle
}

func (p *Pipeline) emit(ctx context.Context, event string, data map[string]any) {
	if p.opts.Hooks != nil {
		p.opts.Hooks.Emit(ctx, event, data)
	}
}

// run carries one invocation's working values.
type run struct {
	id        string
	started   time.Time
	ws        domain.Workspace
	agent     *domain.Agent
	inputType input.Type
	input     string
	focusFile string
	attempts  int
	provider  string
}

// Trigger runs one invocation. It never returns an error and never panics;
// failures are reported through the Outcome and a notification. A trigger
// that arrives while busy or inside the debounce window returns
// StateIgnored with no side effects.
func (p *Pipeline) Trigger(ctx context.Context, req Request) Outcome {
	if !p.begin() {
		p.log.Debug().Msg("trigger ignored")
		return Outcome{State: StateIgnored}
	}

	r := &run{id: uuid.New().String(), started: p.now()}
	out := p.execute(ctx, r, req)
	out.RunID = r.id

	p.record(r, out)
	p.transition(ctx, r.id, out.State)
	p.finish(out)
	return out
}

// execute runs the state machine with panic recovery at the boundary.
func (p *Pipeline) execute(ctx context.Context, r *run, req Request) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("pipeline panic: %v", rec)
			p.log.Error().Str("run", r.id).Interface("panic", rec).Msg("recovered from panic")
			out = p.fail(ctx, r, err)
		}
	}()

	p.transition(ctx, r.id, StateResolvingInput)
	if err := p.selectAgent(r, req); err != nil {
		if errors.Is(err, domain.ErrNoAgentsEnabled) {
			p.notify(ctx, notify.LevelWarning, "No agent", "No agents enabled in workspace")
			p.log.Info().Str("run", r.id).Str("workspace", r.ws.ID).Msg("no agents enabled, aborting")
			return Outcome{State: StateAborted}
		}
		return p.fail(ctx, r, err)
	}

	text, ok, err := p.resolveInput(ctx, r, req)
	if err != nil {
		return p.fail(ctx, r, err)
	}
	if !ok {
		p.log.Info().Str("run", r.id).Str("agent", r.agent.ID).Msg("input cancelled, aborting")
		return Outcome{State: StateAborted}
	}
	r.input = text

	p.transition(ctx, r.id, StateRendering)
	body, err := p.opts.Catalog.LoadContent(r.agent)
	if err != nil {
		return p.fail(ctx, r, err)
	}
	prompt := p.opts.Templates.Apply(r.agent.ID, text, map[string]string{
		domain.VarContextFolder: r.ws.Folder,
		domain.VarFocusFile:     r.focusFile,
	})

	p.transition(ctx, r.id, StateInvoking)
	p.emit(ctx, hooks.EventBeforeAgentRun, map[string]any{"run_id": r.id, "agent": r.agent.ID, "workspace": r.ws.ID})
	res, err := p.opts.Runner.Run(ctx, agent.Invocation{
		Agent:   r.agent,
		Body:    body,
		Prompt:  prompt,
		WorkDir: r.ws.Folder,
	})
	r.provider = p.opts.Runner.Provider()
	if err != nil {
		return p.fail(ctx, r, err)
	}
	r.attempts = res.Attempts
	return p.complete(ctx, r, res)
}

// selectAgent resolves the workspace and agent for this run.
func (p *Pipeline) selectAgent(r *run, req Request) error {
	if req.WorkspaceID != "" {
		ws, err := p.opts.Session.Workspace(req.WorkspaceID)
		if err != nil {
			return err
		}
		r.ws = ws
	} else {
		r.ws = p.opts.Session.Current()
	}

	id := req.AgentID
	if id == "" {
		ref, ok := r.ws.CurrentAgentRef()
		if !ok {
			return domain.ErrNoAgentsEnabled
		}
		id = ref.ID
	}

	a, err := p.opts.Catalog.Lookup(id)
	if err != nil {
		return err
	}
	r.agent = a
	return nil
}

// resolveInput returns the input text. ok is false when the user cancelled
// the prompt.
func (p *Pipeline) resolveInput(ctx context.Context, r *run, req Request) (string, bool, error) {
	r.focusFile = req.FocusFile

	switch {
	case req.Text != nil:
		r.inputType = input.TypeText
		return *req.Text, true, nil

	case len(req.Files) == 1:
		r.inputType = input.TypeFile
		if r.focusFile == "" {
			r.focusFile = req.Files[0]
		}
		text, err := p.opts.Input.ProcessFile(req.Files[0])
		return text, err == nil, err

	case len(req.Files) > 1:
		r.inputType = input.TypeMultiple
		results := p.opts.Input.ProcessMultiple(ctx, req.Files, func(i, n int, _ string) {
			p.notify(ctx, notify.LevelInfo, "Processing", input.ProgressMessage(i, n))
		})
		var failed []string
		for _, res := range results {
			if res.Err != nil {
				failed = append(failed, res.Path)
			}
		}
		if len(failed) == len(results) {
			return "", false, &domain.InputResolutionError{Source: strings.Join(req.Files, ", "), Reason: "no file could be read"}
		}
		if len(failed) > 0 {
			p.notify(ctx, notify.LevelWarning, "Skipped files", fmt.Sprintf("Skipped %d unreadable file(s)", len(failed)))
		}
		return input.JoinFiles(results), true, nil
	}

	d := p.opts.Input.Detect()
	r.inputType = d.Type
	switch d.Type {
	case input.TypeURL:
		text, err := p.opts.Input.ProcessURL(ctx, d.Text)
		return text, err == nil, err
	case input.TypeText:
		return d.Text, true, nil
	default:
		r.inputType = input.TypePrompt
		text, ok, err := p.opts.Input.ProcessEmpty(ctx, r.agent.Name)
		return text, ok, err
	}
}

func (p *Pipeline) metadata(r *run) map[string]any {
	m := map[string]any{
		domain.MetaRunID:      r.id,
		domain.MetaWorkspace:  r.ws.ID,
		domain.MetaInputType:  string(r.inputType),
		domain.MetaDurationMs: p.now().Sub(r.started).Milliseconds(),
		domain.MetaAttempts:   r.attempts,
	}
	if r.agent != nil {
		m[domain.MetaAgentID] = r.agent.ID
		m[domain.MetaAgentType] = string(r.agent.Kind)
	}
	if r.focusFile != "" {
		m[domain.MetaFocusFile] = r.focusFile
	}
	if r.provider != "" {
		m[domain.MetaProvider] = r.provider
	}
	return m
}

func (p *Pipeline) complete(ctx context.Context, r *run, res *agent.RunResult) Outcome {
	output := res.Response.Output
	status := domain.StatusSuccess
	if p.opts.Partial(output) {
		status = domain.StatusPartial
	}

	meta := p.metadata(r)
	if !res.Response.Completed {
		meta["incomplete"] = true
	}
	if err := p.opts.Input.Clipboard().WriteAll(output); err != nil {
		p.log.Error().Err(err).Str("run", r.id).Msg("failed to copy result to clipboard")
		meta["clipboard_error"] = err.Error()
	}

	result := domain.NewExecutionResult(output, status, meta)
	p.emit(ctx, hooks.EventAfterAgentRun, map[string]any{"run_id": r.id, "agent": r.agent.ID, "status": string(status)})

	if status == domain.StatusPartial {
		p.notify(ctx, notify.LevelWarning, "Agent "+r.agent.Name+" executed", "Agent "+r.agent.Name+" executed with warnings")
	} else {
		p.notify(ctx, notify.LevelSuccess, "Agent "+r.agent.Name+" executed", "Agent "+r.agent.Name+" executed")
	}

	p.log.Info().
		Str("run", r.id).
		Str("agent", r.agent.ID).
		Str("status", string(status)).
		Int("attempts", r.attempts).
		Msg("run completed")
	return Outcome{State: StateCompleted, Result: &result}
}

func (p *Pipeline) fail(ctx context.Context, r *run, err error) Outcome {
	meta := p.metadata(r)
	meta[domain.MetaError] = err.Error()
	result := domain.NewExecutionResult("", domain.StatusError, meta)

	ev := p.log.Error().Str("run", r.id).Err(err)
	if r.agent != nil {
		ev = ev.Str("agent", r.agent.ID)
	}
	ev.Msg("run failed")

	if r.agent != nil {
		p.emit(ctx, hooks.EventAfterAgentRun, map[string]any{"run_id": r.id, "agent": r.agent.ID, "status": string(domain.StatusError)})
	}
	p.notify(ctx, notify.LevelError, "Agent failed", err.Error())
	return Outcome{State: StateFailed, Result: &result, Err: err}
}

func (p *Pipeline) notify(ctx context.Context, level notify.Level, title, msg string) {
	p.opts.Notifier.Notify(ctx, notify.Notification{Level: level, Title: title, Message: msg, Time: p.now()})
}

func (p *Pipeline) record(r *run, out Outcome) {
	if p.opts.History == nil {
		return
	}
	entry := store.Run{
		ID:        r.id,
		Workspace: r.ws.ID,
		State:     string(out.State),
		InputType: string(r.inputType),
		Input:     r.input,
		Attempts:  r.attempts,
		Duration:  p.now().Sub(r.started),
		StartedAt: r.started,
	}
	if r.agent != nil {
		entry.AgentID = r.agent.ID
		entry.AgentKind = string(r.agent.Kind)
	}
	if out.Result != nil {
		entry.Status = string(out.Result.Status)
		entry.Output = out.Result.Output
	}
	if out.Err != nil {
		entry.Error = out.Err.Error()
	}
	if _, err := p.opts.History.Record(entry); err != nil {
		p.log.Warn().Err(err).Str("run", r.id).Msg("failed to record run history")
	}
}
