package hotkey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/logging"
	"github.com/soyeahso/agentclick/internal/notify"
	"github.com/soyeahso/agentclick/internal/pipeline"
	"github.com/soyeahso/agentclick/internal/session"
)

const (
	// DefaultDebounce collapses repeats of the same action.
	DefaultDebounce = 200 * time.Millisecond
	defaultQueue    = 64
)

// ErrStopped is returned by Submit after the dispatcher loop has exited.
var ErrStopped = errors.New("hotkey dispatcher stopped")

// Cursors reads and moves the workspace and agent selection.
// *session.State satisfies it.
type Cursors interface {
	CurrentAgent() (domain.Workspace, domain.AgentRef, bool)
	NextAgent() session.CycleResult
	NextWorkspace() (session.CycleResult, error)
}

// Executor runs the pipeline. *pipeline.Pipeline satisfies it.
type Executor interface {
	Trigger(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

// AgentSource resolves display names. *catalog.Catalog satisfies it.
type AgentSource interface {
	Lookup(id string) (*domain.Agent, error)
}

// Options wires a Dispatcher.
type Options struct {
	Session  Cursors
	Pipeline Executor
	Catalog  AgentSource // optional, used for agent names
	Notifier notify.Sink
	Hooks    *hooks.Manager
	Debounce time.Duration
	Queue    int
	Logger   *logging.Logger
}

// Result reports what handling one event did.
type Result struct {
	Action Action
	// Dropped is true when the event fell inside the debounce window.
	Dropped bool
	Signal  session.Signal
	Message string
	Err     error
}

// Dispatcher consumes events on a single goroutine. Cursor moves are
// applied inline. Execute pins the selection on the loop and then runs off
// it, so later cursor moves never change what an earlier press runs.
type Dispatcher struct {
	opts   Options
	log    *logging.Logger
	events chan Event
	now    func() time.Time

	lastAt map[Action]time.Time // owned by the loop goroutine

	inflight sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	onResult func(Result)
}

// New creates a dispatcher. Call Run to start consuming.
func New(opts Options) *Dispatcher {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Queue <= 0 {
		opts.Queue = defaultQueue
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{
		opts:   opts,
		log:    log.Sub("hotkey"),
		events: make(chan Event, opts.Queue),
		now:    time.Now,
		lastAt: make(map[Action]time.Time),
		done:   make(chan struct{}),
	}
}

// OnResult registers fn to observe every handled event. It must be set
// before Run.
func (d *Dispatcher) OnResult(fn func(Result)) { d.onResult = fn }

// Submit queues ev. It blocks while the queue is full until ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = d.now()
	}
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case d.events <- ev:
		d.log.Debug().Str("action", string(ev.Action)).Str("source", ev.Source).Msg("hotkey queued")
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events in arrival order until ctx is cancelled, then
// waits for any execute still running.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info().Msg("hotkey dispatcher started")
	defer func() {
		d.stopOnce.Do(func() { close(d.done) })
		d.inflight.Wait()
		d.log.Info().Msg("hotkey dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			res := d.handle(ctx, ev)
			if d.onResult != nil {
				d.onResult(res)
			}
		}
	}
}

// Wait blocks until every started execute has finished.
func (d *Dispatcher) Wait() { d.inflight.Wait() }

func (d *Dispatcher) handle(ctx context.Context, ev Event) Result {
	res := Result{Action: ev.Action}

	prev, seen := d.lastAt[ev.Action]
	if seen && ev.At.Sub(prev) < d.opts.Debounce {
		d.log.Debug().Str("action", string(ev.Action)).Msg("hotkey debounced")
		res.Dropped = true
		return res
	}
	d.lastAt[ev.Action] = ev.At

	if d.opts.Hooks != nil {
		d.opts.Hooks.Emit(ctx, hooks.EventHotkey, map[string]any{"action": string(ev.Action), "source": ev.Source})
	}

	switch ev.Action {
	case ActionExecute:
		d.execute(ctx, ev.Request)
	case ActionNextAgent:
		d.nextAgent(ctx, &res)
	case ActionNextWorkspace:
		d.nextWorkspace(ctx, &res)
	default:
		res.Err = fmt.Errorf("unknown hotkey action %q", ev.Action)
		d.log.Warn().Str("action", string(ev.Action)).Msg("unknown hotkey action")
	}
	return res
}

func (d *Dispatcher) execute(ctx context.Context, req pipeline.Request) {
	if d.opts.Pipeline == nil {
		d.log.Warn().Msg("no pipeline configured, ignoring execute")
		return
	}
	req = d.pin(req)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		out := d.opts.Pipeline.Trigger(ctx, req)
		d.log.Debug().Str("run", out.RunID).Str("state", string(out.State)).Msg("execute finished")
	}()
}

// pin fills in the workspace and agent selected when the event is handled.
func (d *Dispatcher) pin(req pipeline.Request) pipeline.Request {
	if d.opts.Session == nil || req.AgentID != "" {
		return req
	}
	ws, ref, ok := d.opts.Session.CurrentAgent()
	if req.WorkspaceID != "" && req.WorkspaceID != ws.ID {
		return req
	}
	req.WorkspaceID = ws.ID
	if ok {
		req.AgentID = ref.ID
	}
	return req
}

func (d *Dispatcher) nextAgent(ctx context.Context, res *Result) {
	cr := d.opts.Session.NextAgent()
	res.Signal = cr.Signal
	switch cr.Signal {
	case session.NoAgentsEnabled:
		res.Message = "No agents enabled in workspace"
		d.notify(ctx, notify.LevelWarning, "No agents", res.Message)
	case session.OnlyOneAgent:
		res.Message = fmt.Sprintf("Only %d agent(s) in workspace", cr.Count)
		d.notify(ctx, notify.LevelInfo, "Agent", res.Message)
	default:
		res.Message = "Agent: " + d.agentName(cr.Agent.ID)
		d.notify(ctx, notify.LevelInfo, "Agent", res.Message)
	}
	d.log.Info().Str("workspace", cr.Workspace.ID).Str("agent", cr.Agent.ID).Str("signal", cr.Signal.String()).Msg("next agent")
}

func (d *Dispatcher) nextWorkspace(ctx context.Context, res *Result) {
	cr, err := d.opts.Session.NextWorkspace()
	if err != nil {
		res.Err = err
		res.Message = "Failed to switch workspace: " + err.Error()
		d.log.Error().Err(err).Msg("workspace switch failed")
		d.notify(ctx, notify.LevelError, "Workspace", res.Message)
		return
	}
	res.Signal = cr.Signal
	if cr.Signal == session.OnlyOneWorkspace {
		res.Message = "Only one workspace"
		d.notify(ctx, notify.LevelInfo, "Workspace", res.Message)
		return
	}
	res.Message = "Workspace: " + cr.Workspace.DisplayLabel()
	d.notify(ctx, notify.LevelInfo, "Workspace", res.Message)
	d.log.Info().Str("workspace", cr.Workspace.ID).Msg("next workspace")
}

func (d *Dispatcher) agentName(id string) string {
	if d.opts.Catalog == nil {
		return id
	}
	a, err := d.opts.Catalog.Lookup(id)
	if err != nil {
		return id
	}
	return a.Name
}

func (d *Dispatcher) notify(ctx context.Context, level notify.Level, title, msg string) {
	d.opts.Notifier.Notify(ctx, notify.Notification{Level: level, Title: title, Message: msg, Time: d.now()})
}
