package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/hotkey"
)

const hookName = "tui"

// Session exposes the current selection. *session.State satisfies it.
type Session interface {
	CurrentAgent() (domain.Workspace, domain.AgentRef, bool)
}

// AgentSource resolves agent display fields. *catalog.Catalog satisfies it.
type AgentSource interface {
	Lookup(id string) (*domain.Agent, error)
}

// Submitter accepts hotkey events. *hotkey.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, ev hotkey.Event) error
}

// KeyMap binds popup keys to hotkey actions.
var KeyMap = map[string]hotkey.Action{
	"enter": hotkey.ActionExecute,
	"tab":   hotkey.ActionNextAgent,
	"w":     hotkey.ActionNextWorkspace,
}

// Options configures a Model.
type Options struct {
	Session    Session
	Catalog    AgentSource
	Dispatcher Submitter
	Hooks      *hooks.Manager
	Prompter   *Prompter // optional, answers empty-clipboard prompts
}

// eventMsg carries one hook payload into the update loop.
type eventMsg hooks.Payload

// submitErrMsg reports a rejected key press.
type submitErrMsg struct{ err error }

// view is the rendered snapshot of the selection.
type view struct {
	workspace string
	folder    string
	agent     string
	kind      string
	color     string
	hasAgent  bool
}

// Model is the bubbletea model for the popup.
type Model struct {
	opts   Options
	ctx    context.Context
	events chan hooks.Payload
	styles Styles

	unsubscribe func()
	prompt      *prompting

	current view
	state   string
	notice  string
	level   string
	width   int
}

// New builds a Model and subscribes it to the hook bus.
func New(ctx context.Context, opts Options) *Model {
	m := &Model{
		opts:   opts,
		ctx:    ctx,
		events: make(chan hooks.Payload, 64),
		state:  "idle",
	}
	if opts.Hooks != nil {
		m.unsubscribe = opts.Hooks.Subscribe(hookName, m.forward,
			hooks.EventNotification,
			hooks.EventPipelineState,
			hooks.EventAgentChanged,
			hooks.EventWorkspaceChanged,
			hooks.EventCatalogChanged,
		)
	}
	m.refresh()
	return m
}

// Close unsubscribes from the hook bus and cancels an open prompt.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.prompt != nil {
		m.prompt.answer("", false)
		m.prompt = nil
	}
}

// forward never blocks the emitter; a full buffer drops the event.
func (m *Model) forward(_ context.Context, p hooks.Payload) error {
	select {
	case m.events <- p:
	default:
	}
	return nil
}

func (m *Model) waitForEvent() tea.Cmd {
	var prompts chan promptMsg
	if m.opts.Prompter != nil {
		prompts = m.opts.Prompter.requests
	}
	return func() tea.Msg {
		select {
		case p := <-m.events:
			return eventMsg(p)
		case req := <-prompts:
			return req
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func (m *Model) refresh() {
	if m.opts.Session == nil {
		return
	}
	ws, ref, ok := m.opts.Session.CurrentAgent()
	v := view{
		workspace: ws.DisplayLabel(),
		folder:    ws.Folder,
		color:     ws.Color,
		hasAgent:  ok,
	}
	if ok {
		v.agent, v.kind = ref.ID, string(ref.Kind)
		if m.opts.Catalog != nil {
			if a, err := m.opts.Catalog.Lookup(ref.ID); err == nil {
				v.agent = strings.TrimSpace(a.Emoji + " " + a.Name)
				v.color = a.Color
			}
		}
	}
	m.current = v
	m.styles = DefaultStyles(v.color)
}

func (m *Model) submit(action hotkey.Action) tea.Cmd {
	return func() tea.Msg {
		if m.opts.Dispatcher == nil {
			return submitErrMsg{err: fmt.Errorf("no dispatcher")}
		}
		if err := m.opts.Dispatcher.Submit(m.ctx, hotkey.Event{Action: action, Source: "tui"}); err != nil {
			return submitErrMsg{err: err}
		}
		return nil
	}
}

// Init starts listening for hook events.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update handles key presses and hook events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.prompt != nil {
			return m.updatePrompt(msg)
		}
		switch key := msg.String(); key {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		default:
			if action, ok := KeyMap[key]; ok {
				return m, m.submit(action)
			}
		}
		return m, nil

	case submitErrMsg:
		m.notice, m.level = msg.err.Error(), "error"
		return m, nil

	case eventMsg:
		m.apply(hooks.Payload(msg))
		return m, m.waitForEvent()

	case promptMsg:
		if m.prompt != nil {
			m.prompt.answer("", false)
		}
		m.prompt = newPrompting(msg, m.width)
		return m, tea.Batch(textinput.Blink, m.waitForEvent())
	}
	return m, nil
}

func (m *Model) apply(p hooks.Payload) {
	switch p.Event {
	case hooks.EventNotification:
		m.notice, _ = p.Data["message"].(string)
		m.level, _ = p.Data["level"].(string)
		// Cycle notifications follow a selection change.
		m.refresh()
	case hooks.EventPipelineState:
		if s, ok := p.Data["state"].(string); ok {
			m.state = s
		}
	default:
		m.refresh()
	}
}

// View renders the popup.
func (m *Model) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render("AgentClick"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s\n", s.Label.Render("Workspace"), s.Value.Render(m.current.workspace))
	if m.current.folder != "" {
		fmt.Fprintf(&b, "%s%s\n", s.Label.Render("Folder"), m.current.folder)
	}
	if m.current.hasAgent {
		fmt.Fprintf(&b, "%s%s %s\n", s.Label.Render("Agent"), s.Title.Render(m.current.agent), s.Help.Render("("+m.current.kind+")"))
	} else {
		fmt.Fprintf(&b, "%s%s\n", s.Label.Render("Agent"), s.Notice["warning"].Render("none enabled"))
	}

	stateStyle := s.StateIdle
	if m.state != "idle" {
		stateStyle = s.StateBusy
	}
	fmt.Fprintf(&b, "%s%s\n", s.Label.Render("Pipeline"), stateStyle.Render(m.state))

	if m.prompt != nil {
		fmt.Fprintf(&b, "\n%s\n%s\n", s.Label.Render("Input for "+m.prompt.label), m.prompt.input.View())
	} else if m.notice != "" {
		style, ok := s.Notice[m.level]
		if !ok {
			style = s.Notice["info"]
		}
		b.WriteString("\n" + style.Render(m.notice) + "\n")
	}
	help := "enter run · tab next agent · w next workspace · q quit"
	if m.prompt != nil {
		help = "enter submit · esc cancel"
	}
	b.WriteString("\n" + s.Help.Render(help))

	frame := s.Frame
	if m.width > 4 {
		frame = frame.MaxWidth(m.width)
	}
	return frame.Render(b.String())
}

// Run shows the popup until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	defer m.Close()
	if opts.Prompter != nil {
		defer opts.Prompter.Close()
	}
	_, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
