package tui

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type promptReply struct {
	text string
	ok   bool
}

// promptMsg asks the running popup for a line of input.
type promptMsg struct {
	label string
	reply chan promptReply
}

// Prompter hands empty-clipboard prompts to the popup. It satisfies
// input.Prompter. Prompts made before the popup starts wait for it; after
// Close every prompt cancels.
type Prompter struct {
	requests chan promptMsg
	done     chan struct{}
	once     sync.Once
}

// NewPrompter creates a Prompter for use in Options.Prompter.
func NewPrompter() *Prompter {
	return &Prompter{requests: make(chan promptMsg), done: make(chan struct{})}
}

// Prompt blocks until the user submits or cancels. A blank line cancels.
func (p *Prompter) Prompt(ctx context.Context, label string) (string, bool, error) {
	req := promptMsg{label: label, reply: make(chan promptReply, 1)}
	select {
	case p.requests <- req:
	case <-p.done:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.text, r.ok, nil
	case <-p.done:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Close cancels pending and future prompts.
func (p *Prompter) Close() {
	p.once.Do(func() { close(p.done) })
}

// prompting is the state of an open input line.
type prompting struct {
	label string
	reply chan promptReply
	input textinput.Model
}

func newPrompting(msg promptMsg, width int) *prompting {
	in := textinput.New()
	in.Placeholder = "type input, enter to run, esc to cancel"
	in.Prompt = "> "
	if width > 8 {
		in.Width = width - 8
	}
	in.Focus()
	return &prompting{label: msg.label, reply: msg.reply, input: in}
}

func (p *prompting) answer(text string, ok bool) {
	p.reply <- promptReply{text: text, ok: ok}
}

// updatePrompt routes keys to the open input line.
func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		text := m.prompt.input.Value()
		m.prompt.answer(text, strings.TrimSpace(text) != "")
		m.prompt = nil
		return m, nil
	case tea.KeyEsc, tea.KeyCtrlC:
		m.prompt.answer("", false)
		m.prompt = nil
		m.notice, m.level = "Input cancelled", "info"
		return m, nil
	}
	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}
