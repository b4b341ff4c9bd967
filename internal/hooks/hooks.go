// Package hooks is the in-process lifecycle event bus. The pipeline, the
// dispatcher and the cli's session and catalog bridges emit events; the
// gateway, the popup and the notification sinks subscribe.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soyeahso/agentclick/internal/logging"
)

// Event names.
const (
	EventNotification     = "notification"
	EventPipelineState    = "pipeline_state"
	EventBeforeAgentRun   = "before_agent_run"
	EventAfterAgentRun    = "after_agent_run"
	EventAgentChanged     = "agent_changed"
	EventWorkspaceChanged = "workspace_changed"
	EventCatalogChanged   = "catalog_changed"
	EventGatewayStart     = "gateway_start"
	EventGatewayStop      = "gateway_stop"
	EventHotkey           = "hotkey"
)

// AllEvents lists every event the bus carries.
var AllEvents = []string{
	EventNotification,
	EventPipelineState,
	EventBeforeAgentRun,
	EventAfterAgentRun,
	EventAgentChanged,
	EventWorkspaceChanged,
	EventCatalogChanged,
	EventGatewayStart,
	EventGatewayStop,
	EventHotkey,
}

// Payload is one delivered event. Seq increases by one per Emit across the
// whole bus, so subscribers can order events from different emitters.
type Payload struct {
	Event string         `json:"event"`
	Seq   uint64         `json:"seq"`
	At    time.Time      `json:"at"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler receives events. An error or panic is logged and does not stop
// delivery to the remaining subscribers.
type Handler func(ctx context.Context, p Payload) error

type subscription struct {
	id      uint64
	name    string
	events  []string // nil matches every event
	handler Handler
}

func (s *subscription) matches(event string) bool {
	return s.events == nil || slices.Contains(s.events, event)
}

// Manager dispatches events to subscribers in subscription order.
type Manager struct {
	mu     sync.RWMutex
	subs   []*subscription
	nextID uint64
	seq    atomic.Uint64
	log    *logging.Logger
}

// NewManager creates an empty bus.
func NewManager(log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{log: log.Sub("hooks")}
}

// Subscribe registers handler under name for the given events, or for all
// events when none are given. The returned func removes exactly this
// subscription and is safe to call more than once.
func (m *Manager) Subscribe(name string, handler Handler, events ...string) (unsubscribe func()) {
	for _, ev := range events {
		if !slices.Contains(AllEvents, ev) {
			m.log.Warn().Str("event", ev).Str("handler", name).Msg("subscribing to unknown event")
		}
	}

	m.mu.Lock()
	m.nextID++
	sub := &subscription{id: m.nextID, name: name, handler: handler}
	if len(events) > 0 {
		sub.events = slices.Clone(events)
	}
	m.subs = append(m.subs, sub)
	m.mu.Unlock()

	m.log.Debug().Strs("events", events).Str("handler", name).Msg("hook subscribed")

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(sub.id) })
	}
}

func (m *Manager) remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = slices.DeleteFunc(m.subs, func(s *subscription) bool { return s.id == id })
}

// Emit delivers an event synchronously to every matching subscriber and
// returns the payload that was sent.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) Payload {
	p := Payload{Event: event, Seq: m.seq.Add(1), At: time.Now(), Data: data}

	m.mu.RLock()
	targets := make([]*subscription, 0, len(m.subs))
	for _, s := range m.subs {
		if s.matches(event) {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range targets {
		if err := call(ctx, s.handler, p); err != nil {
			m.log.Warn().Err(err).Str("event", event).Str("handler", s.name).Msg("hook handler failed")
		}
	}
	return p
}

func call(ctx context.Context, h Handler, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, p)
}

// Count returns how many subscribers would receive event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.subs {
		if s.matches(event) {
			n++
		}
	}
	return n
}

// Subscribers returns subscriber names in subscription order.
func (m *Manager) Subscribers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.subs))
	for i, s := range m.subs {
		names[i] = s.name
	}
	return names
}
