package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/soyeahso/agentclick/internal/domain"
)

// ChangeKind classifies a catalog change.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// ChangeEvent describes one agent that appeared, changed or disappeared
// between two scans.
type ChangeEvent struct {
	Kind      ChangeKind       `json:"kind"`
	AgentID   string           `json:"agentId"`
	AgentKind domain.AgentKind `json:"agentType"`
	Source    string           `json:"source"`
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Kind, e.AgentID, e.AgentKind)
}

// OnChange registers a callback invoked for every change event, in
// registration order.
func (c *Catalog) OnChange(fn func(ChangeEvent)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Poll rescans, replaces the index and returns the differences against
// the previous index. Registered callbacks receive each event.
func (c *Catalog) Poll() []ChangeEvent {
	before := make(map[string]*domain.Agent)
	for _, a := range c.List() {
		before[a.ID] = a
	}

	after := c.ScanAll()

	var events []ChangeEvent
	current := make(map[string]bool, len(after))
	for _, a := range after {
		current[a.ID] = true
		prev, existed := before[a.ID]
		switch {
		case !existed:
			events = append(events, ChangeEvent{Kind: ChangeAdded, AgentID: a.ID, AgentKind: a.Kind, Source: a.Source})
		case !prev.ModTime.Equal(a.ModTime) || prev.Size != a.Size || prev.Source != a.Source:
			events = append(events, ChangeEvent{Kind: ChangeModified, AgentID: a.ID, AgentKind: a.Kind, Source: a.Source})
		}
	}
	for _, a := range orderedValues(before) {
		if !current[a.ID] {
			c.cache.remove(a.ID)
			events = append(events, ChangeEvent{Kind: ChangeRemoved, AgentID: a.ID, AgentKind: a.Kind, Source: a.Source})
		}
	}

	for _, ev := range events {
		c.emit(ev)
	}
	return events
}

func (c *Catalog) emit(ev ChangeEvent) {
	c.cbMu.RLock()
	cbs := append([]func(ChangeEvent){}, c.callbacks...)
	c.cbMu.RUnlock()

	c.log.Debug().Str("event", string(ev.Kind)).Str("agent", ev.AgentID).Msg("catalog change")
	for _, fn := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error().Interface("panic", r).Str("agent", ev.AgentID).Msg("catalog callback panicked")
				}
			}()
			fn(ev)
		}()
	}
}

// Watch polls every interval until ctx is done. It may be called again
// after it returns.
func (c *Catalog) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.log.Debug().Dur("interval", interval).Msg("catalog watch started")
	for {
		select {
		case <-ctx.Done():
			c.log.Debug().Msg("catalog watch stopped")
			return
		case <-ticker.C:
			c.Poll()
		}
	}
}

func orderedValues(m map[string]*domain.Agent) []*domain.Agent {
	out := make([]*domain.Agent, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *domain.Agent) int { return strings.Compare(a.ID, b.ID) })
	return out
}
