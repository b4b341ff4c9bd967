// Package notify delivers user-facing notifications.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/logging"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Notification is one user-facing message.
type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Sink receives notifications. Implementations must not block for long.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification)

func (f SinkFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops everything.
var Discard Sink = SinkFunc(func(context.Context, Notification) {})

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// LogSink writes notifications to the log.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log.Sub("notify")}
}

func (s *LogSink) Notify(_ context.Context, n Notification) {
	ev := s.log.Info()
	switch n.Level {
	case LevelError:
		ev = s.log.Error()
	case LevelWarning:
		ev = s.log.Warn()
	}
	ev.Str("level", string(n.Level)).Str("title", n.Title).Msg(n.Message)
}

// HookSink re-emits notifications on the hook bus as EventNotification.
type HookSink struct {
	hooks *hooks.Manager
}

// NewHookSink creates a HookSink.
func NewHookSink(m *hooks.Manager) *HookSink {
	return &HookSink{hooks: m}
}

func (s *HookSink) Notify(ctx context.Context, n Notification) {
	s.hooks.Emit(ctx, hooks.EventNotification, map[string]any{
		"level":   string(n.Level),
		"title":   n.Title,
		"message": n.Message,
		"time":    n.Time.Format(time.RFC3339Nano),
	})
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.list))
	copy(out, r.list)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) == 0 {
		return Notification{}, false
	}
	return r.list[len(r.list)-1], true
}

// Messages returns just the message texts.
func (r *Recorder) Messages() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, n := range all {
		out[i] = n.Message
	}
	return out
}
