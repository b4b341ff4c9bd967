package notify

import (
	"context"
	"sync"
	"time"
)

// DefaultMinInterval is the throttle window for repeated notifications.
const DefaultMinInterval = 500 * time.Millisecond

// Throttle drops a notification when one with the same level and title
// passed within the window. Errors always pass. Zero timestamps are set to
// now before forwarding.
type Throttle struct {
	next   Sink
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottle wraps next. A non-positive window uses DefaultMinInterval.
func NewThrottle(next Sink, window time.Duration) *Throttle {
	if window <= 0 {
		window = DefaultMinInterval
	}
	return &Throttle{
		next:   next,
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

func (t *Throttle) Notify(ctx context.Context, n Notification) {
	now := t.now()
	if n.Time.IsZero() {
		n.Time = now
	}
	if n.Level != LevelError {
		key := string(n.Level) + "\x00" + n.Title
		t.mu.Lock()
		prev, seen := t.last[key]
		if seen && now.Sub(prev) < t.window {
			t.mu.Unlock()
			return
		}
		t.last[key] = now
		t.mu.Unlock()
	}
	t.next.Notify(ctx, n)
}
