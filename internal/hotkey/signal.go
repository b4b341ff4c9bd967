package hotkey

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// SignalSource turns POSIX signals into hotkey events so that any external
// key binder can drive a running daemon with kill(1).
type SignalSource struct {
	bindings map[os.Signal]Action

	mu sync.Mutex
	ch chan os.Signal
}

// NewSignalSource uses DefaultSignalBindings when bindings is nil.
func NewSignalSource(bindings map[os.Signal]Action) *SignalSource {
	if bindings == nil {
		bindings = DefaultSignalBindings()
	}
	return &SignalSource{bindings: bindings}
}

func (s *SignalSource) Name() string { return "signal" }

// Start blocks until ctx is done or Stop is called.
func (s *SignalSource) Start(ctx context.Context, d *Dispatcher) error {
	ch := make(chan os.Signal, 4)
	sigs := make([]os.Signal, 0, len(s.bindings))
	for sig := range s.bindings {
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		<-ctx.Done()
		return nil
	}
	signal.Notify(ch, sigs...)

	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
	defer s.Stop(context.Background())

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return nil
			}
			action, bound := s.bindings[sig]
			if !bound {
				continue
			}
			if err := d.Submit(ctx, Event{Action: action, Source: "signal:" + sig.String()}); err != nil {
				return err
			}
		}
	}
}

// Stop unregisters the signal handlers.
func (s *SignalSource) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		signal.Stop(s.ch)
		close(s.ch)
		s.ch = nil
	}
	return nil
}
