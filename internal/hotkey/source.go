package hotkey

import (
	"context"
	"sort"
	"sync"

	"github.com/soyeahso/agentclick/internal/logging"
)

// Source produces hotkey events into a dispatcher.
type Source interface {
	// Name identifies the source (e.g. "signal", "gateway").
	Name() string
	// Start begins delivering events. It may block until ctx is done.
	Start(ctx context.Context, d *Dispatcher) error
	// Stop releases the source.
	Stop(ctx context.Context) error
}

// Registry manages the set of hotkey sources feeding one dispatcher.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	log     *logging.Logger
}

// NewRegistry creates a source registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		sources: make(map[string]Source),
		log:     log.Sub("hotkey"),
	}
}

// Register adds a source, replacing any with the same name.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
	r.log.Info().Str("source", s.Name()).Msg("hotkey source registered")
}

// List returns the registered source names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered sources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// StartAll starts every source in its own goroutine. Start may block, so
// one source never holds up the next.
func (r *Registry) StartAll(ctx context.Context, d *Dispatcher) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, s := range r.sources {
		r.log.Info().Str("source", name).Msg("starting hotkey source")
		go func(name string, s Source) {
			if err := s.Start(ctx, d); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Str("source", name).Msg("hotkey source exited with error")
			}
		}(name, s)
	}
}

// StopAll stops every source.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, s := range r.sources {
		if err := s.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("source", name).Msg("failed to stop hotkey source")
		}
	}
}
