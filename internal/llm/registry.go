package llm

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/logging"
)

// Registry maps provider names to clients. Names that are not registered
// resolve to the default provider when one is set.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	def     string
	log     *logging.Logger
}

func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{clients: map[string]Client{}, log: log.Sub("llm")}
}

// Register adds client under name, replacing any previous one.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	r.clients[name] = client
	r.mu.Unlock()
	r.log.Debug().Str("provider", name).Msg("provider registered")
}

// SetDefault names the provider used for unknown names.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = name
}

func (r *Registry) Resolve(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range []string{name, r.def} {
		if c, ok := r.clients[n]; ok && n != "" {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no agent provider %q", name)
}

// List returns the registered names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// NewRegistryFromConfig registers the configured provider as the default.
// A binary missing from PATH only warns; the run itself fails later with a
// StartError naming the command.
func NewRegistryFromConfig(cfg config.AgentConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	var p *Subprocess
	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider)); name {
	case "external":
		p = NewExternalCLIClient(ExternalCLIConfig{Command: cfg.Command, BaseArgs: cfg.Args}, log)
	default:
		if name != "" && name != "claude" {
			reg.log.Warn().Str("provider", cfg.Provider).Msg("unknown agent provider, using claude")
		}
		p = NewClaudeClient(cfg.Command, log)
	}
	if !p.Available() {
		reg.log.Warn().Str("command", p.Command()).Msg("agent command not found in PATH")
	}

	reg.Register(p.Name(), p)
	reg.SetDefault(p.Name())
	return reg
}
