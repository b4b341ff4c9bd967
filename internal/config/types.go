package config

import "time"

// Config is the root settings file for AgentClick.
type Config struct {
	Project       ProjectConfig       `yaml:"project,omitempty"`
	Catalog       CatalogConfig       `yaml:"catalog,omitempty"`
	Pipeline      PipelineConfig      `yaml:"pipeline,omitempty"`
	Input         InputConfig         `yaml:"input,omitempty"`
	Agent         AgentConfig         `yaml:"agent,omitempty"`
	Gateway       GatewayConfig       `yaml:"gateway,omitempty"`
	Notifications NotificationsConfig `yaml:"notifications,omitempty"`
	History       HistoryConfig       `yaml:"history,omitempty"`
	Logging       LoggingConfig       `yaml:"logging,omitempty"`
	Hotkeys       HotkeysConfig       `yaml:"hotkeys,omitempty"`
}

// ProjectConfig locates the directory whose .claude/ tree holds agent definitions.
type ProjectConfig struct {
	Dir string `yaml:"dir,omitempty"` // defaults to the working directory
}

// CatalogConfig controls agent discovery.
type CatalogConfig struct {
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	CacheSize    int           `yaml:"cacheSize,omitempty"`
}

// PipelineConfig controls execution behavior.
type PipelineConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
	Retry    RetryConfig   `yaml:"retry,omitempty"`
	Breaker  BreakerConfig `yaml:"breaker,omitempty"`
}

// RetryConfig configures exponential backoff for transient agent failures.
type RetryConfig struct {
	MaxRetries      int           `yaml:"maxRetries,omitempty"`
	InitialInterval time.Duration `yaml:"initialInterval,omitempty"`
	MaxInterval     time.Duration `yaml:"maxInterval,omitempty"`
	Multiplier      float64       `yaml:"multiplier,omitempty"`
}

// BreakerConfig configures the circuit breaker around the agent runner.
type BreakerConfig struct {
	Enabled  *bool         `yaml:"enabled,omitempty"` // defaults to true
	Failures int           `yaml:"failures,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// IsEnabled reports whether the breaker should wrap the runner.
func (b BreakerConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// InputConfig controls input resolution.
type InputConfig struct {
	FetchTimeout  time.Duration `yaml:"fetchTimeout,omitempty"`
	MaxFetchBytes int64         `yaml:"maxFetchBytes,omitempty"`
	URLFallback   bool          `yaml:"urlFallback,omitempty"` // on fetch failure, use the URL text itself
}

// AgentConfig selects and tunes the external agent-execution provider.
type AgentConfig struct {
	Provider       string        `yaml:"provider,omitempty"` // "claude" | "external"
	Command        string        `yaml:"command,omitempty"`
	Args           []string      `yaml:"args,omitempty"` // extra args, external provider only
	PermissionMode string        `yaml:"permissionMode,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// GatewayConfig controls the local control server.
type GatewayConfig struct {
	Enabled *bool       `yaml:"enabled,omitempty"` // defaults to true
	Port    int         `yaml:"port,omitempty"`
	Bind    string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	Host    string      `yaml:"host,omitempty"` // used with bind: custom
	Auth    GatewayAuth `yaml:"auth,omitempty"`
}

// IsEnabled reports whether the daemon should start the gateway.
func (g GatewayConfig) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// NotificationsConfig controls the notification sink.
type NotificationsConfig struct {
	MinInterval time.Duration `yaml:"minInterval,omitempty"`
}

// HistoryConfig controls the execution history store.
type HistoryConfig struct {
	Enabled    *bool `yaml:"enabled,omitempty"` // defaults to true
	MaxEntries int   `yaml:"maxEntries,omitempty"`
}

// IsEnabled reports whether runs are recorded.
func (h HistoryConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HotkeysConfig maps key chords to actions for external key binders.
type HotkeysConfig struct {
	Bindings map[string]string `yaml:"bindings,omitempty"`
}
