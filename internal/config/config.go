package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default values shared by Defaults and applyDefaults.
const (
	DefaultGatewayPort    = 18790
	DefaultPermissionMode = "acceptEdits"
	DefaultCacheSize      = 1000
	DefaultMaxFetchBytes  = 10 * 1024 * 1024
	DefaultHistoryEntries = 1000
)

// DefaultBindings are the hotkey chords from the desktop tool.
func DefaultBindings() map[string]string {
	return map[string]string{
		"pause":            "execute",
		"ctrl+pause":       "next-agent",
		"ctrl+shift+pause": "next-workspace",
	}
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Catalog: CatalogConfig{
			PollInterval: time.Second,
			CacheSize:    DefaultCacheSize,
		},
		Pipeline: PipelineConfig{
			Debounce: 200 * time.Millisecond,
			Retry: RetryConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      2.0,
			},
			Breaker: BreakerConfig{
				Failures: 5,
				Timeout:  30 * time.Second,
			},
		},
		Input: InputConfig{
			FetchTimeout:  10 * time.Second,
			MaxFetchBytes: DefaultMaxFetchBytes,
		},
		Agent: AgentConfig{
			Provider:       "claude",
			Command:        "claude",
			PermissionMode: DefaultPermissionMode,
			Timeout:        10 * time.Minute,
		},
		Gateway: GatewayConfig{
			Port: DefaultGatewayPort,
			Bind: "loopback",
		},
		Notifications: NotificationsConfig{
			MinInterval: 500 * time.Millisecond,
		},
		History: HistoryConfig{
			MaxEntries: DefaultHistoryEntries,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		Hotkeys: HotkeysConfig{
			Bindings: DefaultBindings(),
		},
	}
}
