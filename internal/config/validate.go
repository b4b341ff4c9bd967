package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue = domain.ValidationIssue

// HotkeyActions are the actions a key binding may name.
var HotkeyActions = []string{"execute", "next-agent", "next-workspace"}

var (
	bindModes       = []string{"loopback", "lan", "custom"}
	consoleStyles   = []string{"pretty", "json"}
	providers       = []string{"claude", "external"}
	permissionModes = []string{"default", "acceptEdits", "plan", "bypassPermissions"}
)

// checker accumulates issues in the order checks run.
type checker []ValidationIssue

func (c *checker) failf(path, format string, args ...any) {
	*c = append(*c, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// oneOf flags a non-empty value outside allowed.
func (c *checker) oneOf(path, value string, allowed []string) {
	if value != "" && !slices.Contains(allowed, value) {
		c.failf(path, "must be one of %v, got %q", allowed, value)
	}
}

// Validate reports every problem in cfg, or nil.
func Validate(cfg *Config) []ValidationIssue {
	var c checker

	gw := cfg.Gateway
	if gw.Port < 0 || gw.Port > 65535 {
		c.failf("gateway.port", "port must be 0-65535, got %d", gw.Port)
	}
	c.oneOf("gateway.bind", gw.Bind, bindModes)
	if gw.Bind == "custom" && gw.Host == "" {
		c.failf("gateway.host", "required when bind: custom")
	}
	if gw.Bind != "" && gw.Bind != "loopback" && gw.Auth.Token == "" {
		c.failf("gateway.auth.token", "a token is required when the gateway is not bound to loopback")
	}

	if lvl := cfg.Logging.Level; lvl != "" && !logging.IsValidLevel(lvl) {
		c.failf("logging.level", "must be one of %v, got %q", logging.ValidLevels, lvl)
	}
	c.oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, consoleStyles)

	c.oneOf("agent.provider", cfg.Agent.Provider, providers)
	if cfg.Agent.Provider == "external" && cfg.Agent.Command == "" {
		c.failf("agent.command", "required when agent.provider: external")
	}
	c.oneOf("agent.permissionMode", cfg.Agent.PermissionMode, permissionModes)

	retry := cfg.Pipeline.Retry
	if retry.MaxRetries < 0 || retry.MaxRetries > 10 {
		c.failf("pipeline.retry.maxRetries", "must be 0-10, got %d", retry.MaxRetries)
	}
	if retry.Multiplier != 0 && retry.Multiplier < 1 {
		c.failf("pipeline.retry.multiplier", "must be >= 1, got %g", retry.Multiplier)
	}

	if cfg.Input.MaxFetchBytes < 0 {
		c.failf("input.maxFetchBytes", "must not be negative")
	}

	for _, chord := range slices.Sorted(maps.Keys(cfg.Hotkeys.Bindings)) {
		c.oneOf("hotkeys.bindings."+chord, cfg.Hotkeys.Bindings[chord], HotkeyActions)
		if cfg.Hotkeys.Bindings[chord] == "" {
			c.failf("hotkeys.bindings."+chord, "has no action")
		}
	}

	if len(c) == 0 {
		return nil
	}
	return c
}
