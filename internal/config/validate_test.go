package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func issuePaths(issues []ValidationIssue) []string {
	var out []string
	for _, is := range issues {
		out = append(out, is.Path)
	}
	return out
}

func TestValidateDefaultsClean(t *testing.T) {
	cfg := Defaults()
	assert.Nil(t, Validate(&cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"port zero", func(c *Config) { c.Gateway.Port = 0 }, nil},
		{"port top", func(c *Config) { c.Gateway.Port = 65535 }, nil},
		{"port negative", func(c *Config) { c.Gateway.Port = -1 }, []string{"gateway.port"}},
		{"port high", func(c *Config) { c.Gateway.Port = 70000 }, []string{"gateway.port"}},
		{"bind unknown", func(c *Config) { c.Gateway.Bind = "invalid" }, []string{"gateway.bind", "gateway.auth.token"}},
		{"custom without host", func(c *Config) {
			c.Gateway.Bind, c.Gateway.Auth.Token = "custom", "t"
		}, []string{"gateway.host"}},
		{"custom with host", func(c *Config) {
			c.Gateway.Bind, c.Gateway.Host, c.Gateway.Auth.Token = "custom", "10.0.0.5", "t"
		}, nil},
		{"lan without token", func(c *Config) { c.Gateway.Bind = "lan" }, []string{"gateway.auth.token"}},
		{"lan with token", func(c *Config) { c.Gateway.Bind, c.Gateway.Auth.Token = "lan", "s3cret" }, nil},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, []string{"logging.level"}},
		{"log level warning alias", func(c *Config) { c.Logging.Level = "WARNING" }, nil},
		{"console style", func(c *Config) { c.Logging.ConsoleStyle = "fancy" }, []string{"logging.consoleStyle"}},
		{"provider", func(c *Config) { c.Agent.Provider = "openai" }, []string{"agent.provider"}},
		{"external needs command", func(c *Config) {
			c.Agent.Provider, c.Agent.Command = "external", ""
		}, []string{"agent.command"}},
		{"permission mode", func(c *Config) { c.Agent.PermissionMode = "yolo" }, []string{"agent.permissionMode"}},
		{"plan mode", func(c *Config) { c.Agent.PermissionMode = "plan" }, nil},
		{"retry bounds", func(c *Config) {
			c.Pipeline.Retry.MaxRetries, c.Pipeline.Retry.Multiplier = 11, 0.5
		}, []string{"pipeline.retry.maxRetries", "pipeline.retry.multiplier"}},
		{"fetch bytes", func(c *Config) { c.Input.MaxFetchBytes = -1 }, []string{"input.maxFetchBytes"}},
		{"bindings sorted by chord", func(c *Config) {
			c.Hotkeys.Bindings = map[string]string{"f9": "execute", "f11": "dance", "f10": "explode"}
		}, []string{"hotkeys.bindings.f10", "hotkeys.bindings.f11"}},
		{"empty binding", func(c *Config) {
			c.Hotkeys.Bindings = map[string]string{"f9": ""}
		}, []string{"hotkeys.bindings.f9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, issuePaths(Validate(&cfg)))
		})
	}
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = -1
	cfg.Logging.Level = "bad"
	cfg.Agent.Provider = "bad"
	assert.Equal(t, []string{"gateway.port", "logging.level", "agent.provider"}, issuePaths(Validate(&cfg)))
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "gateway.port", Message: "must be 0-65535"}
	assert.Contains(t, issue.String(), "gateway.port")
	assert.Contains(t, issue.String(), "must be 0-65535")
}
