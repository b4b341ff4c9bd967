package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvRefs substitutes ${NAME} with the variable's value. References
// to unset variables are kept verbatim so the mistake stays visible.
func expandEnvRefs(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(ref[2 : len(ref)-1]); ok {
			return v
		}
		return ref
	})
}

// Load layers the settings file over Defaults, then the AGENTCLICK_*
// environment. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
		applyDefaults(&cfg)
	}
	applyEnvOverrides(&cfg)
	cfg.Gateway.Auth.Token = expandEnvRefs(cfg.Gateway.Auth.Token)
	return cfg, nil
}

// LoadRaw reads the settings file as an untyped tree for the config
// subcommands. A missing or empty file yields an empty tree.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes the tree back, owner-only since it may hold the token.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

// fill replaces a zero or negative setting with its default.
func fill[T int | int64 | float64 | time.Duration](v *T, def T) {
	if *v <= 0 {
		*v = def
	}
}

func fillString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

// applyDefaults restores defaults for settings a file left empty or zeroed.
func applyDefaults(cfg *Config) {
	d := Defaults()

	fill(&cfg.Catalog.PollInterval, d.Catalog.PollInterval)
	fill(&cfg.Catalog.CacheSize, d.Catalog.CacheSize)

	p, dp := &cfg.Pipeline, d.Pipeline
	fill(&p.Debounce, dp.Debounce)
	fill(&p.Retry.InitialInterval, dp.Retry.InitialInterval)
	fill(&p.Retry.MaxInterval, dp.Retry.MaxInterval)
	fill(&p.Retry.Multiplier, dp.Retry.Multiplier)
	fill(&p.Breaker.Failures, dp.Breaker.Failures)
	fill(&p.Breaker.Timeout, dp.Breaker.Timeout)

	fill(&cfg.Input.FetchTimeout, d.Input.FetchTimeout)
	fill(&cfg.Input.MaxFetchBytes, d.Input.MaxFetchBytes)

	fillString(&cfg.Agent.Provider, d.Agent.Provider)
	if cfg.Agent.Provider == "claude" {
		fillString(&cfg.Agent.Command, d.Agent.Command)
	}
	fillString(&cfg.Agent.PermissionMode, d.Agent.PermissionMode)
	fill(&cfg.Agent.Timeout, d.Agent.Timeout)

	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	fillString(&cfg.Gateway.Bind, d.Gateway.Bind)
	fill(&cfg.Notifications.MinInterval, d.Notifications.MinInterval)
	fill(&cfg.History.MaxEntries, d.History.MaxEntries)
	fillString(&cfg.Logging.Level, d.Logging.Level)
	fillString(&cfg.Logging.ConsoleStyle, d.Logging.ConsoleStyle)

	if len(cfg.Hotkeys.Bindings) == 0 {
		cfg.Hotkeys.Bindings = DefaultBindings()
	}
}

// envOverrides are applied after the file, in order. An empty variable is
// ignored.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, v string)
}{
	{"AGENTCLICK_GATEWAY_PORT", func(cfg *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}},
	{"AGENTCLICK_GATEWAY_TOKEN", func(cfg *Config, v string) { fillString(&cfg.Gateway.Auth.Token, v) }},
	{"AGENTCLICK_LOG_LEVEL", func(cfg *Config, v string) { cfg.Logging.Level = strings.ToLower(v) }},
	{"AGENTCLICK_PROJECT_DIR", func(cfg *Config, v string) { cfg.Project.Dir = v }},
	{"AGENTCLICK_AGENT_COMMAND", func(cfg *Config, v string) { cfg.Agent.Command = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}
