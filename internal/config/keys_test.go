package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr string
	}{
		{"gateway", []string{"gateway"}, ""},
		{"gateway.port", []string{"gateway", "port"}, ""},
		{"gateway.auth.token", []string{"gateway", "auth", "token"}, ""},
		{"pipeline.retry.maxRetries", []string{"pipeline", "retry", "maxRetries"}, ""},
		{"history.enabled", []string{"history", "enabled"}, ""},
		{"hotkeys.bindings.ctrl+alt+e", []string{"hotkeys", "bindings", "ctrl+alt+e"}, ""},
		{"", nil, "empty config key"},
		{"gateway..port", nil, "empty segment"},
		{"gateway.", nil, "empty segment"},
		{"channels.irc", nil, "unknown config key"},
		{"gateway.mode", nil, "known under gateway: auth, bind, enabled, host, port"},
		{"gateway.port.value", nil, "gateway.port is not a section"},
		{"hotkeys.bindings.a.b", nil, "not a section"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr != "" {
				var ce *ConfigError
				require.ErrorAs(t, err, &ce)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetValueAtPath(t *testing.T) {
	root := map[string]any{
		"gateway": map[string]any{
			"port": 18790,
			"auth": map[string]any{"token": "secret"},
		},
		"project": "not-a-map",
	}

	val, ok := GetValueAtPath(root, []string{"gateway", "auth", "token"})
	assert.True(t, ok)
	assert.Equal(t, "secret", val)

	val, ok = GetValueAtPath(root, []string{"gateway"})
	assert.True(t, ok)
	assert.IsType(t, map[string]any{}, val)

	_, ok = GetValueAtPath(root, []string{"gateway", "bind"})
	assert.False(t, ok)
	_, ok = GetValueAtPath(root, []string{"project", "dir"})
	assert.False(t, ok)
}

func TestSetValueAtPath(t *testing.T) {
	root := map[string]any{"gateway": map[string]any{"port": 18790}}

	require.NoError(t, SetValueAtPath(root, []string{"gateway", "port"}, 9999))
	val, _ := GetValueAtPath(root, []string{"gateway", "port"})
	assert.Equal(t, 9999, val)

	require.NoError(t, SetValueAtPath(root, []string{"pipeline", "retry", "maxRetries"}, 2))
	val, ok := GetValueAtPath(root, []string{"pipeline", "retry", "maxRetries"})
	assert.True(t, ok)
	assert.Equal(t, 2, val)

	root["history"] = nil
	require.NoError(t, SetValueAtPath(root, []string{"history", "maxEntries"}, 50))
	val, _ = GetValueAtPath(root, []string{"history", "maxEntries"})
	assert.Equal(t, 50, val)
}

func TestSetValueAtPathRefusesScalarParent(t *testing.T) {
	root := map[string]any{"gateway": "loopback"}
	err := SetValueAtPath(root, []string{"gateway", "port"}, 1)
	assert.ErrorContains(t, err, "gateway holds loopback")
	assert.Equal(t, "loopback", root["gateway"])
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"gateway": map[string]any{
			"port": 18790,
			"auth": map[string]any{"token": "secret"},
		},
	}

	assert.False(t, UnsetValueAtPath(root, []string{"gateway", "bind"}))
	assert.False(t, UnsetValueAtPath(root, []string{"logging", "level"}))
	assert.False(t, UnsetValueAtPath(root, []string{"gateway", "port", "x"}))

	assert.True(t, UnsetValueAtPath(root, []string{"gateway", "auth", "token"}))
	_, ok := GetValueAtPath(root, []string{"gateway", "auth"})
	assert.False(t, ok, "emptied section is dropped")
	_, ok = GetValueAtPath(root, []string{"gateway", "port"})
	assert.True(t, ok, "siblings survive")

	assert.True(t, UnsetValueAtPath(root, []string{"gateway", "port"}))
	assert.Empty(t, root)
}
