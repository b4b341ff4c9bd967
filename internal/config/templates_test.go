package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentclick/internal/domain"
)

func TestTemplateStore_MissingFile(t *testing.T) {
	defs, err := NewTemplateStore(filepath.Join(t.TempDir(), "input_templates.yaml"), testLogger()).Load()
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestTemplateStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input_templates.yaml")
	s := NewTemplateStore(path, testLogger())

	in := []domain.TemplateDefinition{
		{AgentID: "review", Text: "Review this:\n{{input}}", Enabled: true},
		{AgentID: "translate", Text: "Translate {{input}} for {{agent_name}}", Enabled: false},
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTemplateStore_EnabledDefaultsTrue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input_templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates:\n  a:\n    template: \"{{input}}!\"\n"), 0o600))

	defs, err := NewTemplateStore(path, testLogger()).Load()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.True(t, defs[0].Enabled)
	assert.Equal(t, "{{input}}!", defs[0].Text)
}

func TestTemplateStore_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input_templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"3.0\"\ntemplates: {}\n"), 0o600))

	_, err := NewTemplateStore(path, testLogger()).Load()
	var loadErr *domain.ConfigLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestTemplateStore_MissingTemplatesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input_templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2.0\"\n"), 0o600))

	_, err := NewTemplateStore(path, testLogger()).Load()
	var loadErr *domain.ConfigLoadError
	assert.True(t, errors.As(err, &loadErr))
}
