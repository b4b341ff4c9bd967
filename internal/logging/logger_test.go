package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestSubsystemFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	log.Sub("pipeline").With("run_id", "r-1").Info().Str("agent", "review").Msg("run started")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "pipeline", lines[0]["subsystem"])
	assert.Equal(t, "r-1", lines[0]["run_id"])
	assert.Equal(t, "review", lines[0]["agent"])
	assert.Equal(t, "run started", lines[0]["message"])
	assert.Contains(t, lines[0], "time")
}

func TestNestedSubKeepsInnermost(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info").Sub("gateway").Sub("ws").Info().Msg("client connected")
	assert.Contains(t, buf.String(), `"subsystem":"ws"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")
	assert.Equal(t, zerolog.WarnLevel, log.Level())

	log.Trace().Msg("trace")
	log.Debug().Msg("debug")
	log.Info().Msg("info")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warned")
	log.Error().Msg("failed")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestSilentAndNop(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "silent")
	log.Error().Msg("hidden")
	assert.Empty(t, buf.String())

	nop := Nop()
	nop.Sub("catalog").Error().Msg("hidden")
	assert.Equal(t, zerolog.Disabled, nop.Level())
}

func TestNilWriterUsesConsole(t *testing.T) {
	require.NotNil(t, New(nil, "info"))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"silent":  zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestIsValidLevel(t *testing.T) {
	for _, lv := range ValidLevels {
		assert.True(t, IsValidLevel(lv), lv)
	}
	assert.True(t, IsValidLevel("Warning"))
	assert.False(t, IsValidLevel("verbose"))
	assert.False(t, IsValidLevel(""))
}
