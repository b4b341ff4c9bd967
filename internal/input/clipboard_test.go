package input

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/atotto/clipboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemClipboardUsesSeam(t *testing.T) {
	if clipboard.Unsupported {
		t.Skip("no clipboard utility on this host")
	}
	origRead, origWrite := clipboardReadAll, clipboardWriteAll
	t.Cleanup(func() { clipboardReadAll, clipboardWriteAll = origRead, origWrite })

	var stored string
	clipboardWriteAll = func(s string) error { stored = s; return nil }
	clipboardReadAll = func() (string, error) { return stored, nil }

	var c SystemClipboard
	require.NoError(t, c.WriteAll("copied"))
	got, err := c.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "copied", got)
}

func TestMemoryClipboard(t *testing.T) {
	c := &MemoryClipboard{}
	require.NoError(t, c.WriteAll("a"))
	got, err := c.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	c.WriteErr = errors.New("locked")
	assert.Error(t, c.WriteAll("b"))
	assert.Equal(t, "a", c.Text)
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := LinePrompter{In: strings.NewReader("fix the bug\r\n"), Out: &out}
	text, ok, err := p.Prompt(context.Background(), "Code Review")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fix the bug", text)
	assert.Equal(t, "Enter input for Code Review: ", out.String())
}

func TestLinePrompterBlankCancels(t *testing.T) {
	for _, in := range []string{"\n", "   \n", ""} {
		p := LinePrompter{In: strings.NewReader(in)}
		_, ok, err := p.Prompt(context.Background(), "x")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestLinePrompterContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := LinePrompter{In: pr}.Prompt(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
