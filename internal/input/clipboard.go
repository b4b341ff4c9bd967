package input

import (
	"errors"

	"github.com/atotto/clipboard"
)

// Clipboard is the system clipboard collaborator.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// ErrClipboardUnsupported is returned when no clipboard utility is
// available (for example a headless Linux box without xclip or xsel).
var ErrClipboardUnsupported = errors.New("clipboard not supported on this system")

var (
	clipboardReadAll  = clipboard.ReadAll
	clipboardWriteAll = clipboard.WriteAll
)

// SystemClipboard reads and writes the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", ErrClipboardUnsupported
	}
	return clipboardReadAll()
}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	return clipboardWriteAll(text)
}

// MemoryClipboard is an in-process clipboard used by headless runs and
// tests.
type MemoryClipboard struct {
	Text     string
	ReadErr  error
	WriteErr error
}

func (m *MemoryClipboard) ReadAll() (string, error) {
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.Text, nil
}

func (m *MemoryClipboard) WriteAll(text string) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Text = text
	return nil
}
