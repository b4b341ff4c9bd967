//go:build windows

package hotkey

import "os"

// DefaultSignalBindings is empty on Windows, which has no user signals.
func DefaultSignalBindings() map[os.Signal]Action {
	return map[os.Signal]Action{}
}
