//go:build !windows

package hotkey

import (
	"os"
	"syscall"
)

// DefaultSignalBindings maps SIGUSR1, SIGUSR2 and SIGHUP to execute,
// next-agent and next-workspace.
func DefaultSignalBindings() map[os.Signal]Action {
	return map[os.Signal]Action{
		syscall.SIGUSR1: ActionExecute,
		syscall.SIGUSR2: ActionNextAgent,
		syscall.SIGHUP:  ActionNextWorkspace,
	}
}
