package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".agentclick"

// Paths holds resolved filesystem paths for AgentClick data.
type Paths struct {
	Base       string // ~/.agentclick
	Config     string // ~/.agentclick/config.yaml
	Workspaces string // ~/.agentclick/workspaces.yaml
	Templates  string // ~/.agentclick/input_templates.yaml
	Logs       string // ~/.agentclick/logs
	Data       string // ~/.agentclick/data
}

// ResolvePaths computes all standard paths from the home directory.
// If AGENTCLICK_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("AGENTCLICK_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}
	return PathsAt(base), nil
}

// PathsAt lays out the standard paths under base.
func PathsAt(base string) Paths {
	return Paths{
		Base:       base,
		Config:     filepath.Join(base, "config.yaml"),
		Workspaces: filepath.Join(base, "workspaces.yaml"),
		Templates:  filepath.Join(base, "input_templates.yaml"),
		Logs:       filepath.Join(base, "logs"),
		Data:       filepath.Join(base, "data"),
	}
}

// HistoryDB is the SQLite execution history file.
func (p Paths) HistoryDB() string {
	return filepath.Join(p.Data, "history.db")
}

// LogFile is the default rotating log file.
func (p Paths) LogFile() string {
	return filepath.Join(p.Logs, "agentclick.log")
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
