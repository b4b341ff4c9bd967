// Package migrate converts a v1 agent_config.json into v2 command files and
// a workspaces file, with a timestamped backup and rollback.
package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/agentclick/internal/catalog"
	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

const (
	// MigratedDescription marks command files written by a migration.
	MigratedDescription = "Migrated from V1"
	backupTimeLayout    = "20060102_150405"
	backupExt           = ".backup"
	workspaceName       = "Default Workspace (Migrated from V1)"
)

// ErrNotConfirmed is returned by Execute and Rollback without confirmation.
var ErrNotConfirmed = errors.New("migration requires explicit confirmation (--yes)")

// Error is a migration failure.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("migrate %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("migrate %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Options locates the legacy and target files.
type Options struct {
	// ProjectDir holds config/agent_config.json and .claude/.
	ProjectDir string
	// Source overrides the legacy config path.
	Source string
	// Workspaces is the target workspaces file.
	Workspaces string
	Logger     *logging.Logger
}

// Migrator runs one project's migration.
type Migrator struct {
	source      string
	claudeDir   string
	commandsDir string
	workspaces  string
	projectDir  string
	log         *logging.Logger
	now         func() time.Time
}

// New creates a Migrator. Relative paths are resolved against ProjectDir.
func New(opts Options) *Migrator {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	source := opts.Source
	if source == "" {
		source = filepath.Join("config", "agent_config.json")
	}
	if !filepath.IsAbs(source) {
		source = filepath.Join(opts.ProjectDir, source)
	}
	claudeDir := filepath.Join(opts.ProjectDir, ".claude")
	return &Migrator{
		source:      source,
		claudeDir:   claudeDir,
		commandsDir: filepath.Join(claudeDir, "commands"),
		workspaces:  opts.Workspaces,
		projectDir:  opts.ProjectDir,
		log:         log.Sub("migrate"),
		now:         time.Now,
	}
}

// Source returns the legacy config path.
func (m *Migrator) Source() string { return m.source }

// PlannedAgent is one command file a migration would produce.
type PlannedAgent struct {
	LegacyID string
	ID       string
	Name     string
	Enabled  bool
	Path     string
	// Exists means the file is already present and will be left alone.
	Exists bool
}

// Plan describes a migration without touching the filesystem.
type Plan struct {
	Source           string
	CommandsDir      string
	Workspaces       string
	WorkspacesExists bool
	Folder           string
	Agents           []PlannedAgent
}

// ToCreate counts the command files Execute would write.
func (p *Plan) ToCreate() int {
	n := 0
	for _, a := range p.Agents {
		if !a.Exists {
			n++
		}
	}
	return n
}

// Print writes a human-readable plan.
func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "Source:      %s\n", p.Source)
	fmt.Fprintf(w, "Commands:    %s\n", p.CommandsDir)
	ws := p.Workspaces
	if p.WorkspacesExists {
		ws += " (exists, will be backed up and replaced)"
	}
	fmt.Fprintf(w, "Workspaces:  %s\n", ws)
	fmt.Fprintf(w, "Workspace:   default, folder %s\n", p.Folder)
	fmt.Fprintf(w, "Agents (%d):\n", len(p.Agents))
	for _, a := range p.Agents {
		state := "create"
		if a.Exists {
			state = "skip, exists"
		}
		enabled := ""
		if !a.Enabled {
			enabled = " [disabled]"
		}
		fmt.Fprintf(w, "  %-24s -> %s (%s)%s\n", a.LegacyID, filepath.Base(a.Path), state, enabled)
	}
}

// Plan reads the legacy config and computes what Execute would do.
func (m *Migrator) Plan() (*Plan, []LegacyEntry, error) {
	entries, err := LoadLegacy(m.source)
	if err != nil {
		return nil, nil, err
	}

	plan := &Plan{
		Source:      m.source,
		CommandsDir: m.commandsDir,
		Workspaces:  m.workspaces,
		Folder:      m.projectDir,
	}
	if entries[0].Agent.ContextFolder != "" {
		plan.Folder = entries[0].Agent.ContextFolder
	}
	if info, err := os.Stat(m.workspaces); err == nil && info.Mode().IsRegular() {
		plan.WorkspacesExists = true
	}

	owners := make(map[string]string)
	for _, e := range entries {
		id := KebabID(e.ID)
		if prev, dup := owners[id]; dup {
			return nil, nil, &Error{Op: "plan", Message: fmt.Sprintf("agents '%s' and '%s' both map to command id '%s'", prev, e.ID, id)}
		}
		owners[id] = e.ID

		path := filepath.Join(m.commandsDir, id+".md")
		_, statErr := os.Stat(path)
		plan.Agents = append(plan.Agents, PlannedAgent{
			LegacyID: e.ID,
			ID:       id,
			Name:     e.Agent.Name,
			Enabled:  e.Agent.Enabled,
			Path:     path,
			Exists:   statErr == nil,
		})
	}
	return plan, entries, nil
}

// Report summarizes a finished Execute.
type Report struct {
	Backup           string
	WorkspacesBackup string
	Created          []string
	Skipped          []string
	Workspaces       string
}

type commandHeader struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// Execute backs up the legacy config, writes command files and the
// workspaces file, then verifies them. Any failure after the backup undoes
// this run's writes.
func (m *Migrator) Execute(confirmed bool) (*Report, error) {
	if !confirmed {
		return nil, ErrNotConfirmed
	}
	plan, entries, err := m.Plan()
	if err != nil {
		return nil, err
	}

	stamp := m.now().Format(backupTimeLayout)
	backup, err := m.backup(m.source, stamp)
	if err != nil {
		return nil, err
	}
	report := &Report{Backup: backup, Workspaces: m.workspaces}
	m.log.Info().Str("backup", backup).Int("agents", len(entries)).Msg("legacy config backed up")

	if plan.WorkspacesExists {
		wsBackup, err := m.backup(m.workspaces, stamp)
		if err != nil {
			return nil, err
		}
		report.WorkspacesBackup = wsBackup
	}

	if err := m.write(plan, entries, report); err != nil {
		m.undo(report)
		return nil, &Error{Op: "execute", Message: "migration failed and was rolled back", Err: err}
	}
	if err := m.verify(plan); err != nil {
		m.undo(report)
		return nil, &Error{Op: "execute", Message: "verification failed and was rolled back", Err: err}
	}

	m.log.Info().
		Int("created", len(report.Created)).
		Int("skipped", len(report.Skipped)).
		Str("workspaces", m.workspaces).
		Msg("migration complete")
	return report, nil
}

func (m *Migrator) write(plan *Plan, entries []LegacyEntry, report *Report) error {
	if err := os.MkdirAll(m.commandsDir, 0o755); err != nil {
		return fmt.Errorf("creating commands directory: %w", err)
	}

	refs := make([]domain.AgentRef, 0, len(entries))
	for i, e := range entries {
		pa := plan.Agents[i]
		refs = append(refs, domain.AgentRef{Kind: domain.KindCommand, ID: pa.ID, Enabled: e.Agent.Enabled})
		if pa.Exists {
			report.Skipped = append(report.Skipped, pa.Path)
			m.log.Debug().Str("path", pa.Path).Msg("command file exists, skipping")
			continue
		}
		doc, err := renderCommand(pa.ID, e.Agent)
		if err != nil {
			return fmt.Errorf("converting agent '%s': %w", e.ID, err)
		}
		if err := config.WriteFileAtomic(pa.Path, doc, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", pa.Path, err)
		}
		report.Created = append(report.Created, pa.Path)
	}

	ws := domain.Workspace{
		ID:     domain.DefaultWorkspaceID,
		Name:   workspaceName,
		Folder: plan.Folder,
		Emoji:  domain.DefaultWorkspaceEmoji,
		Color:  domain.DefaultWorkspaceColor,
		Agents: refs,
	}
	store := config.NewWorkspaceStore(m.workspaces, m.log)
	if err := store.Save([]domain.Workspace{ws}, ws.ID); err != nil {
		return fmt.Errorf("writing workspaces: %w", err)
	}
	return nil
}

func renderCommand(id string, a LegacyAgent) ([]byte, error) {
	header, err := yaml.Marshal(commandHeader{
		ID:          id,
		Name:        a.Name,
		Description: MigratedDescription,
		Version:     config.FileVersion,
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n")
	buf.WriteString(ConvertPrompt(a))
	return buf.Bytes(), nil
}

// verify re-reads everything through the same loaders the daemon uses.
func (m *Migrator) verify(plan *Plan) error {
	store := config.NewWorkspaceStore(m.workspaces, m.log)
	workspaces, current, err := store.Load()
	if err != nil {
		return err
	}
	if len(workspaces) != 1 || current != domain.DefaultWorkspaceID {
		return fmt.Errorf("workspaces file does not contain the default workspace")
	}
	if got := len(workspaces[0].Agents); got != len(plan.Agents) {
		return fmt.Errorf("workspace lists %d agents, expected %d", got, len(plan.Agents))
	}

	cat := catalog.New(catalog.Options{Root: m.claudeDir, Logger: m.log})
	cat.ScanAll()
	for _, pa := range plan.Agents {
		a, err := cat.Lookup(pa.ID)
		if err != nil {
			return fmt.Errorf("command %s not loadable: %w", pa.ID, err)
		}
		if a.Kind != domain.KindCommand {
			return fmt.Errorf("command %s loaded as %s", pa.ID, a.Kind)
		}
	}
	return nil
}

// undo removes this run's outputs and restores any replaced workspaces file.
func (m *Migrator) undo(report *Report) {
	for _, p := range report.Created {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			m.log.Warn().Err(err).Str("path", p).Msg("removing migrated file")
		}
	}
	m.restoreWorkspaces(report.WorkspacesBackup)
	m.log.Warn().Int("removed", len(report.Created)).Msg("migration rolled back")
}

func (m *Migrator) restoreWorkspaces(backup string) {
	if backup != "" {
		if err := copyVerified(backup, m.workspaces); err != nil {
			m.log.Error().Err(err).Str("backup", backup).Msg("restoring workspaces file")
		}
		return
	}
	if err := os.Remove(m.workspaces); err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Str("path", m.workspaces).Msg("removing workspaces file")
	}
}

// RollbackReport summarizes a finished Rollback.
type RollbackReport struct {
	Restored   string
	Removed    []string
	Workspaces string
}

// Rollback restores a legacy config backup (the newest one when backup is
// empty), removes the command files generated from it and restores or
// removes the workspaces file.
func (m *Migrator) Rollback(confirmed bool, backup string) (*RollbackReport, error) {
	if !confirmed {
		return nil, ErrNotConfirmed
	}
	if backup == "" {
		newest, err := m.newestBackup(m.source)
		if err != nil {
			return nil, err
		}
		backup = newest
	}

	data, err := os.ReadFile(backup)
	if err != nil {
		return nil, &Error{Op: "rollback", Message: "reading backup", Err: err}
	}
	entries, err := ParseLegacy(data)
	if err != nil {
		return nil, err
	}

	report := &RollbackReport{Restored: backup}
	for _, e := range entries {
		path := filepath.Join(m.commandsDir, KebabID(e.ID)+".md")
		if !isMigratedCommand(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return report, &Error{Op: "rollback", Message: "removing " + path, Err: err}
		}
		report.Removed = append(report.Removed, path)
	}

	wsBackup := m.pairedBackup(m.workspaces, backup)
	m.restoreWorkspaces(wsBackup)
	if wsBackup != "" {
		report.Workspaces = "restored from " + wsBackup
	} else {
		report.Workspaces = "removed"
	}

	if err := copyVerified(backup, m.source); err != nil {
		return report, &Error{Op: "rollback", Message: "restoring legacy config", Err: err}
	}
	m.log.Info().Str("backup", backup).Int("removed", len(report.Removed)).Msg("rollback complete")
	return report, nil
}

// isMigratedCommand reports whether path is a command file this package wrote.
func isMigratedCommand(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Contains(data, []byte("description: "+MigratedDescription))
}

// backupName is <stem>_<stamp>.backup next to path.
func backupName(path, stamp string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), stem+"_"+stamp+backupExt)
}

func (m *Migrator) backup(path, stamp string) (string, error) {
	dst := backupName(path, stamp)
	if err := copyVerified(path, dst); err != nil {
		return "", &Error{Op: "backup", Message: "failed to create backup of " + path, Err: err}
	}
	return dst, nil
}

func (m *Migrator) newestBackup(path string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), stem+"_*"+backupExt))
	if err != nil {
		return "", &Error{Op: "rollback", Message: "listing backups", Err: err}
	}
	if len(matches) == 0 {
		return "", &Error{Op: "rollback", Message: "no backup found for " + path}
	}
	// The timestamp layout sorts lexically.
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// pairedBackup finds the workspaces backup taken in the same run as
// sourceBackup.
func (m *Migrator) pairedBackup(path, sourceBackup string) string {
	stem := strings.TrimSuffix(filepath.Base(m.source), filepath.Ext(m.source))
	base := strings.TrimSuffix(filepath.Base(sourceBackup), backupExt)
	stamp := strings.TrimPrefix(base, stem+"_")
	if stamp == base {
		return ""
	}
	candidate := backupName(path, stamp)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// copyVerified copies src to dst and checks the written size.
func copyVerified(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(dst, data, info.Mode().Perm()); err != nil {
		return err
	}
	out, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("backup not created: %w", err)
	}
	if out.Size() != info.Size() {
		return fmt.Errorf("backup size mismatch: expected %d bytes, got %d bytes", info.Size(), out.Size())
	}
	return nil
}
