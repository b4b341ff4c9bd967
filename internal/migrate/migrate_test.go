package migrate

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/domain"
)

const legacyJSON = `{
  "Code_Review": {
    "name": "Code Review",
    "system_prompt": "Review this: {input}",
    "enabled": true,
    "context_folder": "/src/app"
  },
  "summarize": {
    "name": "Summarize",
    "system_prompt": "Summarize {input} using {context_folder}",
    "enabled": false,
    "context_folder": ""
  }
}`

type fixture struct {
	dir string
	m   *Migrator
}

func newFixture(t *testing.T, legacy string) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "agent_config.json"), []byte(legacy), 0o644))

	m := New(Options{ProjectDir: dir, Workspaces: filepath.Join(dir, "home", "workspaces.yaml")})
	m.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return &fixture{dir: dir, m: m}
}

func (f *fixture) command(id string) string {
	return filepath.Join(f.dir, ".claude", "commands", id+".md")
}

func TestParseLegacy_KeepsOrderAndRequiresFields(t *testing.T) {
	entries, err := ParseLegacy([]byte(legacyJSON))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Code_Review", entries[0].ID)
	assert.Equal(t, "summarize", entries[1].ID)
	assert.False(t, entries[1].Agent.Enabled)

	_, err = ParseLegacy([]byte(`{"a": {"name": "A", "enabled": true, "context_folder": ""}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field: system_prompt")

	_, err = ParseLegacy([]byte(`{"a": "nope"}`))
	require.Error(t, err)

	_, err = ParseLegacy([]byte(`[1, 2`))
	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "load", me.Op)

	_, err = ParseLegacy([]byte(`{}`))
	assert.Error(t, err)
}

func TestKebabID(t *testing.T) {
	assert.Equal(t, "code-review", KebabID("Code_Review"))
	assert.Equal(t, "a-b-c", KebabID("A  b__C"))
	assert.Equal(t, "plain", KebabID("plain"))
}

func TestConvertPrompt(t *testing.T) {
	got := ConvertPrompt(LegacyAgent{SystemPrompt: "Do {input} in {context_folder}", ContextFolder: "/x"})
	assert.Equal(t, "Do {{input}} in {{context_folder}}\n\nContext: {{context_folder}}\n", got)

	got = ConvertPrompt(LegacyAgent{SystemPrompt: "Just {input}\n"})
	assert.Equal(t, "Just {{input}}\n", got)
}

func TestPlan_DoesNotWrite(t *testing.T) {
	f := newFixture(t, legacyJSON)
	plan, _, err := f.m.Plan()
	require.NoError(t, err)

	assert.Equal(t, "/src/app", plan.Folder)
	require.Len(t, plan.Agents, 2)
	assert.Equal(t, "code-review", plan.Agents[0].ID)
	assert.Equal(t, f.command("code-review"), plan.Agents[0].Path)
	assert.Equal(t, 2, plan.ToCreate())

	var buf bytes.Buffer
	plan.Print(&buf)
	assert.Contains(t, buf.String(), "code-review.md (create)")
	assert.Contains(t, buf.String(), "[disabled]")

	assert.NoDirExists(t, filepath.Join(f.dir, ".claude"))
	assert.NoFileExists(t, f.m.workspaces)
}

func TestPlan_FolderFallsBackToProject(t *testing.T) {
	f := newFixture(t, `{"a": {"name": "A", "system_prompt": "x", "enabled": true, "context_folder": ""}}`)
	plan, _, err := f.m.Plan()
	require.NoError(t, err)
	assert.Equal(t, f.dir, plan.Folder)
}

func TestPlan_CollidingIDs(t *testing.T) {
	f := newFixture(t, `{
		"a_b": {"name": "A", "system_prompt": "x", "enabled": true, "context_folder": ""},
		"A B": {"name": "B", "system_prompt": "y", "enabled": true, "context_folder": ""}
	}`)
	_, _, err := f.m.Plan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both map to command id 'a-b'")
}

func TestPlan_MissingSource(t *testing.T) {
	m := New(Options{ProjectDir: t.TempDir(), Workspaces: filepath.Join(t.TempDir(), "w.yaml")})
	_, _, err := m.Plan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "legacy config not found")
}

func TestExecute_RequiresConfirmation(t *testing.T) {
	f := newFixture(t, legacyJSON)
	_, err := f.m.Execute(false)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.NoDirExists(t, filepath.Join(f.dir, ".claude"))
}

func TestExecute(t *testing.T) {
	f := newFixture(t, legacyJSON)
	report, err := f.m.Execute(true)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "config", "agent_config_20260304_050607.backup"), report.Backup)
	assert.FileExists(t, report.Backup)
	assert.Len(t, report.Created, 2)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.WorkspacesBackup)

	data, err := os.ReadFile(f.command("code-review"))
	require.NoError(t, err)
	doc := string(data)
	assert.Contains(t, doc, "id: code-review\n")
	assert.Contains(t, doc, "name: Code Review\n")
	assert.Contains(t, doc, "description: Migrated from V1\n")
	assert.Contains(t, doc, `version: "2.0"`)
	assert.Contains(t, doc, "---\nReview this: {{input}}\n\nContext: {{context_folder}}\n")

	ws, current, err := config.NewWorkspaceStore(f.m.workspaces, f.m.log).Load()
	require.NoError(t, err)
	assert.Equal(t, "default", current)
	require.Len(t, ws, 1)
	assert.Equal(t, "Default Workspace (Migrated from V1)", ws[0].Name)
	assert.Equal(t, "/src/app", ws[0].Folder)
	assert.Equal(t, "🔧", ws[0].Emoji)
	assert.Equal(t, "#0078d4", ws[0].Color)
	assert.Equal(t, []domain.AgentRef{
		{Kind: domain.KindCommand, ID: "code-review", Enabled: true},
		{Kind: domain.KindCommand, ID: "summarize", Enabled: false},
	}, ws[0].Agents)
}

func TestExecute_IdempotentSkipsExisting(t *testing.T) {
	f := newFixture(t, legacyJSON)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.command("summarize")), 0o755))
	custom := "---\nid: summarize\nname: Mine\n---\nhand written\n"
	require.NoError(t, os.WriteFile(f.command("summarize"), []byte(custom), 0o644))

	report, err := f.m.Execute(true)
	require.NoError(t, err)
	assert.Equal(t, []string{f.command("code-review")}, report.Created)
	assert.Equal(t, []string{f.command("summarize")}, report.Skipped)

	data, err := os.ReadFile(f.command("summarize"))
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))
}

func TestExecute_BacksUpExistingWorkspaces(t *testing.T) {
	f := newFixture(t, legacyJSON)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.m.workspaces), 0o755))
	require.NoError(t, os.WriteFile(f.m.workspaces, []byte("version: \"2.0\"\nworkspaces: {}\n"), 0o600))

	report, err := f.m.Execute(true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(f.m.workspaces), "workspaces_20260304_050607.backup"), report.WorkspacesBackup)
	assert.FileExists(t, report.WorkspacesBackup)
}

func TestExecute_FailureRollsBack(t *testing.T) {
	f := newFixture(t, legacyJSON)
	// A directory where the workspaces file should go makes the final write fail.
	require.NoError(t, os.MkdirAll(f.m.workspaces, 0o755))

	_, err := f.m.Execute(true)
	require.Error(t, err)
	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "execute", me.Op)
	assert.NoFileExists(t, f.command("code-review"))
	assert.NoFileExists(t, f.command("summarize"))
	assert.FileExists(t, filepath.Join(f.dir, "config", "agent_config.json"))
}

func TestRollback(t *testing.T) {
	f := newFixture(t, legacyJSON)
	_, err := f.m.Execute(true)
	require.NoError(t, err)

	// Simulate the legacy file being edited or lost after migrating.
	require.NoError(t, os.WriteFile(f.m.source, []byte("{}"), 0o644))

	_, err = f.m.Rollback(false, "")
	assert.ErrorIs(t, err, ErrNotConfirmed)

	report, err := f.m.Rollback(true, "")
	require.NoError(t, err)
	assert.Len(t, report.Removed, 2)
	assert.Equal(t, "removed", report.Workspaces)
	assert.NoFileExists(t, f.command("code-review"))
	assert.NoFileExists(t, f.m.workspaces)

	data, err := os.ReadFile(f.m.source)
	require.NoError(t, err)
	assert.JSONEq(t, legacyJSON, string(data))
}

func TestRollback_KeepsHandWrittenAndRestoresWorkspaces(t *testing.T) {
	f := newFixture(t, legacyJSON)
	original := "version: \"2.0\"\ncurrent_workspace: mine\nworkspaces: {}\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(f.m.workspaces), 0o755))
	require.NoError(t, os.WriteFile(f.m.workspaces, []byte(original), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Dir(f.command("summarize")), 0o755))
	require.NoError(t, os.WriteFile(f.command("summarize"), []byte("---\nid: summarize\n---\nmine\n"), 0o644))

	report, err := f.m.Execute(true)
	require.NoError(t, err)

	rb, err := f.m.Rollback(true, report.Backup)
	require.NoError(t, err)
	assert.Equal(t, []string{f.command("code-review")}, rb.Removed)
	assert.FileExists(t, f.command("summarize"))
	assert.Contains(t, rb.Workspaces, "restored from")

	data, err := os.ReadFile(f.m.workspaces)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestRollback_NoBackup(t *testing.T) {
	f := newFixture(t, legacyJSON)
	_, err := f.m.Rollback(true, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backup found")
}

func TestRollback_PicksNewestBackup(t *testing.T) {
	f := newFixture(t, legacyJSON)
	dir := filepath.Dir(f.m.source)
	older := filepath.Join(dir, "agent_config_20250101_000000.backup")
	newer := filepath.Join(dir, "agent_config_20260101_000000.backup")
	require.NoError(t, os.WriteFile(older, []byte(`{"old": {"name": "O", "system_prompt": "", "enabled": true, "context_folder": ""}}`), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte(legacyJSON), 0o644))

	got, err := f.m.newestBackup(f.m.source)
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := &Error{Op: "backup", Message: "failed", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "migrate backup: failed: disk full", err.Error())
	assert.Equal(t, "migrate plan: x", (&Error{Op: "plan", Message: "x"}).Error())
}
