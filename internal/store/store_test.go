package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentclick/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(agent string, at time.Time) Run {
	return Run{
		AgentID:   agent,
		AgentKind: "command",
		Workspace: "default",
		State:     "completed",
		Status:    "success",
		InputType: "text",
		Input:     "review main.go",
		Output:    "looks good",
		Attempts:  1,
		Duration:  1500 * time.Millisecond,
		StartedAt: at,
	}
}

// --- Schema ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
	assert.Equal(t, MemoryPath, db.Path())
}

func TestOpen_FileReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := Open(path, nil)
	require.NoError(t, err)
	_, err = NewHistoryStore(db, 0).Record(sampleRun("code-review", time.Now()))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, nil)
	require.NoError(t, err)
	defer db.Close()
	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	n, err := NewHistoryStore(db, 0).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate())
	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	db := testDB(t)
	_, err := db.sql.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations)+1))
	require.NoError(t, err)
	assert.ErrorContains(t, db.migrate(), "newer than this build")
}

func TestMigrations_Numbered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, m.Name)
	}
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"runs", "runs_fts"} {
		var name string
		err := db.sql.QueryRow("SELECT name FROM sqlite_master WHERE name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

// --- History ---

func TestHistory_RecordAndGet(t *testing.T) {
	h := NewHistoryStore(testDB(t), 0)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run, err := h.Record(sampleRun("code-review", at))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	got, err := h.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "code-review", got.AgentID)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, at.Equal(got.StartedAt))

	_, err = h.Get("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestHistory_ListNewestFirst(t *testing.T) {
	h := NewHistoryStore(testDB(t), 0)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, agent := range []string{"a", "b", "a"} {
		_, err := h.Record(sampleRun(agent, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	runs, err := h.List(10, "")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"a", "b", "a"}, []string{runs[0].AgentID, runs[1].AgentID, runs[2].AgentID})
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

	only, err := h.List(10, "b")
	require.NoError(t, err)
	require.Len(t, only, 1)

	limited, err := h.List(1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHistory_CapEnforcedOnInsert(t *testing.T) {
	h := NewHistoryStore(testDB(t), 3)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := h.Record(sampleRun(fmt.Sprintf("agent-%d", i), base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	n, err := h.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	runs, err := h.List(0, "")
	require.NoError(t, err)
	assert.Equal(t, "agent-4", runs[0].AgentID)
	assert.Equal(t, "agent-2", runs[2].AgentID)
}

func TestHistory_Prune(t *testing.T) {
	h := NewHistoryStore(testDB(t), 0)
	base := time.Now()
	for i := 0; i < 4; i++ {
		_, err := h.Record(sampleRun("a", base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	removed, err := h.Prune(1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	removed, err = h.Prune(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestHistory_TruncatesInput(t *testing.T) {
	h := NewHistoryStore(testDB(t), 0)
	r := sampleRun("a", time.Now())
	r.Input = strings.Repeat("x", maxInputPreview+50)
	run, err := h.Record(r)
	require.NoError(t, err)
	got, err := h.Get(run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Input, maxInputPreview)
}

func TestHistory_Search(t *testing.T) {
	h := NewHistoryStore(testDB(t), 0)
	r1 := sampleRun("a", time.Now())
	r1.Output = "found a goroutine leak in the watcher"
	r2 := sampleRun("b", time.Now())
	r2.Output = "all tests pass"
	_, err := h.Record(r1)
	require.NoError(t, err)
	_, err = h.Record(r2)
	require.NoError(t, err)

	results, err := h.Search("goroutine", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].AgentID)

	// Pruned rows leave the index too.
	_, err = h.Prune(0)
	require.NoError(t, err)
	results, err = h.Search("goroutine", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExport(t *testing.T) {
	runs := []Run{sampleRun("code-review", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))}
	runs[0].ID = "r1"

	var text bytes.Buffer
	require.NoError(t, Export(&text, runs, "text"))
	assert.Contains(t, text.String(), "code-review completed (success, 1.5s)")
	assert.Contains(t, text.String(), "Output:\nlooks good")

	var js bytes.Buffer
	require.NoError(t, Export(&js, runs, "json"))
	var decoded []Run
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "r1", decoded[0].ID)

	var empty bytes.Buffer
	require.NoError(t, Export(&empty, nil, "json"))
	assert.Equal(t, "[]\n", empty.String())

	assert.Error(t, Export(&bytes.Buffer{}, runs, "xml"))
}
