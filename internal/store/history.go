package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRuns caps the history after each insert.
const DefaultMaxRuns = 1000

// maxInputPreview bounds the stored input text.
const maxInputPreview = 2000

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded pipeline run.
type Run struct {
	ID        string        `json:"id"`
	AgentID   string        `json:"agentId"`
	AgentKind string        `json:"agentKind,omitempty"`
	Workspace string        `json:"workspaceId,omitempty"`
	State     string        `json:"state"`            // completed | failed | aborted
	Status    string        `json:"status,omitempty"` // success | partial | error
	InputType string        `json:"inputType,omitempty"`
	Input     string        `json:"input,omitempty"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"startedAt"`
}

// ErrRunNotFound is returned by Get for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// HistoryStore records pipeline runs.
type HistoryStore struct {
	db      *DB
	maxRuns int
}

// NewHistoryStore creates a history store. maxRuns <= 0 uses DefaultMaxRuns.
func NewHistoryStore(db *DB, maxRuns int) *HistoryStore {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	return &HistoryStore{db: db, maxRuns: maxRuns}
}

const runColumns = `id, agent_id, agent_kind, workspace_id, state, status, input_type,
	input, output, error, attempts, duration_ms, started_at`

// Record inserts run and trims the table to the newest maxRuns rows.
func (h *HistoryStore) Record(run Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if len(run.Input) > maxInputPreview {
		run.Input = run.Input[:maxInputPreview]
	}

	_, err := h.db.sql.Exec(
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.AgentID, run.AgentKind, run.Workspace, run.State, run.Status, run.InputType,
		run.Input, run.Output, run.Error, run.Attempts, run.Duration.Milliseconds(),
		run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}

	if _, err := h.Prune(h.maxRuns); err != nil {
		h.db.log.Warn().Err(err).Msg("trimming history failed")
	}
	return &run, nil
}

// Get returns one run.
func (h *HistoryStore) Get(id string) (*Run, error) {
	row := h.db.sql.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// List returns up to limit runs, newest first. agentID filters when set.
func (h *HistoryStore) List(limit int, agentID string) ([]Run, error) {
	if limit <= 0 {
		limit = h.maxRuns
	}
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Search runs a full-text query over inputs and outputs, best match first.
func (h *HistoryStore) Search(query string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.sql.Query(
		`SELECT r.id, r.agent_id, r.agent_kind, r.workspace_id, r.state, r.status, r.input_type,
			r.input, r.output, r.error, r.attempts, r.duration_ms, r.started_at
		 FROM runs_fts f JOIN runs r ON r.rowid = f.rowid
		 WHERE runs_fts MATCH ?
		 ORDER BY f.rank
		 LIMIT ?`, query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Count returns the number of stored runs.
func (h *HistoryStore) Count() (int, error) {
	var n int
	if err := h.db.sql.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return n, nil
}

// Prune keeps the newest keep runs and returns how many were removed.
func (h *HistoryStore) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := h.db.sql.Exec(
		`DELETE FROM runs WHERE rowid NOT IN (
			SELECT rowid FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var durMs int64
	var started string
	if err := s.Scan(&r.ID, &r.AgentID, &r.AgentKind, &r.Workspace, &r.State, &r.Status, &r.InputType,
		&r.Input, &r.Output, &r.Error, &r.Attempts, &durMs, &started); err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durMs) * time.Millisecond
	r.StartedAt, _ = time.Parse(timeLayout, started)
	return &r, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Export writes runs as "text" or "json".
func Export(w io.Writer, runs []Run, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		for i, r := range runs {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "[%s] %s %s (%s", r.StartedAt.Local().Format(time.DateTime), r.AgentID, r.State, r.Status)
			if r.Duration > 0 {
				fmt.Fprintf(w, ", %s", r.Duration.Round(time.Millisecond))
			}
			fmt.Fprintln(w, ")")
			if r.Input != "" {
				fmt.Fprintf(w, "Input: %s\n", r.Input)
			}
			if r.Output != "" {
				fmt.Fprintf(w, "Output:\n%s\n", r.Output)
			}
			if r.Error != "" {
				fmt.Fprintf(w, "Error: %s\n", r.Error)
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if runs == nil {
			runs = []Run{}
		}
		return enc.Encode(runs)
	default:
		return fmt.Errorf("unknown export format %q (want text or json)", format)
	}
}
