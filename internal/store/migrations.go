package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order; Version must equal the slice index + 1.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create runs",
		SQL: `
			CREATE TABLE runs (
				id           TEXT PRIMARY KEY,
				agent_id     TEXT NOT NULL,
				agent_kind   TEXT NOT NULL DEFAULT '',
				workspace_id TEXT NOT NULL DEFAULT '',
				state        TEXT NOT NULL,
				status       TEXT NOT NULL DEFAULT '',
				input_type   TEXT NOT NULL DEFAULT '',
				input        TEXT NOT NULL DEFAULT '',
				output       TEXT NOT NULL DEFAULT '',
				error        TEXT NOT NULL DEFAULT '',
				attempts     INTEGER NOT NULL DEFAULT 0,
				duration_ms  INTEGER NOT NULL DEFAULT 0,
				started_at   TEXT NOT NULL
			);

			CREATE INDEX idx_runs_started ON runs (started_at);
			CREATE INDEX idx_runs_agent ON runs (agent_id, started_at);
		`,
	},
	{
		Version: 2,
		Name:    "create run search with FTS5",
		SQL: `
			CREATE VIRTUAL TABLE runs_fts USING fts5(
				input,
				output,
				content='runs',
				content_rowid='rowid'
			);

			CREATE TRIGGER runs_ai AFTER INSERT ON runs BEGIN
				INSERT INTO runs_fts(rowid, input, output)
				VALUES (new.rowid, new.input, new.output);
			END;

			CREATE TRIGGER runs_ad AFTER DELETE ON runs BEGIN
				INSERT INTO runs_fts(runs_fts, rowid, input, output)
				VALUES ('delete', old.rowid, old.input, old.output);
			END;
		`,
	},
}
