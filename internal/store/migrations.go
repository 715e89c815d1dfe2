package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create turns",
		SQL: `
			CREATE TABLE turns (
				id          TEXT PRIMARY KEY,
				entity_id   INTEGER NOT NULL,
				request_id  TEXT NOT NULL DEFAULT '',
				status      TEXT NOT NULL,
				action      TEXT,
				history     TEXT,
				error       TEXT NOT NULL DEFAULT '',
				duration_ms INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_turns_entity ON turns (entity_id, created_at);
		`,
	},
	{
		Version: 2,
		Name:    "record model and token usage",
		SQL: `
			ALTER TABLE turns ADD COLUMN model TEXT NOT NULL DEFAULT '';
			ALTER TABLE turns ADD COLUMN input_tokens INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE turns ADD COLUMN output_tokens INTEGER NOT NULL DEFAULT 0;
		`,
	},
}
