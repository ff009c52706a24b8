package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "value and messages tables",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS value (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    guild_id TEXT NOT NULL,
    thing TEXT NOT NULL,
    current_value INTEGER DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(guild_id, thing)
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    guild_id TEXT NOT NULL,
    channel_id TEXT,
    author_id TEXT,
    content TEXT,
    time_sent TIMESTAMP,
    thing TEXT,
    effect INTEGER,
    value_id INTEGER,
    FOREIGN KEY (value_id) REFERENCES value (id)
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "message lookup indexes and run history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_messages_value ON messages(value_id);
CREATE INDEX IF NOT EXISTS idx_messages_guild_thing ON messages(guild_id, thing);

CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    guild_id TEXT NOT NULL,
    scanned INTEGER DEFAULT 0,
    messages INTEGER DEFAULT 0,
    things INTEGER DEFAULT 0,
    finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_guild ON runs(guild_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
