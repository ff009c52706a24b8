package database

import (
	"context"
	"database/sql"
)

// GetStats returns aggregate statistics for a guild.
func (db *DB) GetStats(ctx context.Context, guildID string) (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM value WHERE guild_id = ?", &s.Things},
		{"SELECT COUNT(*) FROM messages WHERE guild_id = ?", &s.Messages},
		{"SELECT COUNT(*) FROM messages WHERE guild_id = ? AND effect > 0", &s.PositiveMessages},
		{"SELECT COUNT(*) FROM messages WHERE guild_id = ? AND effect < 0", &s.NegativeMessages},
		{"SELECT COUNT(*) FROM runs WHERE guild_id = ?", &s.Runs},
	}

	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.sql, guildID).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	last, err := db.GetLastRun(ctx, guildID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	s.LastRun = last

	return s, nil
}

// GetLastRun returns the most recent committed run for a guild, or
// ErrNotFound.
func (db *DB) GetLastRun(ctx context.Context, guildID string) (*Run, error) {
	var r Run
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, guild_id, scanned, messages, things, finished_at
		FROM runs WHERE guild_id = ? ORDER BY id DESC LIMIT 1`, guildID,
	).Scan(&r.ID, &r.GuildID, &r.Scanned, &r.Messages, &r.Things, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
