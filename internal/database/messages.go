package database

import (
	"context"
	"database/sql"
)

// GetMessagesForThing returns a thing's linked messages, newest first.
// limit <= 0 returns all of them.
func (db *DB) GetMessagesForThing(ctx context.Context, guildID, thing string, limit int) ([]Message, error) {
	query := `SELECT m.id, m.guild_id, m.channel_id, m.author_id, m.content, m.time_sent,
		m.thing, m.effect, m.value_id
		FROM messages m JOIN value v ON v.id = m.value_id
		WHERE v.guild_id = ? AND v.thing = ?
		ORDER BY m.time_sent DESC, m.id DESC`
	args := []any{guildID, thing}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetAllMessages returns a guild's message log ordered by id.
func (db *DB) GetAllMessages(ctx context.Context, guildID string) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, guild_id, channel_id, author_id, content, time_sent, thing, effect, value_id
		FROM messages WHERE guild_id = ? ORDER BY id`, guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// CountOrphanMessages counts messages whose value_id does not point at a
// value row with the same guild and thing.
func (db *DB) CountOrphanMessages(ctx context.Context, guildID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages m
		LEFT JOIN value v ON v.id = m.value_id AND v.guild_id = m.guild_id AND v.thing = m.thing
		WHERE m.guild_id = ? AND v.id IS NULL`, guildID,
	).Scan(&n)
	return n, err
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.GuildID, &m.ChannelID, &m.AuthorID, &m.Content,
			&m.TimeSent, &m.Thing, &m.Effect, &m.ValueID); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
