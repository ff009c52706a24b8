package database

import (
	"context"
	"database/sql"
)

// GetValue returns the score row for a thing, or ErrNotFound.
func (db *DB) GetValue(ctx context.Context, guildID, thing string) (*Value, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, guild_id, thing, current_value, created_at, updated_at
		FROM value WHERE guild_id = ? AND thing = ?`, guildID, thing,
	)
	v, err := scanValue(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetTopValues returns a guild's values by current_value DESC, then thing.
// limit <= 0 returns all of them.
func (db *DB) GetTopValues(ctx context.Context, guildID string, limit int) ([]Value, error) {
	query := `SELECT id, guild_id, thing, current_value, created_at, updated_at
		FROM value WHERE guild_id = ? ORDER BY current_value DESC, thing ASC`
	args := []any{guildID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []Value
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.ID, &v.GuildID, &v.Thing, &v.CurrentValue, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func scanValue(row *sql.Row) (*Value, error) {
	var v Value
	if err := row.Scan(&v.ID, &v.GuildID, &v.Thing, &v.CurrentValue, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
