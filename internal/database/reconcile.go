package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/incydecy/internal/karma"
)

// TimeLayout is the canonical textual form of stored timestamps.
const TimeLayout = time.RFC3339Nano

// FormatTime renders t in TimeLayout (UTC). The zero time renders as NULL.
func FormatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(TimeLayout)
	return &s
}

// Reconcile writes one scan's tally for guildID in a single transaction.
//
// Each thing's current_value is overwritten with its delta from this scan,
// not added to the stored value, so the tally must cover the full message
// history. Every matched message is then inserted or replaced by id and
// linked to the value row resolved for its thing. On any failure the
// transaction is rolled back and a *PersistenceError is returned.
func (db *DB) Reconcile(ctx context.Context, guildID string, tally *karma.Tally) (*ReconcileResult, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, &PersistenceError{Stage: "begin", Err: err}
	}
	// No-op after a successful Commit.
	defer tx.Rollback()

	now := time.Now().UTC().Format(TimeLayout)
	things := tally.Things()

	valueIDs := make(map[string]int64, len(things))
	for _, thing := range things {
		id, err := upsertValue(ctx, tx, guildID, thing, tally.Deltas[thing], now)
		if err != nil {
			return nil, &PersistenceError{Stage: "value", Thing: thing, Err: err}
		}
		valueIDs[thing] = id
	}

	entries := tally.Entries()
	for _, e := range entries {
		valueID, ok := valueIDs[e.Thing]
		if !ok {
			return nil, &PersistenceError{Stage: "message", Thing: e.Thing, MessageID: e.ID,
				Err: fmt.Errorf("no value row for thing: %w", ErrNotFound)}
		}
		if err := replaceMessage(ctx, tx, guildID, e, valueID); err != nil {
			return nil, &PersistenceError{Stage: "message", Thing: e.Thing, MessageID: e.ID, Err: err}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (guild_id, scanned, messages, things, finished_at) VALUES (?, ?, ?, ?, ?)`,
		guildID, tally.Scanned(), len(entries), len(things), now,
	); err != nil {
		return nil, &PersistenceError{Stage: "run", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &PersistenceError{Stage: "commit", Err: err}
	}

	log.Info().
		Str("guild", guildID).
		Int("things", len(things)).
		Int("messages", len(entries)).
		Msg("reconciled")

	return &ReconcileResult{Messages: len(entries), Things: len(things)}, nil
}

// upsertValue overwrites current_value for (guild, thing) and returns the
// row id.
func upsertValue(ctx context.Context, tx *sql.Tx, guildID, thing string, delta int, now string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO value (guild_id, thing, current_value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, thing) DO UPDATE SET
			current_value = excluded.current_value,
			updated_at = excluded.updated_at`,
		guildID, thing, delta, now, now,
	); err != nil {
		return 0, err
	}

	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM value WHERE guild_id = ? AND thing = ?", guildID, thing,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("value row missing after upsert: %w", ErrNotFound)
	}
	return id, err
}

func replaceMessage(ctx context.Context, tx *sql.Tx, guildID string, e karma.Entry, valueID int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages
		(id, guild_id, channel_id, author_id, content, time_sent, thing, effect, value_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, guildID, e.ChannelID, e.AuthorID, e.Content, FormatTime(e.TimeSent),
		e.Thing, int(e.Effect), valueID,
	)
	return err
}
