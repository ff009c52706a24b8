// Package source reads message records from a chat archive in fixed-size
// pages.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Record is one archived chat message. Content is nil when the archive
// stores NULL. TimeSent is zero when the archive has no usable timestamp.
type Record struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   *string
	TimeSent  time.Time
}

// Pager reads one page of records starting at offset.
type Pager interface {
	Page(ctx context.Context, offset, limit int) ([]Record, error)
}

// Options selects and locates the archive.
type Options struct {
	Driver  string // "sqlite" or "mysql"
	Path    string // sqlite file
	DSN     string // mysql DSN
	Table   string
	OrderBy string
}

// Store is a read-only archive reached through database/sql.
type Store struct {
	conn    *sql.DB
	table   string
	orderBy string
}

// uriPath percent-encodes the characters that would end the path part of
// a SQLite file: URI.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// timeLayouts are tried in order for textual time_sent values.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Open connects to the archive described by opts.
func Open(opts Options) (*Store, error) {
	table := opts.Table
	if table == "" {
		table = "messages"
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid source table %q", table)
	}

	var (
		driver, dsn string
		orderBy     = opts.OrderBy
	)
	switch opts.Driver {
	case "", "sqlite":
		driver = "sqlite"
		dsn = "file:" + uriPath.Replace(opts.Path) + "?mode=ro"
		if orderBy == "" {
			orderBy = "rowid"
		}
	case "mysql":
		cfg, err := mysql.ParseDSN(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		driver = "mysql"
		dsn = cfg.FormatDSN()
		if orderBy == "" {
			orderBy = "id"
		}
	default:
		return nil, fmt.Errorf("unsupported source driver %q", opts.Driver)
	}
	if !identifier.MatchString(orderBy) {
		return nil, fmt.Errorf("invalid source order column %q", orderBy)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to source: %w", err)
	}

	return &Store{conn: conn, table: table, orderBy: orderBy}, nil
}

// Close closes the archive connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Count returns the number of rows in the archive table.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting source messages: %w", err)
	}
	return n, nil
}

// Page implements Pager.
func (s *Store) Page(ctx context.Context, offset, limit int) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, channel_id, author_id, content, time_sent
		FROM %s ORDER BY %s LIMIT ? OFFSET ?`, s.table, s.orderBy),
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			id, channelID, authorID, timeSent any
			content                           sql.NullString
		)
		if err := rows.Scan(&id, &channelID, &authorID, &content, &timeSent); err != nil {
			return nil, err
		}
		r := Record{
			ID:        asString(id),
			ChannelID: asString(channelID),
			AuthorID:  asString(authorID),
			TimeSent:  asTime(timeSent),
		}
		if content.Valid {
			c := content.String
			r.Content = &c
		}
		if r.TimeSent.IsZero() && timeSent != nil {
			log.Debug().Str("id", r.ID).Interface("time_sent", timeSent).Msg("unparseable time_sent")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// asTime converts a driver value to a time. Integers are Unix seconds.
func asTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case int64:
		return time.Unix(x, 0).UTC()
	case []byte:
		return parseTime(string(x))
	case string:
		return parseTime(x)
	default:
		return time.Time{}
	}
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
