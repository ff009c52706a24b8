// Package report renders karma leaderboards for the terminal, Markdown,
// HTML, and JSON consumers.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/incydecy/internal/database"
	"github.com/TobiSchelling/incydecy/internal/karma"
)

// Formats lists the accepted values of the --format flag.
var Formats = []string{"table", "markdown", "html", "json"}

var md = goldmark.New()

// Leaderboard is a ranked list of scores for one guild.
type Leaderboard struct {
	GuildID string        `json:"guild_id"`
	Scores  []karma.Score `json:"scores"`
}

// FromValues builds a leaderboard from destination rows, which are
// expected to be in rank order already.
func FromValues(guildID string, values []database.Value) *Leaderboard {
	scores := make([]karma.Score, len(values))
	for i, v := range values {
		scores[i] = karma.Score{Thing: v.Thing, Value: v.CurrentValue}
	}
	return &Leaderboard{GuildID: guildID, Scores: scores}
}

// FromTally builds a leaderboard of the n highest deltas of a scan.
func FromTally(guildID string, tally *karma.Tally, n int) *Leaderboard {
	return &Leaderboard{GuildID: guildID, Scores: tally.Top(n)}
}

// markdownEscaper backslash-escapes inline Markdown syntax. Pipes are
// escaped by the table renderer itself.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"<", `\<`,
	">", `\>`,
	"[", `\[`,
	"]", `\]`,
)

func (l *Leaderboard) writer(thing func(string) string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Thing", "Karma"})
	for i, s := range l.Scores {
		t.AppendRow(table.Row{i + 1, thing(s.Thing), s.Value})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return t
}

func verbatim(s string) string { return s }

// preamble is the Markdown heading shared by the Markdown and HTML forms.
func (l *Leaderboard) preamble() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "## Karma leaderboard\n\nGuild `%s`\n\n", l.GuildID)
	if len(l.Scores) == 0 {
		buf.WriteString("_No karma recorded yet._\n")
	}
	return buf.String()
}

// Table renders the leaderboard as a box-drawn terminal table.
func (l *Leaderboard) Table() string {
	return l.writer(verbatim).Render()
}

// Markdown renders the leaderboard as a titled Markdown table. Thing names
// are escaped so they render literally.
func (l *Leaderboard) Markdown() string {
	out := l.preamble()
	if len(l.Scores) == 0 {
		return out
	}
	return out + l.writer(markdownEscaper.Replace).RenderMarkdown() + "\n"
}

// HTML renders the leaderboard as an HTML fragment. The heading goes
// through the Markdown renderer; the table is emitted directly with every
// cell HTML-escaped.
func (l *Leaderboard) HTML() (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(l.preamble()), &buf); err != nil {
		return "", fmt.Errorf("rendering leaderboard: %w", err)
	}
	if len(l.Scores) > 0 {
		buf.WriteString(l.writer(verbatim).RenderHTML())
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

// Write renders the leaderboard to w in the named format.
func (l *Leaderboard) Write(w io.Writer, format string) error {
	switch format {
	case "table", "":
		_, err := fmt.Fprintln(w, l.Table())
		return err
	case "markdown", "md":
		_, err := io.WriteString(w, l.Markdown())
		return err
	case "html":
		out, err := l.HTML()
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	default:
		return fmt.Errorf("invalid format: %s (valid values: table, markdown, html, json)", format)
	}
}
