package karma

import (
	"cmp"
	"slices"
	"time"

	"github.com/TobiSchelling/incydecy/internal/source"
)

// Entry is a matched message annotated with the thing it affected.
type Entry struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   *string
	TimeSent  time.Time
	Thing     string
	Effect    Effect
}

// Score pairs a thing with its net delta.
type Score struct {
	Thing string `json:"thing"`
	Value int    `json:"value"`
}

// Tally accumulates the deltas and matched messages of one scan. It starts
// empty on every run; nothing is carried over from earlier runs.
type Tally struct {
	Deltas   map[string]int
	Positive []Entry
	Negative []Entry

	order   []string
	scanned int
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{Deltas: make(map[string]int)}
}

// Add classifies rec and records it if it matches.
func (t *Tally) Add(rec source.Record) bool {
	t.scanned++
	c, ok := Classify(rec.Content)
	if !ok {
		return false
	}

	if _, seen := t.Deltas[c.Thing]; !seen {
		t.order = append(t.order, c.Thing)
	}
	t.Deltas[c.Thing] += int(c.Effect)

	e := Entry{
		ID:        rec.ID,
		ChannelID: rec.ChannelID,
		AuthorID:  rec.AuthorID,
		Content:   rec.Content,
		TimeSent:  rec.TimeSent,
		Thing:     c.Thing,
		Effect:    c.Effect,
	}
	if c.Effect == Increment {
		t.Positive = append(t.Positive, e)
	} else {
		t.Negative = append(t.Negative, e)
	}
	return true
}

// Things returns every tallied thing in first-seen order.
func (t *Tally) Things() []string {
	return slices.Clone(t.order)
}

// Entries returns all positive entries followed by all negative entries.
func (t *Tally) Entries() []Entry {
	out := make([]Entry, 0, len(t.Positive)+len(t.Negative))
	out = append(out, t.Positive...)
	return append(out, t.Negative...)
}

// Scanned is the number of records offered to Add.
func (t *Tally) Scanned() int { return t.scanned }

// Top returns the n highest deltas, ties broken by thing name. n <= 0
// returns all of them.
func (t *Tally) Top(n int) []Score {
	scores := make([]Score, 0, len(t.Deltas))
	for thing, v := range t.Deltas {
		scores = append(scores, Score{Thing: thing, Value: v})
	}
	slices.SortFunc(scores, func(a, b Score) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Thing, b.Thing)
	})
	if n > 0 && len(scores) > n {
		scores = scores[:n]
	}
	return scores
}
