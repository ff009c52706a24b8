// Package karma recognizes the thing++ / thing-- notation and tallies the
// effects of a scan.
package karma

import (
	"strings"
	"unicode"
)

// Effect is the signed contribution of one matching message.
type Effect int

const (
	Decrement Effect = -1
	Increment Effect = 1
)

// Classification is the thing a message names and the effect it applies.
type Classification struct {
	Thing  string
	Effect Effect
}

// Classify matches trimmed content against `^\S+\+\+$` and then `^\S+--$`.
// The thing is the trimmed content without its two-character suffix; it is
// never empty and never contains whitespace.
func Classify(content *string) (Classification, bool) {
	if content == nil {
		return Classification{}, false
	}
	trimmed := strings.TrimFunc(*content, isSpace)

	var effect Effect
	switch {
	case strings.HasSuffix(trimmed, "++"):
		effect = Increment
	case strings.HasSuffix(trimmed, "--"):
		effect = Decrement
	default:
		return Classification{}, false
	}

	thing := trimmed[:len(trimmed)-2]
	if thing == "" || strings.IndexFunc(thing, isSpace) >= 0 {
		return Classification{}, false
	}
	return Classification{Thing: thing, Effect: effect}, true
}

// isSpace is unicode.IsSpace plus the information separators U+001C..U+001F.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
