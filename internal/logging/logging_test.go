package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	tests := []struct {
		level   string
		verbose bool
		want    zerolog.Level
	}{
		{"debug", false, zerolog.DebugLevel},
		{"WARN", false, zerolog.WarnLevel},
		{"", false, zerolog.InfoLevel},
		{"loud", false, zerolog.InfoLevel},
		{"error", true, zerolog.DebugLevel},
	}
	for _, tt := range tests {
		SetupWriter(&bytes.Buffer{}, tt.level, "console", tt.verbose)
		assert.Equal(t, tt.want, zerolog.GlobalLevel(), "level %q verbose=%v", tt.level, tt.verbose)
	}
}

func TestSetupJSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json", false)
	log.Info().Str("thing", "apples").Msg("tallied")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "apples", line["thing"])
	assert.Equal(t, "tallied", line["message"])
}
