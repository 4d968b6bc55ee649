package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriterLevels(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: " WARN ", want: zerolog.WarnLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "nonsense", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		l := SetupWriter(&bytes.Buffer{}, tt.in, false)
		assert.Equal(t, tt.want, l.GetLevel(), "level %q", tt.in)
	}
}

func TestSetupWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWriter(&buf, "info", false)

	l.Debug().Msg("hidden")
	l.Info().Uint("monitor_id", 7).Msg("checked")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "checked", entry["message"])
	assert.Equal(t, float64(7), entry["monitor_id"])
	assert.Equal(t, "info", entry["level"])
}
