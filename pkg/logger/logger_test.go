package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevels(t *testing.T) {
	cases := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tc := range cases {
		New(Config{Level: tc.level})
		assert.Equal(t, tc.want, zerolog.GlobalLevel(), "level %q", tc.level)
	}
}

func TestNewWritesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Out: &buf})

	logger.Info().Str("component", "test").Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"component":"test"`)
	assert.Contains(t, out, "hello")
}

func TestNewPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, Out: &buf})

	logger.Info().Msg("console line")

	out := buf.String()
	assert.Contains(t, out, "console line")
	assert.NotContains(t, out, `"message"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "error", Out: &buf})

	logger.Info().Msg("filtered")
	assert.NotContains(t, buf.String(), "filtered")

	logger.Error().Msg("reported")
	assert.Contains(t, buf.String(), "reported")
}

func TestSetGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Out: &buf})
	SetGlobalLogger(logger)

	logger.Info().Msg("global logger test")
	assert.Contains(t, buf.String(), "global logger test")
}
