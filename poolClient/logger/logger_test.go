package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoggerVariants(t *testing.T) {
	t.Run("json format logs expected fields", func(t *testing.T) {
		var buf bytes.Buffer
		log := newWithWriter(&buf, int(zerolog.InfoLevel), "json", false)

		log.Info().Str("key", "value").Msg("json_test")

		require.Contains(t, buf.String(), `"message":"json_test"`)
		require.Contains(t, buf.String(), `"key":"value"`)
	})

	t.Run("console format logs human readable output", func(t *testing.T) {
		var buf bytes.Buffer
		log := newWithWriter(&buf, int(zerolog.DebugLevel), "console", false)

		log.Debug().Str("env", "test").Msg("console_log")

		require.Contains(t, buf.String(), "console_log")
		require.Contains(t, buf.String(), "env=test")
	})

	t.Run("level filters lower events", func(t *testing.T) {
		var buf bytes.Buffer
		log := newWithWriter(&buf, int(zerolog.WarnLevel), "json", false)

		log.Info().Msg("hidden")
		log.Warn().Msg("shown")

		require.NotContains(t, buf.String(), "hidden")
		require.Contains(t, buf.String(), "shown")
	})

	t.Run("sampler reduces output frequency", func(t *testing.T) {
		var buf bytes.Buffer
		log := newWithWriter(&buf, int(zerolog.InfoLevel), "json", true)

		for i := 0; i < 20; i++ {
			log.Info().Int("count", i).Msg("sampled")
		}

		lines := strings.Count(strings.TrimSpace(buf.String()), "\n") + 1
		require.Equal(t, 4, lines)
	})
}
