package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocmark/notifier/pkg/logger"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Run("defaults to JSON at info level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		require.NotNil(t, log)

		log.Debug("hidden")
		assert.Empty(t, buf.String())

		log.Info("hello")
		entry := decodeEntry(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithFormat(logger.FormatText),
		)
		log.Info("hello")
		out := buf.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "hello")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("xml")))
		})
	})

	t.Run("custom level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithLevel(slog.LevelDebug),
		)
		log.Debug("visible")
		entry := decodeEntry(t, buf)
		assert.Equal(t, "DEBUG", entry["level"])
	})

	t.Run("includes static attributes", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithAttr(slog.String("service", "notifier")),
		)
		log.Info("msg")
		entry := decodeEntry(t, buf)
		assert.Equal(t, "notifier", entry["service"])
	})

	t.Run("nil output is ignored", func(t *testing.T) {
		log := logger.New(logger.WithOutput(nil))
		require.NotNil(t, log)
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Run("production env selects JSON info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithEnvironment("production", "notifier"),
			logger.WithOutput(buf),
		)

		log.Debug("hidden")
		assert.Empty(t, buf.String())

		log.Info("up")
		entry := decodeEntry(t, buf)
		assert.Equal(t, "notifier", entry["service"])
		assert.Equal(t, "production", entry["env"])
	})

	t.Run("development env selects text debug", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithEnvironment("development", "notifier"),
			logger.WithOutput(buf),
		)

		log.Debug("verbose")
		out := buf.String()
		assert.Contains(t, out, "verbose")
		assert.Contains(t, out, "env=development")
	})
}

func TestAttrs(t *testing.T) {
	t.Run("error attr", func(t *testing.T) {
		attr := logger.Error(errors.New("boom"))
		assert.Equal(t, "error", attr.Key)
	})

	t.Run("nil error yields empty attr", func(t *testing.T) {
		assert.Equal(t, slog.Attr{}, logger.Error(nil))
	})

	t.Run("message id attr", func(t *testing.T) {
		attr := logger.MessageID("abc@mail.test")
		assert.Equal(t, "message_id", attr.Key)
		assert.Equal(t, "abc@mail.test", attr.Value.String())
	})

	t.Run("empty recipient yields empty attr", func(t *testing.T) {
		assert.Equal(t, slog.Attr{}, logger.Recipient(""))
	})
}
