package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

type ctxKey struct{ name string }

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))

		log.Info("session created", logger.SessionID("s1"))

		entry := decodeEntry(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "session created", entry["msg"])
		assert.Equal(t, "s1", entry["session_id"])
	})

	t.Run("last format option wins", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithJSONFormatter(), logger.WithTextFormatter())

		log.Warn("sweep pass failed")

		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "time="))
		assert.Contains(t, out, `msg="sweep pass failed"`)
	})

	t.Run("nil output keeps default", func(t *testing.T) {
		assert.NotPanics(t, func() {
			logger.New(logger.WithOutput(nil)).Debug("dropped")
		})
	})

	t.Run("unknown format panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("xml")))
		})
	})
}

func TestWithContextValue(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	key := ctxKey{"tenant"}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithContextValue("tenant_id", key),
		logger.WithContextValue("", ctxKey{"ignored"}),
	)

	t.Run("value present", func(t *testing.T) {
		buf.Reset()
		log.InfoContext(context.WithValue(context.Background(), key, "acme"), "validated")

		assert.Equal(t, "acme", decodeEntry(t, buf)["tenant_id"])
	})

	t.Run("value absent", func(t *testing.T) {
		buf.Reset()
		log.InfoContext(context.Background(), "validated")

		assert.NotContains(t, decodeEntry(t, buf), "tenant_id")
	})
}

func TestExtractorsSurviveWith(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	key := ctxKey{"request"}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
			id, ok := ctx.Value(key).(string)
			if !ok {
				return slog.Attr{}, false
			}
			return logger.RequestID(id), true
		}),
	)

	child := log.With(logger.Component("session_sweeper"))
	child.InfoContext(context.WithValue(context.Background(), key, "req-1"), "pass finished")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "session_sweeper", entry["component"])
}

func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))

	slog.Info("default")
	assert.Equal(t, "default", decodeEntry(t, buf)["msg"])
}
