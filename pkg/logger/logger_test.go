package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/pkg/environment"
	"github.com/dmitrymomot/imgcompare/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_Defaults(t *testing.T) {
	buf := &bytes.Buffer{}
	log, closeLog := logger.New(logger.WithOutput(buf))
	defer closeLog()

	log.Debug("hidden")
	log.Info("hello")
	entry := decode(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestWithEnvironment(t *testing.T) {
	t.Run("development is text at debug", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, _ := logger.New(logger.WithEnvironment(environment.Development, "svc"), logger.WithOutput(buf))
		log.Debug("msg")
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "service=svc")
		assert.Contains(t, buf.String(), "env=development")
	})

	t.Run("production is json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, _ := logger.New(logger.WithEnvironment(environment.Production, "svc"), logger.WithOutput(buf))
		log.Info("msg")
		entry := decode(t, buf)
		assert.Equal(t, "svc", entry["service"])
		assert.Equal(t, "production", entry["env"])
	})
}

func TestWithConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	log, _ := logger.New(
		logger.WithOutput(buf),
		logger.WithEnvironment(environment.Production, ""),
		logger.WithConfig(logger.Config{Level: "warn", Format: "TEXT"}),
	)
	log.Info("dropped")
	log.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestWithFormat_Invalid(t *testing.T) {
	assert.Panics(t, func() {
		logger.New(logger.WithFormat("xml"))
	})
}

func TestWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	buf := &bytes.Buffer{}
	log, closeLog := logger.New(logger.WithOutput(buf), logger.WithFile(path, 1, 1, 1))
	log.Info("to both")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestContextExtractors(t *testing.T) {
	type key struct{}
	buf := &bytes.Buffer{}
	log, _ := logger.New(
		logger.WithOutput(buf),
		logger.WithContextValue("trace", key{}),
		logger.WithContextExtractors(nil),
	)

	log.InfoContext(context.WithValue(context.Background(), key{}, "t-1"), "with")
	assert.Equal(t, "t-1", decode(t, buf)["trace"])

	buf.Reset()
	log.With(slog.String("a", "b")).InfoContext(context.Background(), "without")
	entry := decode(t, buf)
	assert.NotContains(t, entry, "trace")
	assert.Equal(t, "b", entry["a"])
}

func TestAttrs(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, "error", logger.Error(err).Key)
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))

	errs := logger.Errors(err, nil, err)
	require.Equal(t, slog.KindGroup, errs.Value.Kind())
	assert.Len(t, errs.Value.Group(), 2)
	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))

	for key, attr := range map[string]slog.Attr{
		"user_id":         logger.UserID("u"),
		"request_id":      logger.RequestID("r"),
		"customer_id":     logger.CustomerID("c"),
		"subscription_id": logger.SubscriptionID("s"),
		"notification_id": logger.NotificationID("n"),
		"plan":            logger.Plan("pro"),
		"event_type":      logger.EventType("e"),
	} {
		assert.Equal(t, key, attr.Key)
	}
	assert.True(t, logger.CustomerID("").Equal(slog.Attr{}))
	assert.Equal(t, "component", logger.Component("quota").Key)
	assert.Equal(t, int64(2), logger.RetryCount(2).Value.Int64())
}
