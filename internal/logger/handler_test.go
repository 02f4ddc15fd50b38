package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyHandler_WritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With(slog.String("op", "scheduler.Tick")).
		WithGroup("token").
		Debug("refresh scheduled", slog.Int("ttl", 120))

	out := buf.String()
	assert.Contains(t, out, "refresh scheduled")
	assert.Contains(t, out, "op")
	assert.Contains(t, out, "token.ttl")
	assert.Contains(t, out, "120")
}

func TestPrettyHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
