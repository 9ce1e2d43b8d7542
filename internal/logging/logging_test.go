package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", FormatText)

	log.Info("inf", "a", 1)
	log.Warn("wrn", "b", 2)
	log.Error("err", "c", 3)

	out := buf.String()
	assert.NotContains(t, out, "msg=inf")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=wrn")
	assert.Contains(t, out, "b=2")
	assert.Contains(t, out, "level=ERROR")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", FormatJSON)

	log.Debug("hello", slog.String("op", "test"), Err(errors.New("boom")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "DEBUG", line["level"])
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "test", line["op"])
	assert.Equal(t, "boom", line["error"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatText, FormatFor("development"))
	assert.Equal(t, FormatJSON, FormatFor("production"))
	assert.Equal(t, FormatJSON, FormatFor("staging"))
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "info", FormatText)
	fallback := slog.New(slog.DiscardHandler)

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	ctx := WithContext(context.Background(), base.With("request_id", "abc"))
	FromContext(ctx, fallback).Info("scoped")

	assert.True(t, strings.Contains(buf.String(), "request_id=abc"))
}
