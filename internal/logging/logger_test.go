package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONCarriesTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "production", "info")

	l.Error(TagSession, "sign in failed", Err(errors.New("bad password")), "email", "a@x.edu")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Session", line["tag"])
	assert.Equal(t, "sign in failed", line["msg"])
	assert.Equal(t, "bad password", line["error"])
	assert.Equal(t, "a@x.edu", line["email"])
	assert.Equal(t, "ERROR", line["level"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "production", "warn")

	l.Debug(TagUsers, "hidden")
	l.Info(TagUsers, "hidden")
	assert.Zero(t, buf.Len())

	l.Warn(TagUsers, "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_TextInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "development", "debug")

	l.Debug(TagForm, "validating", "field", "email")
	assert.Contains(t, buf.String(), "tag=Form")
	assert.Contains(t, buf.String(), "field=email")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNop(t *testing.T) {
	s := Nop()
	assert.NotPanics(t, func() {
		s.Error(TagGateway, "ignored", Err(nil))
	})
}
