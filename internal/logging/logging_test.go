package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"shelfy/internal/vitesy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "warning", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "bogus", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "json", Level: slog.LevelInfo, Output: &buf})

	logger.Debug("hidden")
	logger.Info("visible", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "time")
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "text", Level: slog.LevelDebug, Output: &buf})

	logger.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "timestamp=")
}

func TestNewLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "json", Level: slog.LevelInfo, Output: &buf})

	logger.Info("tokens",
		"access_token", "eyJhbGciOi",
		"Password", "hunter2",
		"device_id", "AA:BB")

	out := buf.String()
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `"access_token":"[REDACTED]"`)
	assert.Contains(t, out, `"device_id":"AA:BB"`)
}

type stubAPI struct {
	err error
}

func (s *stubAPI) GetDevices(ctx context.Context) ([]vitesy.Device, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []vitesy.Device{{ID: "AA:BB"}}, nil
}

func (s *stubAPI) GetMeasurements(ctx context.Context, deviceID string) ([]vitesy.Measurement, error) {
	return nil, s.err
}

func (s *stubAPI) GetMaintenance(ctx context.Context, deviceID string) (vitesy.Maintenance, error) {
	return nil, s.err
}

func (s *stubAPI) GetPrograms(ctx context.Context, deviceType, firmwareVersion string) ([]vitesy.Program, error) {
	return nil, s.err
}

func (s *stubAPI) ResetFilter(ctx context.Context, deviceID string) (*vitesy.ResetResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &vitesy.ResetResult{StatusCode: 200, Text: "OK"}, nil
}

func (s *stubAPI) ResetFridge(ctx context.Context, deviceID string) (*vitesy.ResetResult, error) {
	return s.ResetFilter(ctx, deviceID)
}

func (s *stubAPI) GetOrCreateAPIKey(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "super-secret-key", nil
}

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return NewLogger(LoggerConfig{Format: "json", Level: slog.LevelDebug, Output: buf})
}

func TestClientLogger_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	api := NewClientLogger(&stubAPI{}, newBufferLogger(&buf))
	ctx := context.Background()

	devices, err := api.GetDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 1)

	result, err := api.ResetFilter(ctx, "AA:BB")
	require.NoError(t, err)
	assert.Equal(t, "OK", result.Text)

	key, err := api.GetOrCreateAPIKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-key", key)

	out := buf.String()
	assert.Contains(t, out, "GetDevices completed")
	assert.Contains(t, out, "ResetFilter called")
	assert.Contains(t, out, "ResetFilter completed")
	assert.Contains(t, out, `"interface":"VitesyAPI"`)
	assert.NotContains(t, out, "super-secret-key")
}

func TestClientLogger_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	api := NewClientLogger(&stubAPI{err: boom}, newBufferLogger(&buf))
	ctx := context.Background()

	_, err := api.GetDevices(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = api.ResetFridge(ctx, "AA:BB")
	assert.ErrorIs(t, err, boom)
	_, err = api.GetMaintenance(ctx, "AA:BB")
	assert.ErrorIs(t, err, boom)

	out := buf.String()
	assert.Contains(t, out, "GetDevices failed")
	assert.Contains(t, out, "ResetFridge failed")
	assert.Contains(t, out, "GetMaintenance failed")
	assert.Contains(t, out, `"level":"ERROR"`)
}
