package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/serownia/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    zapcore.Level
	}{
		{"debug", false, zapcore.DebugLevel},
		{"info", false, zapcore.InfoLevel},
		{"", false, zapcore.InfoLevel},
		{"WARN", false, zapcore.WarnLevel},
		{"error", false, zapcore.ErrorLevel},
		{"error", true, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(config.LogConfig{Level: tt.level, Encoding: "console"}, tt.verbose)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewJSON(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "info", Encoding: "json"}, false)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}
