package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/config"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := New(&config.Config{LogLevel: level, LogEncoding: "json"})
		require.NoError(t, err, level)
		assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
	}

	logger, err := New(&config.Config{LogLevel: "warn", LogEncoding: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&config.Config{LogLevel: "loud", LogEncoding: "json"})
	assert.Error(t, err)
}
