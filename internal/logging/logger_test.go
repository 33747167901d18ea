package logging

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Defaults(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_DebugLevel(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "json"})
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&Config{Level: "shouting", Format: "console"})
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestSync_SwallowsStderrErrors(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)

	// Sync on stderr commonly returns EINVAL/ENOTTY; both must be swallowed.
	assert.NoError(t, Sync(logger))
}

func TestIsStdSyncError(t *testing.T) {
	assert.True(t, isStdSyncError(syscall.EINVAL))
	assert.True(t, isStdSyncError(syscall.ENOTTY))
	assert.False(t, isStdSyncError(syscall.EACCES))
	assert.False(t, isStdSyncError(assert.AnError))
}
