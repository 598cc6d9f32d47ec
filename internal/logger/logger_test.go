package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(Config{Level: "debug", Encoding: "json", Service: "moodlens"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(Config{Level: "WARN"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestGetLogLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, getLogLevel("verbose").Level())
	assert.Equal(t, zapcore.ErrorLevel, getLogLevel("error").Level())
}
