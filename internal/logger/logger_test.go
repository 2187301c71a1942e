package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zap.DebugLevel,
		"info":  zap.InfoLevel,
		"":      zap.InfoLevel,
		"warn":  zap.WarnLevel,
		"error": zap.ErrorLevel,
	}
	for name, want := range cases {
		log, err := New(name)
		require.NoError(t, err, name)
		assert.True(t, log.Core().Enabled(want), name)
		if want > zap.DebugLevel {
			assert.False(t, log.Core().Enabled(want-1), name)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose")
	assert.Error(t, err)
	_, err = ParseLevel("ERROR")
	assert.Error(t, err)
}
