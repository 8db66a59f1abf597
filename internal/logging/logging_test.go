package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("development logger honours level", func(t *testing.T) {
		t.Parallel()

		logger, err := New(false, "warn")
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("production logger", func(t *testing.T) {
		t.Parallel()

		logger, err := New(true, "debug")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("unknown level", func(t *testing.T) {
		t.Parallel()

		_, err := New(false, "chatty")
		require.Error(t, err)
	})
}
