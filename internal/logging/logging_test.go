package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/OneInX/Manifest-InX/internal/config"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		cfg  config.LoggingConfig
		want zapcore.Level
	}{
		{config.LoggingConfig{Level: "debug"}, zapcore.DebugLevel},
		{config.LoggingConfig{Level: "warn", Development: true}, zapcore.WarnLevel},
		{config.LoggingConfig{Level: "error"}, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		l, err := New(tt.cfg)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(tt.want))
		if tt.want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(tt.want-1))
		}
	}
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l, err := New(config.LoggingConfig{Level: "info"})
	require.NoError(t, err)
	assert.Same(t, l, OrNop(l))
}
