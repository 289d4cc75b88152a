package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestBuildLevels(t *testing.T) {
	l, err := build("debug", "console")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = build("WARN", "json")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestBuildRejectsBadInput(t *testing.T) {
	_, err := build("loud", "console")
	require.Error(t, err)

	_, err = build("info", "xml")
	require.Error(t, err)
}

func TestSetupRunsOnce(t *testing.T) {
	first, err := Setup("info", "console")
	require.NoError(t, err)

	second, err := Setup("debug", "json")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.False(t, second.Core().Enabled(zapcore.DebugLevel))
}
