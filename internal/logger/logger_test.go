package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/procura/internal/config"
)

func TestBuildLevels(t *testing.T) {
	tests := []struct {
		name     string
		obs      config.Observability
		debug    bool
		warnOnly bool
	}{
		{"json debug", config.Observability{LogLevel: "debug", LogEncoding: "json"}, true, false},
		{"console warn", config.Observability{LogLevel: "warn", LogEncoding: "console"}, false, true},
		{"unknown level falls back to info", config.Observability{LogLevel: "verbose"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Build(tt.obs)
			require.NoError(t, err)

			assert.Equal(t, tt.debug, logger.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, !tt.warnOnly, logger.Core().Enabled(zapcore.InfoLevel))
			assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
		})
	}
}
