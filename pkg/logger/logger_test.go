package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chwone-controlplane/pkg/config"
)

func TestNewReplacesGlobals(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	cfg := &config.Config{AppEnv: "test", AppName: "chwone"}
	log := New(ConfigParams{Cfg: cfg})

	require.NotNil(t, log)
	require.Same(t, log, zap.L())
}

func TestProductionConfigEncodesJSON(t *testing.T) {
	c := productionConfig()
	require.Equal(t, "json", c.Encoding)
	require.Equal(t, "severity", c.EncoderConfig.LevelKey)
	require.Equal(t, "timestamp", c.EncoderConfig.TimeKey)
}
