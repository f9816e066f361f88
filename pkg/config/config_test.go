package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aethercast/source/pkg/report"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AETHERCAST_REPORT_TYPE", "")
	t.Setenv("AETHERCAST_RTSP_DEBUG", "")
	t.Setenv("AETHERCAST_CONTROL_PORT", "")
	t.Setenv("AETHERCAST_SHUTDOWN_GRACE_PERIOD", "")
	t.Setenv("AETHERCAST_METRICS_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, report.TypeNull, cfg.ReportType)
	assert.False(t, cfg.RTSPDebug)
	assert.Equal(t, defaultControlPort, cfg.ControlPort)
	assert.Equal(t, defaultGracePeriod, cfg.GracePeriod)
	assert.Equal(t, "", cfg.MetricsAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AETHERCAST_REPORT_TYPE", "prometheus")
	t.Setenv("AETHERCAST_RTSP_DEBUG", "true")
	t.Setenv("AETHERCAST_CONTROL_PORT", "8554")
	t.Setenv("AETHERCAST_SHUTDOWN_GRACE_PERIOD", "2s")
	t.Setenv("AETHERCAST_METRICS_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, report.TypePrometheus, cfg.ReportType)
	assert.True(t, cfg.RTSPDebug)
	assert.Equal(t, 8554, cfg.ControlPort)
	assert.Equal(t, 2_000_000_000, int(cfg.GracePeriod))
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadRejectsInvalidReportType(t *testing.T) {
	t.Setenv("AETHERCAST_REPORT_TYPE", "graphite")
	_, err := Load()
	assert.Error(t, err)
}
