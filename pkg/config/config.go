// Package config loads the process's runtime configuration from
// environment variables, in the same "no third-party config library"
// style the teacher's own config package uses (there: a scanner-based
// .env parser; here: os.Getenv directly, since the domain's configurable
// surface is a handful of scalars rather than a credentials file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aethercast/source/pkg/report"
)

const (
	envReportType       = "AETHERCAST_REPORT_TYPE"
	envRTSPDebug        = "AETHERCAST_RTSP_DEBUG"
	envControlPort      = "AETHERCAST_CONTROL_PORT"
	envGracePeriod      = "AETHERCAST_SHUTDOWN_GRACE_PERIOD"
	envMetricsAddr      = "AETHERCAST_METRICS_ADDR"

	defaultControlPort = 7236
	defaultGracePeriod = time.Second
)

// Config is the process-wide runtime configuration, resolved once at
// startup.
type Config struct {
	ReportType    report.Type
	RTSPDebug     bool
	ControlPort   int
	GracePeriod   time.Duration
	MetricsAddr   string // empty disables the /metrics endpoint
}

// Load reads Config from the process environment, applying the defaults
// documented in SPEC_FULL.md §6/§10 for any variable left unset.
func Load() (*Config, error) {
	cfg := &Config{
		ControlPort: defaultControlPort,
		GracePeriod: defaultGracePeriod,
	}

	reportType, ok := report.ParseType(os.Getenv(envReportType))
	if !ok {
		return nil, fmt.Errorf("config: invalid %s: %q", envReportType, os.Getenv(envReportType))
	}
	cfg.ReportType = reportType

	if v := os.Getenv(envRTSPDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s: %w", envRTSPDebug, err)
		}
		cfg.RTSPDebug = b
	}

	if v := os.Getenv(envControlPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("config: invalid %s: %q", envControlPort, v)
		}
		cfg.ControlPort = port
	}

	if v := os.Getenv(envGracePeriod); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s: %w", envGracePeriod, err)
		}
		cfg.GracePeriod = d
	}

	cfg.MetricsAddr = os.Getenv(envMetricsAddr)

	return cfg, nil
}
