// aethercastd is a Wi-Fi Display (Miracast) source: it listens for a
// sink's RTSP connection, negotiates the M1-M7 capability exchange, and
// streams captured frames as an H.264-over-MPEG-TS RTP stream once the
// sink issues PLAY. The operator (shell, systemd, or another process)
// drives it over the org.aethercast.Source1 D-Bus interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aethercast/source/pkg/app"
	"github.com/aethercast/source/pkg/config"
	"github.com/aethercast/source/pkg/linklayer"
	"github.com/aethercast/source/pkg/logger"
	"github.com/aethercast/source/pkg/operator"
)

func main() {
	fs := flag.NewFlagSet("aethercastd", flag.ExitOnError)
	logFlags := logger.RegisterFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Wi-Fi Display (Miracast) source daemon\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		logger.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error configuring logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.RTSPDebug {
		logConfig.Level = logger.LevelDebug
		logConfig.EnableCategory(logger.DebugRTSP)
	}

	log, err := logger.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logger.SetDefault(log)

	log.Info("starting aethercastd", "log_config", logFlags.String())
	log.Info("configuration loaded",
		"control_port", cfg.ControlPort,
		"report_type", cfg.ReportType,
		"grace_period", cfg.GracePeriod)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	a, err := app.New(cfg, log, linklayer.NoopWatcher{})
	if err != nil {
		log.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	log.Info("listening for a sink connection", "port", cfg.ControlPort)

	dbusExport, err := operator.Export(a)
	if err != nil {
		log.Warn("D-Bus export unavailable, continuing without an operator surface", "error", err)
	} else {
		defer dbusExport.Close()
		log.Info("exported operator surface", "bus_name", operator.BusName, "object_path", operator.ObjectPath)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracePeriod)
	defer shutdownCancel()
	if err := a.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	log.Info("aethercastd stopped")
}
