// Package app wires the component packages into a running daemon:
// config -> logger -> report backend -> connection manager -> per-session
// RTSP handshake -> pipeline (frame source -> encoder -> packetizer -> RTP
// sender). It also implements operator.Surface so the D-Bus façade in
// pkg/operator can drive it directly.
package app

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aethercast/source/pkg/config"
	"github.com/aethercast/source/pkg/connmgr"
	"github.com/aethercast/source/pkg/linklayer"
	"github.com/aethercast/source/pkg/logger"
	"github.com/aethercast/source/pkg/operator"
	"github.com/aethercast/source/pkg/pipeline"
	"github.com/aethercast/source/pkg/report"
	"github.com/aethercast/source/pkg/session"
	"github.com/aethercast/source/pkg/wfderr"
)

// App is the top-level daemon: it owns the connection manager and the
// currently active session's renderer, if any.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	reporter report.Reporter
	watcher  linklayer.Watcher

	mgr     *connmgr.Manager
	httpSrv *http.Server

	mu             sync.Mutex
	activeSess     *session.Session
	activePipe     *pipeline.Pipeline
	activeRenderer *rendererExec
	peerAddress    string
	state          operator.ConnectionState
	enabled        bool
	scanning       bool
	scanGen        int
}

// New builds an App from cfg, wiring a Prometheus registry and metrics
// HTTP server when cfg.ReportType and cfg.MetricsAddr select them.
func New(cfg *config.Config, log *logger.Logger, watcher linklayer.Watcher) (*App, error) {
	a := &App{cfg: cfg, log: log, watcher: watcher, state: operator.ConnectionStateIdle}

	switch cfg.ReportType {
	case report.TypeLog:
		a.reporter = report.NewLog(log.Logger)
	case report.TypeLTTNG:
		a.reporter = report.NewLTTNG(log.Logger)
	case report.TypePrometheus:
		reg := prometheus.NewRegistry()
		a.reporter = report.NewPrometheus(reg)
		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			a.httpSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		}
	default:
		a.reporter = report.NewNull()
	}

	return a, nil
}

// Start implements operator.Surface: it starts the metrics server (if
// configured) and the connection manager's accept loop.
func (a *App) Start(ctx context.Context) error {
	if a.httpSrv != nil {
		go func() {
			if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	mgr, err := connmgr.New(a.cfg.ControlPort, a.watcher, a.handleSession, a.log)
	if err != nil {
		return wfderr.New(wfderr.CodeFailed, "app.Start", err)
	}
	a.mgr = mgr

	go func() {
		if err := mgr.Run(ctx); err != nil {
			a.log.Error("connection manager stopped", "error", err)
		}
	}()

	return nil
}

// Stop implements operator.Surface.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	pipe := a.activePipe
	a.mu.Unlock()
	if pipe != nil {
		pipe.Stop()
	}

	if a.mgr != nil {
		a.mgr.Close()
	}
	if a.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.GracePeriod)
		defer cancel()
		a.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// ForceIDR implements operator.Surface.
func (a *App) ForceIDR(ctx context.Context) error {
	a.mu.Lock()
	renderer := a.activeRenderer
	a.mu.Unlock()
	if renderer == nil {
		return wfderr.New(wfderr.CodeNotReady, "app.ForceIDR", nil)
	}
	return renderer.ForceIDR()
}

// State implements operator.Surface.
func (a *App) State() operator.ConnectionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// PeerAddress implements operator.Surface.
func (a *App) PeerAddress() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peerAddress
}

func (a *App) setState(state operator.ConnectionState, peer string) {
	a.mu.Lock()
	a.state = state
	a.peerAddress = peer
	a.mu.Unlock()
}

func (a *App) reflectSessionState(s session.State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch s {
	case session.StatePlaying:
		a.state = operator.ConnectionStatePlaying
	case session.StatePaused:
		a.state = operator.ConnectionStatePaused
	case session.StateEstablished:
		a.state = operator.ConnectionStateConnected
	}
}

func (a *App) setActiveSession(s *session.Session) {
	a.mu.Lock()
	a.activeSess = s
	a.mu.Unlock()
}

func (a *App) setActivePipeline(p *pipeline.Pipeline) {
	a.mu.Lock()
	a.activePipe = p
	a.mu.Unlock()
}

func (a *App) setActiveRenderer(r *rendererExec) {
	a.mu.Lock()
	a.activeRenderer = r
	a.mu.Unlock()
}

// Enable implements operator.Surface. Disabling does not tear down an
// already-connected sink; it only prevents Scan/Connect until
// re-enabled, matching the original's enable(false) semantics of
// disarming discovery rather than kicking an active peer.
func (a *App) Enable(ctx context.Context, enable bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enable
	return nil
}

// Scan implements operator.Surface. No real P2P device-discovery
// binding exists (a.watcher is typically linklayer.NoopWatcher until
// one is wired in), so Scan only toggles the Scanning() property for
// the declared timeout; it never actually discovers a Device.
func (a *App) Scan(ctx context.Context, timeout time.Duration) error {
	a.mu.Lock()
	if !a.enabled {
		a.mu.Unlock()
		return wfderr.New(wfderr.CodeNotReady, "app.Scan", nil)
	}
	if a.scanning {
		a.mu.Unlock()
		return wfderr.New(wfderr.CodeInProgress, "app.Scan", nil)
	}
	a.scanning = true
	a.scanGen++
	gen := a.scanGen
	a.mu.Unlock()

	go func() {
		select {
		case <-time.After(timeout):
		case <-ctx.Done():
		}
		a.mu.Lock()
		if a.scanGen == gen {
			a.scanning = false
		}
		a.mu.Unlock()
	}()
	return nil
}

// Connect implements operator.Surface. Group formation itself happens
// below this module, through whatever wpa_supplicant binding
// a.watcher wraps (see pkg/linklayer's package doc); this call only
// validates preconditions, since linklayer.Watcher is read-only for
// this module's scope.
func (a *App) Connect(ctx context.Context, device operator.Device) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return wfderr.New(wfderr.CodeNotReady, "app.Connect", nil)
	}
	if device.Address == "" {
		return wfderr.New(wfderr.CodeParamInvalid, "app.Connect", nil)
	}
	return nil
}

// Disconnect implements operator.Surface: it tears down the active
// session if it matches device, leaving the listener running.
func (a *App) Disconnect(ctx context.Context, device operator.Device) error {
	a.mu.Lock()
	peer := a.peerAddress
	pipe := a.activePipe
	a.mu.Unlock()

	if peer == "" || device.Address == "" || !strings.HasPrefix(peer, device.Address) {
		return wfderr.New(wfderr.CodeNotConnected, "app.Disconnect", nil)
	}
	if pipe != nil {
		pipe.Stop()
	}
	return nil
}

// DisconnectAll implements operator.Surface: it tears down whatever
// session is active, leaving the listener running for the next sink.
func (a *App) DisconnectAll(ctx context.Context) error {
	a.mu.Lock()
	pipe := a.activePipe
	a.mu.Unlock()
	if pipe != nil {
		pipe.Stop()
	}
	return nil
}

// Scanning implements operator.Surface.
func (a *App) Scanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

// Enabled implements operator.Surface.
func (a *App) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Capabilities implements operator.Surface. This source never offers
// sink (display) support, per the module's non-goals.
func (a *App) Capabilities() []operator.Capability {
	return []operator.Capability{operator.CapabilitySource}
}
