// Package connmgr owns the RTSP TCP listener and the single-session
// lifecycle a WFD source exposes: only one sink is ever connected at a
// time (the connection manager closes a second TCP connection while a
// session is active), and link-layer disconnect events force a teardown even if
// the sink never sends TEARDOWN itself.
package connmgr

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/aethercast/source/pkg/linklayer"
	"github.com/aethercast/source/pkg/logger"
	"github.com/aethercast/source/pkg/wfderr"
)

// DefaultPort is the RTSP control port a WFD source listens on.
const DefaultPort = 7236

// SessionHandler is invoked once per accepted connection; it owns that
// connection's entire control-plane lifecycle and returns when the
// session ends (TEARDOWN, peer close, or ctx cancellation).
type SessionHandler func(ctx context.Context, conn net.Conn) error

// Manager accepts at most one active connection at a time on its
// listener, tearing down the active session if the link layer reports
// the peer disconnected.
type Manager struct {
	listener net.Listener
	watcher  linklayer.Watcher
	handler  SessionHandler
	logger   *logger.Logger

	mu           sync.Mutex
	activeCancel context.CancelFunc
}

// New binds a TCP listener on port and wires it to watcher and handler.
func New(port int, watcher linklayer.Watcher, handler SessionHandler, log *logger.Logger) (*Manager, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("connmgr: listen on port %d: %w", port, err)
	}
	return &Manager{listener: ln, watcher: watcher, handler: handler, logger: log}, nil
}

// Run accepts connections until ctx is cancelled, rejecting a second
// connection attempt while one session is already active and tearing
// the active session down on a link-layer PeerDisconnected event.
func (m *Manager) Run(ctx context.Context) error {
	events, err := m.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("connmgr: watch link layer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.PeerDisconnected != nil {
					m.teardownActive()
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		m.listener.Close()
	}()

	for {
		conn, err := m.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("connmgr: accept: %w", err)
		}

		m.mu.Lock()
		if m.activeCancel != nil {
			m.mu.Unlock()
			m.logger.Warn("rejecting connection while a session is already active",
				"remote_addr", conn.RemoteAddr())
			conn.Close()
			continue
		}
		sessionCtx, cancel := context.WithCancel(ctx)
		m.activeCancel = cancel
		m.mu.Unlock()

		go func(conn net.Conn, sessionCtx context.Context, cancel context.CancelFunc) {
			defer conn.Close()
			defer cancel()
			defer func() {
				m.mu.Lock()
				m.activeCancel = nil
				m.mu.Unlock()
			}()

			if err := m.handler(sessionCtx, conn); err != nil && sessionCtx.Err() == nil {
				m.logger.Warn("session ended with error", "error", err, "remote_addr", conn.RemoteAddr())
			}
		}(conn, sessionCtx, cancel)
	}
}

func (m *Manager) teardownActive() {
	m.mu.Lock()
	cancel := m.activeCancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close stops accepting new connections.
func (m *Manager) Close() error {
	return m.listener.Close()
}

// ErrBusy is the taxonomy value for a second sink connecting while a
// session is active. Manager itself does not return it: Run closes the
// rejected connection and logs a warning instead.
var ErrBusy = wfderr.New(wfderr.CodeAlready, "connmgr.Manager", nil)
