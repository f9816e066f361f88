// Package operator defines the operator-facing control surface (start a
// session, force an IDR, read connection state) and its D-Bus export.
// Per the redesign flag calling for an enumerated property setter
// instead of runtime reflection over generated stubs, every writable
// property here is its own typed handler registered at construction —
// nothing is dispatched by method-name lookup.
package operator

import (
	"context"
	"time"
)

// ConnectionState mirrors the session package's State for operator
// consumption, kept as its own type so pkg/operator has no import
// dependency on pkg/session's internals beyond what it needs to report.
type ConnectionState string

const (
	ConnectionStateIdle      ConnectionState = "idle"
	ConnectionStateNegotiating ConnectionState = "negotiating"
	ConnectionStateConnected ConnectionState = "connected"
	ConnectionStatePlaying   ConnectionState = "playing"
	ConnectionStatePaused    ConnectionState = "paused"
)

// Device identifies a discovered or connectable peer by the fields the
// link layer exposes for it (see networkp2pdevice.h's address/name
// pair in the original implementation this surface is modeled on).
// pkg/operator defines its own type, rather than importing
// pkg/linklayer's, for the same reason ConnectionState duplicates
// session.State: the operator surface's wire shape should not change
// just because the link-layer binding underneath it does.
type Device struct {
	Address string
	Name    string
}

// Capability names one role this source can advertise over the P2P
// link layer. Only CapabilitySource is ever actually offered: sink-side
// (display) support is out of scope for this module.
type Capability string

const (
	CapabilitySource Capability = "source"
	CapabilitySink   Capability = "sink"
)

// Surface is the operator-facing control surface a WFD source exposes,
// matching spec.md §6's operation and read-only property list exactly.
type Surface interface {
	// Start begins listening for a sink connection.
	Start(ctx context.Context) error
	// Stop tears down any active session and stops listening.
	Stop(ctx context.Context) error
	// ForceIDR requests an immediate keyframe on the active session,
	// failing with kNotReady if no session is encoding.
	ForceIDR(ctx context.Context) error
	// State reports the current connection state.
	State() ConnectionState
	// PeerAddress reports the connected sink's address, empty if none.
	PeerAddress() string

	// Enable arms or disarms the P2P link layer. Scan/Connect both fail
	// with kNotReady while disabled.
	Enable(ctx context.Context, enable bool) error
	// Scan starts a bounded P2P device discovery window; it returns
	// immediately; Scanning() reports true until timeout elapses.
	Scan(ctx context.Context, timeout time.Duration) error
	// Connect initiates P2P group formation with device.
	Connect(ctx context.Context, device Device) error
	// Disconnect tears down the session associated with device, failing
	// with kNotConnected if device is not the currently connected peer.
	Disconnect(ctx context.Context, device Device) error
	// DisconnectAll tears down any active session without stopping the
	// listener itself.
	DisconnectAll(ctx context.Context) error
	// Scanning reports whether a Scan window is currently open.
	Scanning() bool
	// Enabled reports whether the P2P link layer is armed.
	Enabled() bool
	// Capabilities reports the roles this source advertises.
	Capabilities() []Capability
}

// Property is one enumerated, typed, writable property this surface
// exposes — replacing the original's runtime string-keyed reflection
// over property names with a fixed, construction-time list.
type Property struct {
	Name string
	Get  func() any
	Set  func(value any) error // nil for read-only properties
}

// PropertySet is the fixed list of properties a Surface export
// advertises. Built once at construction from the concrete Surface
// implementation; never extended at runtime.
func PropertySet(s Surface) []Property {
	return []Property{
		{Name: "State", Get: func() any { return string(s.State()) }},
		{Name: "PeerAddress", Get: func() any { return s.PeerAddress() }},
		{Name: "Scanning", Get: func() any { return s.Scanning() }},
		{Name: "Enabled", Get: func() any { return s.Enabled() }},
		{Name: "Capabilities", Get: func() any {
			caps := s.Capabilities()
			out := make([]string, len(caps))
			for i, c := range caps {
				out[i] = string(c)
			}
			return out
		}},
	}
}
