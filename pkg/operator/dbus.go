package operator

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	// BusName is the well-known D-Bus name this source claims on the
	// session bus.
	BusName = "org.aethercast.Source"
	// ObjectPath is the single object this source exports.
	ObjectPath = "/org/aethercast/Source"
	// InterfaceName is the D-Bus interface name methods are dispatched
	// under.
	InterfaceName = "org.aethercast.Source1"
)

// DBusExport wraps a Surface and exposes it over the D-Bus session bus.
// Each exported method is its own bound function — the enumerated
// replacement for the original's runtime reflection over generated
// stubs.
type DBusExport struct {
	conn    *dbus.Conn
	surface Surface
}

// Export connects to the session bus, claims BusName, and exports
// surface's methods and properties at ObjectPath.
func Export(surface Surface) (*DBusExport, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("operator: connect session bus: %w", err)
	}

	exp := &DBusExport{conn: conn, surface: surface}

	if err := conn.Export(exp, dbus.ObjectPath(ObjectPath), InterfaceName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("operator: export methods: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("operator: request name %s: %w", BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("operator: bus name %s already owned", BusName)
	}

	return exp, nil
}

// Close releases the bus name and closes the connection.
func (e *DBusExport) Close() error {
	e.conn.ReleaseName(BusName)
	return e.conn.Close()
}

// The following methods are the enumerated D-Bus method surface; each
// is bound individually rather than dispatched via reflection over an
// arbitrary method set, per the redesign flag this package implements.

// Start is exported as org.aethercast.Source1.Start.
func (e *DBusExport) Start() *dbus.Error {
	if err := e.surface.Start(context.Background()); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Stop is exported as org.aethercast.Source1.Stop.
func (e *DBusExport) Stop() *dbus.Error {
	if err := e.surface.Stop(context.Background()); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// ForceIDR is exported as org.aethercast.Source1.ForceIDR.
func (e *DBusExport) ForceIDR() *dbus.Error {
	if err := e.surface.ForceIDR(context.Background()); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// GetState is exported as org.aethercast.Source1.GetState — a typed
// getter rather than a generic Get(propertyName string) dispatcher.
func (e *DBusExport) GetState() (string, *dbus.Error) {
	return string(e.surface.State()), nil
}

// GetPeerAddress is exported as org.aethercast.Source1.GetPeerAddress.
func (e *DBusExport) GetPeerAddress() (string, *dbus.Error) {
	return e.surface.PeerAddress(), nil
}

// Enable is exported as org.aethercast.Source1.Enable.
func (e *DBusExport) Enable(enable bool) *dbus.Error {
	if err := e.surface.Enable(context.Background(), enable); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Scan is exported as org.aethercast.Source1.Scan. timeoutSeconds is a
// wire-friendly integer rather than a dbus-unsupported time.Duration.
func (e *DBusExport) Scan(timeoutSeconds uint32) *dbus.Error {
	if err := e.surface.Scan(context.Background(), time.Duration(timeoutSeconds)*time.Second); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Connect is exported as org.aethercast.Source1.Connect.
func (e *DBusExport) Connect(address, name string) *dbus.Error {
	if err := e.surface.Connect(context.Background(), Device{Address: address, Name: name}); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Disconnect is exported as org.aethercast.Source1.Disconnect.
func (e *DBusExport) Disconnect(address, name string) *dbus.Error {
	if err := e.surface.Disconnect(context.Background(), Device{Address: address, Name: name}); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// DisconnectAll is exported as org.aethercast.Source1.DisconnectAll.
func (e *DBusExport) DisconnectAll() *dbus.Error {
	if err := e.surface.DisconnectAll(context.Background()); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// GetScanning is exported as org.aethercast.Source1.GetScanning.
func (e *DBusExport) GetScanning() (bool, *dbus.Error) {
	return e.surface.Scanning(), nil
}

// GetEnabled is exported as org.aethercast.Source1.GetEnabled.
func (e *DBusExport) GetEnabled() (bool, *dbus.Error) {
	return e.surface.Enabled(), nil
}

// GetCapabilities is exported as org.aethercast.Source1.GetCapabilities.
func (e *DBusExport) GetCapabilities() ([]string, *dbus.Error) {
	caps := e.surface.Capabilities()
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out, nil
}
