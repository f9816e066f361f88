// Package linklayer defines the narrow surface the connection manager
// needs from the Wi-Fi P2P link layer: peer lifecycle events and the
// local address assignment that follows a successful group formation.
// A real implementation watches wpa_supplicant over D-Bus (see
// original_source/src/networkp2pmanagerwpasupplicant.cpp); that binding
// is out of this module's scope, so only the interface and a
// deterministic in-memory double are provided.
package linklayer

import "context"

// PeerConnected is emitted once a Wi-Fi P2P group has formed and peer is
// reachable at PeerAddress.
type PeerConnected struct {
	PeerAddress string
	DeviceName  string
}

// PeerDisconnected is emitted when the P2P group tears down or the peer
// otherwise becomes unreachable.
type PeerDisconnected struct {
	PeerAddress string
	Reason      string
}

// AddressAssigned is emitted once the local group-owner/client address
// is available. The connection manager ignores it: its RTSP listener is
// bound on all interfaces at construction and is not rebound.
type AddressAssigned struct {
	LocalAddress string
}

// Event is the union of events a Watcher can emit. Exactly one of the
// three fields is non-nil.
type Event struct {
	PeerConnected    *PeerConnected
	PeerDisconnected *PeerDisconnected
	AddressAssigned  *AddressAssigned
}

// Watcher streams link-layer events until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Event, error)
}

// StaticWatcher is a deterministic in-memory Watcher for tests: it
// emits a fixed event sequence and then blocks until ctx is cancelled.
type StaticWatcher struct {
	Events []Event
}

func (w *StaticWatcher) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, len(w.Events))
	for _, e := range w.Events {
		ch <- e
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// NoopWatcher is the production stand-in until a real wpa_supplicant
// D-Bus binding exists: it emits no events at all, so the connection
// manager's only disconnect signal becomes the RTSP TEARDOWN/connection
// close path. Wiring a real watcher here is a drop-in change — nothing
// else in pkg/connmgr depends on how events are produced.
type NoopWatcher struct{}

func (NoopWatcher) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
