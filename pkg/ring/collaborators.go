package ring

import "context"

//go:generate mockgen -source collaborators.go -destination ../../mocks/collaborators.go -package mocks

// Scanner performs time-boxed BLE discovery and reports local adapter state. Implementations
// live under pkg/radio.
type Scanner interface {
	// StartScan begins a scan session. onFound fires at most once per unique device ID per
	// session; onTimeout fires exactly once when the session's internal time bound elapses,
	// with found indicating whether any device was seen. StopScan before the bound suppresses
	// the timeout callback. Callbacks are invoked from the scanner's own goroutine.
	StartScan(ctx context.Context, onFound func(DiscoveredRing), onTimeout func(found bool)) error

	// StopScan cancels the active scan session, if any.
	StopScan()

	// AdapterOn reports whether the local Bluetooth radio is powered.
	AdapterOn() bool

	// AdapterStates returns a stream of adapter on/off transitions. The channel is closed
	// when the scanner shuts down.
	AdapterStates() <-chan AdapterState
}

// Pairer runs the hardware-level connect and handshake against a discovered ring. The handshake
// must be cancellable through ctx and must leave no dangling hardware connection on failure.
type Pairer interface {
	ConnectAndPair(ctx context.Context, target DiscoveredRing, params PairingParameters) (*HandshakeResult, error)

	// Disconnect tears down any live hardware connection. Safe to call when not connected.
	Disconnect()
}

// Registrar binds and unbinds a ring device identity to the user account on the backend.
type Registrar interface {
	PairRing(ctx context.Context, deviceID, name, firmwareVersion string) (RingInfo, error)
	UnpairRing(ctx context.Context) error
}

// Store is the durable local record of the last-known ring, surviving process restarts. The
// store is authoritative at startup; the backend is authoritative after any network mutation.
type Store interface {
	// RingInfo returns the cached record, or nil if none is stored.
	RingInfo() (*RingInfo, error)

	// SetRingInfo replaces the cached record. Passing nil clears it.
	SetRingInfo(info *RingInfo) error

	PromptShown() (bool, error)
	MarkPromptShown() error

	// Clear drops the ring record and the prompt flag. Used on logout.
	Clear() error
}
