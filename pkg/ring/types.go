// Package ring defines the data model for the Lumie Ring connectivity subsystem and the
// connection Orchestrator that manages discovery, pairing, and unpairing of a ring bound to a
// user account.
package ring

import (
	"fmt"
)

// AdapterState reflects the on/off state of the local Bluetooth radio. It is sourced
// continuously from the radio monitor; the Orchestrator mirrors it but never owns it.
type AdapterState int

const (
	AdapterOff AdapterState = iota
	AdapterOn
)

func (s AdapterState) String() string {
	if s == AdapterOn {
		return "on"
	}
	return "off"
}

// ConnectionStatus describes the account's relationship to a ring.
type ConnectionStatus string

const (
	StatusNeverPaired  ConnectionStatus = "never_paired"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnected    ConnectionStatus = "connected"
)

// RingInfo is the working record for the ring bound to the account. The durable cache holds a
// copy that survives process restarts; the backend is the source of truth for which device is
// bound to the account after any network mutation. Exactly one ring may be paired per account.
type RingInfo struct {
	DeviceID        string           `json:"ring_device_id"`
	Name            string           `json:"ring_name"`
	FirmwareVersion string           `json:"firmware_version,omitempty"`
	BatteryLevel    *int             `json:"battery_level,omitempty"` // 0-100
	Status          ConnectionStatus `json:"connection_status"`
}

// IsPaired reports whether info describes a ring bound to the account. A paired record always
// carries a device ID.
func (r *RingInfo) IsPaired() bool {
	return r != nil && r.Status != StatusNeverPaired && r.Status != "" && r.DeviceID != ""
}

// DiscoveredRing is a ring seen during a scan session. DeviceID is the dedup key within the
// session; entries are discarded when the session ends or a new scan starts.
type DiscoveredRing struct {
	DeviceID    string
	DisplayName string
	SignalBars  int // 0-4
}

// SignalBars buckets a raw RSSI reading into 0-4 display bars.
func SignalBars(rssi int16) int {
	switch {
	case rssi >= -60:
		return 4
	case rssi >= -70:
		return 3
	case rssi >= -80:
		return 2
	case rssi >= -90:
		return 1
	default:
		return 0
	}
}

// PairingParameters are the biometric initialization inputs required by the hardware handshake.
// They come from the profile of the account performing the pairing and are not stored by this
// subsystem.
type PairingParameters struct {
	GenderCode int
	AgeYears   int
	HeightCm   int
	WeightKg   int
}

// Validate rejects parameter sets the ring firmware cannot accept.
func (p PairingParameters) Validate() error {
	if p.AgeYears <= 0 || p.AgeYears > 150 {
		return fmt.Errorf("age %d out of range", p.AgeYears)
	}
	if p.HeightCm <= 0 || p.HeightCm > 300 {
		return fmt.Errorf("height %d out of range", p.HeightCm)
	}
	if p.WeightKg <= 0 || p.WeightKg > 500 {
		return fmt.Errorf("weight %d out of range", p.WeightKg)
	}
	return nil
}

// HandshakeResult is the identity a ring reports after a successful hardware handshake.
type HandshakeResult struct {
	DeviceID        string
	Name            string
	FirmwareVersion string
	BatteryLevel    *int // 0-100, nil if the ring did not report it
}
