// Package radio holds the GATT profile constants and scan-session bookkeeping shared by the
// BLE backends in its subdirectories. The byte-level handshake framing is vendor-defined and
// opaque to the rest of the repository: backends return a ring.HandshakeResult or an error.
package radio

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/lumiehealth/ring-command/pkg/ring"
)

const (
	// Lumie Ring vendor service. The biometric-init characteristic receives the pairing
	// parameters; the identity characteristic reports the ring's serial and display name.
	RingServiceUUID    = "0000a201-8cf3-44a5-9e0a-72fcd1b8e410"
	BiometricInitUUID  = "0000a202-8cf3-44a5-9e0a-72fcd1b8e410"
	RingIdentityUUID   = "0000a203-8cf3-44a5-9e0a-72fcd1b8e410"

	// Standard Bluetooth SIG services for firmware and battery readings.
	DeviceInformationServiceUUID = "0000180a-0000-1000-8000-00805f9b34fb"
	FirmwareRevisionUUID         = "00002a26-0000-1000-8000-00805f9b34fb"
	BatteryServiceUUID           = "0000180f-0000-1000-8000-00805f9b34fb"
	BatteryLevelUUID             = "00002a19-0000-1000-8000-00805f9b34fb"
)

// LocalNamePrefix identifies ring advertisements during discovery.
const LocalNamePrefix = "Lumie Ring"

// DefaultScanTimeout is the internal time bound of a scan session.
const DefaultScanTimeout = 15 * time.Second

// IsRingAdvertisement reports whether an advertised local name belongs to a ring.
func IsRingAdvertisement(localName string) bool {
	return strings.HasPrefix(localName, LocalNamePrefix)
}

// BiometricPayload encodes pairing parameters into the frame the biometric-init
// characteristic expects: gender, age (years), height (cm, LE16), weight (kg, LE16).
func BiometricPayload(p ring.PairingParameters) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(p.GenderCode)
	buf[1] = byte(p.AgeYears)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(p.HeightCm))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(p.WeightKg))
	return buf
}

// ParseBatteryLevel decodes a standard battery-level characteristic read.
func ParseBatteryLevel(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, fmt.Errorf("ble: empty battery level reading")
	}
	level := int(buf[0])
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("ble: battery level %d out of range", level)
	}
	return level, nil
}
