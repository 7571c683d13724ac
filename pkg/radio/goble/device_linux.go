package goble

import (
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
)

const bleTimeout = 20 * time.Second

// Rings advertise roughly every 100ms while in pairing mode.
var scanParams = cmd.LESetScanParameters{
	LEScanType:           1,    // Active scanning
	LEScanInterval:       0x10, // 10ms
	LEScanWindow:         0x10, // 10ms
	OwnAddressType:       0,    // Static
	ScanningFilterPolicy: 2,    // Basic filtered
}

// IsAdapterError reports whether err indicates the Bluetooth stack itself is unusable.
func IsAdapterError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "can't init hci") || strings.Contains(msg, "no devices available")
}

// isAdapterOffError reports whether err indicates the radio is powered down.
func isAdapterOffError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "hci device down") || strings.Contains(msg, "not powered")
}

func newDevice(_ string) (ble.Device, error) {
	return linux.NewDevice(ble.OptListenerTimeout(bleTimeout), ble.OptDialerTimeout(bleTimeout), ble.OptScanParams(scanParams))
}
