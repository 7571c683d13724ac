package goble

import (
	"errors"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"

	"github.com/lumiehealth/ring-command/internal/log"
)

var errAdapterInvalidID = errors.New("ble: adapter ID is not supported on Darwin")

// IsAdapterError reports whether err indicates the Bluetooth stack itself is unusable.
func IsAdapterError(_ error) bool {
	return false
}

func isAdapterOffError(_ error) bool {
	return false
}

func newDevice(id string) (ble.Device, error) {
	if id != "" {
		log.Warning("Darwin does not support specifying a Bluetooth adapter ID")
		return nil, errAdapterInvalidID
	}
	return darwin.NewDevice()
}
