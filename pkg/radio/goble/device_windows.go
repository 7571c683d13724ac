package goble

import (
	"errors"

	"github.com/go-ble/ble"
)

// IsAdapterError reports whether err indicates the Bluetooth stack itself is unusable.
func IsAdapterError(_ error) bool {
	return false
}

func isAdapterOffError(_ error) bool {
	return false
}

func newDevice(_ string) (ble.Device, error) {
	return nil, errors.New("not supported on Windows")
}
