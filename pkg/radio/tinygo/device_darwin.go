package tinygo

import (
	"errors"
	"fmt"

	"tinygo.org/x/bluetooth"
)

var errAdapterInvalidID = errors.New("ble: adapter ID is not supported on Darwin")

// IsAdapterError reports whether err indicates the Bluetooth stack itself is unusable.
func IsAdapterError(_ error) bool {
	return false
}

func isAdapterOffError(_ error) bool {
	return false
}

func newAdapter(id string) (*bluetooth.Adapter, error) {
	if id != "" {
		return nil, errAdapterInvalidID
	}
	return bluetooth.DefaultAdapter, nil
}

var (
	deviceCharacteristicWrite = bluetooth.DeviceCharacteristic.Write
)

func parseAddress(address string) (bluetooth.Address, error) {
	uuid, err := bluetooth.ParseUUID(address)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("ble: failed to parse device UUID: %s", err)
	}
	return bluetooth.Address{
		UUID: uuid,
	}, nil
}
