// Package tinygo implements the discovery scanner and pairing handshake over
// tinygo.org/x/bluetooth.
package tinygo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lumiehealth/ring-command/internal/log"
	"github.com/lumiehealth/ring-command/pkg/protocol"
	"github.com/lumiehealth/ring-command/pkg/radio"
	"github.com/lumiehealth/ring-command/pkg/ring"
)

var (
	ringServiceUUID       = mustParseUUID(radio.RingServiceUUID)
	biometricInitUUID     = mustParseUUID(radio.BiometricInitUUID)
	ringIdentityUUID      = mustParseUUID(radio.RingIdentityUUID)
	deviceInformationUUID = mustParseUUID(radio.DeviceInformationServiceUUID)
	firmwareRevisionUUID  = mustParseUUID(radio.FirmwareRevisionUUID)
	batteryServiceUUID    = mustParseUUID(radio.BatteryServiceUUID)
	batteryLevelUUID      = mustParseUUID(radio.BatteryLevelUUID)
)

// scanStartGrace is how long StartScan waits for the blocking Scan call to fail before
// concluding the session is running.
const scanStartGrace = 250 * time.Millisecond

// Radio implements ring.Scanner and ring.Pairer on the tinygo bluetooth stack.
type Radio struct {
	adapter *bluetooth.Adapter

	mu          sync.Mutex
	session     *radio.Session
	device      *bluetooth.Device
	scanTimeout time.Duration
	adapterOn   bool

	states chan ring.AdapterState
}

// NewRadio enables the Bluetooth adapter with the given ID ("" selects the default adapter).
func NewRadio(id string) (*Radio, error) {
	adapter, err := newAdapter(id)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to create adapter: %s", err)
	}
	if err := adapter.Enable(); err != nil {
		if IsAdapterError(err) {
			return nil, protocol.WrapError(protocol.KindRadioUnavailable, "bluetooth is unavailable", err)
		}
		return nil, fmt.Errorf("ble: failed to enable adapter: %s", err)
	}
	return &Radio{
		adapter:     adapter,
		scanTimeout: radio.DefaultScanTimeout,
		adapterOn:   true,
		states:      make(chan ring.AdapterState, 4),
	}, nil
}

// SetScanTimeout overrides the internal time bound of scan sessions.
func (r *Radio) SetScanTimeout(d time.Duration) {
	r.mu.Lock()
	r.scanTimeout = d
	r.mu.Unlock()
}

func (r *Radio) AdapterOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adapterOn
}

func (r *Radio) AdapterStates() <-chan ring.AdapterState {
	return r.states
}

// setAdapterOn records radio power transitions inferred from stack errors and publishes them
// on the state stream.
func (r *Radio) setAdapterOn(on bool) {
	r.mu.Lock()
	changed := r.adapterOn != on
	r.adapterOn = on
	r.mu.Unlock()
	if !changed {
		return
	}
	state := ring.AdapterOff
	if on {
		state = ring.AdapterOn
	}
	select {
	case r.states <- state:
	default:
	}
}

// StartScan begins a discovery session. Advertisements matching the ring local-name prefix
// are deduplicated per session and forwarded to onFound.
func (r *Radio) StartScan(ctx context.Context, onFound func(ring.DiscoveredRing), onTimeout func(found bool)) error {
	r.StopScan()

	r.mu.Lock()
	timeout := r.scanTimeout
	sess := radio.NewSession(timeout, onFound, func(found bool) {
		r.stopHardwareScan()
		onTimeout(found)
	})
	r.session = sess
	r.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if !radio.IsRingAdvertisement(name) {
				return
			}
			sess.Report(ring.DiscoveredRing{
				DeviceID:    result.Address.String(),
				DisplayName: name,
				SignalBars:  ring.SignalBars(result.RSSI),
			})
		})
	}()

	go func() {
		select {
		case <-ctx.Done():
			if !sess.Done() {
				r.StopScan()
			}
		case <-time.After(timeout + time.Second):
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			sess.End()
			r.clearSession(sess)
			if IsAdapterError(err) || isAdapterOffError(err) {
				r.setAdapterOn(false)
				return protocol.WrapError(protocol.KindRadioUnavailable, "bluetooth is unavailable", err)
			}
			return protocol.WrapError(protocol.KindScanFailure, "could not start scanning", err)
		}
		return nil
	case <-time.After(scanStartGrace):
		// Scan is running; it blocks until StopScan.
		r.setAdapterOn(true)
		return nil
	}
}

// StopScan ends the active session, if any, suppressing its timeout callback.
func (r *Radio) StopScan() {
	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.mu.Unlock()
	if sess != nil {
		sess.End()
	}
	r.stopHardwareScan()
}

func (r *Radio) clearSession(sess *radio.Session) {
	r.mu.Lock()
	if r.session == sess {
		r.session = nil
	}
	r.mu.Unlock()
}

func (r *Radio) stopHardwareScan() {
	if err := r.adapter.StopScan(); err != nil {
		if strings.Contains(err.Error(), "not calling Scan function") ||
			strings.Contains(err.Error(), "no scan in progress") {
			return
		}
		log.Warning("ble: failed to stop scan: %s", err)
	}
}

// ConnectAndPair connects to the selected ring, writes the biometric initialization frame, and
// reads back the ring's identity, firmware revision, and battery level. Any existing hardware
// session is dropped first; the connection is torn down on failure.
func (r *Radio) ConnectAndPair(ctx context.Context, target ring.DiscoveredRing, params ring.PairingParameters) (*ring.HandshakeResult, error) {
	r.Disconnect()

	addr, err := parseAddress(target.DeviceID)
	if err != nil {
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "invalid ring address", err)
	}

	connParams := bluetooth.ConnectionParams{}
	if deadline, ok := ctx.Deadline(); ok {
		connParams.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}

	// Connect blocks without honoring ctx, so run it in a goroutine and disconnect if the
	// caller gave up before it completed.
	deviceCh := make(chan bluetooth.Device, 1)
	errCh := make(chan error, 1)
	go func() {
		device, err := r.adapter.Connect(addr, connParams)
		if err != nil {
			errCh <- err
			return
		}
		if ctx.Err() == nil {
			deviceCh <- device
			return
		}
		if err := device.Disconnect(); err != nil {
			log.Warning("ble: failed to disconnect: %s", err)
		}
	}()

	var device bluetooth.Device
	select {
	case device = <-deviceCh:
		log.Debug("ble: connected to %s", target.DeviceID)
	case err := <-errCh:
		if isAdapterOffError(err) {
			r.setAdapterOn(false)
			return nil, protocol.WrapError(protocol.KindRadioUnavailable, "bluetooth is unavailable", err)
		}
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "could not connect to ring", err)
	case <-ctx.Done():
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "timed out connecting to ring", ctx.Err())
	}

	result, err := r.handshake(device, target, params)
	if err != nil {
		if derr := device.Disconnect(); derr != nil {
			log.Warning("ble: failed to disconnect after handshake failure: %s", derr)
		}
		return nil, err
	}

	r.mu.Lock()
	r.device = &device
	r.mu.Unlock()
	log.Info("ble: handshake with %s complete", result.DeviceID)
	return result, nil
}

func (r *Radio) handshake(device bluetooth.Device, target ring.DiscoveredRing, params ring.PairingParameters) (*ring.HandshakeResult, error) {
	ringChars, err := discoverCharacteristics(device, ringServiceUUID, biometricInitUUID, ringIdentityUUID)
	if err != nil {
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "ring did not offer the expected pairing service", err)
	}

	if _, err := deviceCharacteristicWrite(ringChars[0], radio.BiometricPayload(params)); err != nil {
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "ring rejected pairing parameters", err)
	}

	buf := make([]byte, 64)
	n, err := ringChars[1].Read(buf)
	if err != nil || n == 0 {
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "could not read ring identity", err)
	}

	result := &ring.HandshakeResult{
		DeviceID: strings.TrimSpace(string(buf[:n])),
		Name:     target.DisplayName,
	}
	if result.DeviceID == "" {
		result.DeviceID = target.DeviceID
	}

	// Firmware and battery are best effort; the handshake stands without them.
	if chars, err := discoverCharacteristics(device, deviceInformationUUID, firmwareRevisionUUID); err == nil {
		if n, err := chars[0].Read(buf); err == nil && n > 0 {
			result.FirmwareVersion = strings.TrimSpace(string(buf[:n]))
		}
	} else {
		log.Debug("ble: no device information service: %s", err)
	}
	if chars, err := discoverCharacteristics(device, batteryServiceUUID, batteryLevelUUID); err == nil {
		if n, err := chars[0].Read(buf); err == nil {
			if level, err := radio.ParseBatteryLevel(buf[:n]); err == nil {
				result.BatteryLevel = &level
			}
		}
	} else {
		log.Debug("ble: no battery service: %s", err)
	}

	return result, nil
}

// Disconnect drops the live hardware connection, if any.
func (r *Radio) Disconnect() {
	r.mu.Lock()
	device := r.device
	r.device = nil
	r.mu.Unlock()
	if device == nil {
		return
	}
	if err := device.Disconnect(); err != nil {
		log.Warning("ble: failed to disconnect: %s", err)
	}
}

// Close stops scanning, drops any connection, and closes the adapter state stream.
func (r *Radio) Close() {
	r.StopScan()
	r.Disconnect()
	close(r.states)
}

func discoverCharacteristics(device bluetooth.Device, service bluetooth.UUID, chars ...bluetooth.UUID) ([]bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{service})
	if err != nil {
		return nil, fmt.Errorf("ble: failed to enumerate device services: %s", err)
	}
	if len(services) != 1 {
		return nil, fmt.Errorf("ble: failed to discover service %s", service.String())
	}
	discovered, err := services[0].DiscoverCharacteristics(chars)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to discover service characteristics: %s", err)
	}
	if len(discovered) != len(chars) {
		return nil, fmt.Errorf("ble: service %s missing required characteristics", service.String())
	}
	return discovered, nil
}

func mustParseUUID(uuid string) bluetooth.UUID {
	parsed, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		panic(err)
	}
	return parsed
}
