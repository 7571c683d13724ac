// Package goble implements the discovery scanner and pairing handshake over
// github.com/go-ble/ble (Linux and Darwin only).
package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"

	"github.com/lumiehealth/ring-command/internal/log"
	"github.com/lumiehealth/ring-command/pkg/protocol"
	"github.com/lumiehealth/ring-command/pkg/radio"
	"github.com/lumiehealth/ring-command/pkg/ring"
)

var (
	ringServiceUUID       = ble.MustParse(radio.RingServiceUUID)
	biometricInitUUID     = ble.MustParse(radio.BiometricInitUUID)
	ringIdentityUUID      = ble.MustParse(radio.RingIdentityUUID)
	deviceInformationUUID = ble.MustParse(radio.DeviceInformationServiceUUID)
	firmwareRevisionUUID  = ble.MustParse(radio.FirmwareRevisionUUID)
	batteryServiceUUID    = ble.MustParse(radio.BatteryServiceUUID)
	batteryLevelUUID      = ble.MustParse(radio.BatteryLevelUUID)
)

const scanStartGrace = 250 * time.Millisecond

// Radio implements ring.Scanner and ring.Pairer on the go-ble HCI stack.
type Radio struct {
	device ble.Device

	mu          sync.Mutex
	session     *radio.Session
	scanCancel  context.CancelFunc
	client      ble.Client
	scanTimeout time.Duration
	adapterOn   bool

	states chan ring.AdapterState
}

// NewRadio opens the platform BLE device.
func NewRadio(id string) (*Radio, error) {
	device, err := newDevice(id)
	if err != nil {
		if IsAdapterError(err) {
			return nil, protocol.WrapError(protocol.KindRadioUnavailable, "bluetooth is unavailable", err)
		}
		return nil, fmt.Errorf("ble: failed to open device: %s", err)
	}
	return &Radio{
		device:      device,
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

// StartScan begins a discovery session, deduplicated per device address.
func (r *Radio) StartScan(ctx context.Context, onFound func(ring.DiscoveredRing), onTimeout func(found bool)) error {
	r.StopScan()

	scanCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	timeout := r.scanTimeout
	sess := radio.NewSession(timeout, onFound, func(found bool) {
		cancel()
		onTimeout(found)
	})
	r.session = sess
	r.scanCancel = cancel
	r.mu.Unlock()

	handler := func(a ble.Advertisement) {
		name := a.LocalName()
		if !radio.IsRingAdvertisement(name) {
			return
		}
		sess.Report(ring.DiscoveredRing{
			DeviceID:    a.Addr().String(),
			DisplayName: name,
			SignalBars:  ring.SignalBars(int16(a.RSSI())),
		})
	}

	errCh := make(chan error, 1)
	go func() {
		err := r.device.Scan(scanCtx, false, handler)
		if !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			if !sess.Done() {
				r.StopScan()
			}
		case <-scanCtx.Done():
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			sess.End()
			cancel()
			r.clearSession(sess)
			if IsAdapterError(err) || isAdapterOffError(err) {
				r.setAdapterOn(false)
				return protocol.WrapError(protocol.KindRadioUnavailable, "bluetooth is unavailable", err)
			}
			return protocol.WrapError(protocol.KindScanFailure, "could not start scanning", err)
		}
		return nil
	case <-time.After(scanStartGrace):
		r.setAdapterOn(true)
		return nil
	}
}

// StopScan ends the active session, if any, suppressing its timeout callback.
func (r *Radio) StopScan() {
	r.mu.Lock()
	sess := r.session
	cancel := r.scanCancel
	r.session = nil
	r.scanCancel = nil
	r.mu.Unlock()
	if sess != nil {
		sess.End()
	}
	if cancel != nil {
		cancel()
	}
}

func (r *Radio) clearSession(sess *radio.Session) {
	r.mu.Lock()
	if r.session == sess {
		r.session = nil
		r.scanCancel = nil
	}
	r.mu.Unlock()
}

// ConnectAndPair dials the selected ring, writes the biometric initialization frame, and reads
// back identity, firmware, and battery. The connection is cancelled on failure.
func (r *Radio) ConnectAndPair(ctx context.Context, target ring.DiscoveredRing, params ring.PairingParameters) (*ring.HandshakeResult, error) {
	r.Disconnect()

	client, err := r.device.Dial(ctx, ble.NewAddr(target.DeviceID))
	if err != nil {
		if isAdapterOffError(err) {
			r.setAdapterOn(false)
			return nil, protocol.WrapError(protocol.KindRadioUnavailable, "bluetooth is unavailable", err)
		}
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "could not connect to ring", err)
	}
	log.Debug("ble: connected to %s", target.DeviceID)

	result, err := r.handshake(client, target, params)
	if err != nil {
		if cerr := client.CancelConnection(); cerr != nil {
			log.Warning("ble: failed to disconnect after handshake failure: %s", cerr)
		}
		return nil, err
	}

	r.mu.Lock()
	r.client = client
	r.mu.Unlock()
	log.Info("ble: handshake with %s complete", result.DeviceID)
	return result, nil
}

func (r *Radio) handshake(client ble.Client, target ring.DiscoveredRing, params ring.PairingParameters) (*ring.HandshakeResult, error) {
	initChar, identityChar, err := r.ringCharacteristics(client)
	if err != nil {
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "ring did not offer the expected pairing service", err)
	}

	if err := client.WriteCharacteristic(initChar, radio.BiometricPayload(params), false); err != nil {
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "ring rejected pairing parameters", err)
	}

	identity, err := client.ReadCharacteristic(identityChar)
	if err != nil || len(identity) == 0 {
		return nil, protocol.WrapError(protocol.KindHandshakeFailure, "could not read ring identity", err)
	}

	result := &ring.HandshakeResult{
		DeviceID: strings.TrimSpace(string(identity)),
		Name:     target.DisplayName,
	}
	if result.DeviceID == "" {
		result.DeviceID = target.DeviceID
	}

	// Firmware and battery are best effort; the handshake stands without them.
	if char, err := r.findCharacteristic(client, deviceInformationUUID, firmwareRevisionUUID); err == nil {
		if buf, err := client.ReadCharacteristic(char); err == nil {
			result.FirmwareVersion = strings.TrimSpace(string(buf))
		}
	} else {
		log.Debug("ble: no device information service: %s", err)
	}
	if char, err := r.findCharacteristic(client, batteryServiceUUID, batteryLevelUUID); err == nil {
		if buf, err := client.ReadCharacteristic(char); err == nil {
			if level, err := radio.ParseBatteryLevel(buf); err == nil {
				result.BatteryLevel = &level
			}
		}
	} else {
		log.Debug("ble: no battery service: %s", err)
	}

	return result, nil
}

func (r *Radio) ringCharacteristics(client ble.Client) (initChar, identityChar *ble.Characteristic, err error) {
	services, err := client.DiscoverServices([]ble.UUID{ringServiceUUID})
	if err != nil {
		return nil, nil, fmt.Errorf("ble: failed to enumerate device services: %s", err)
	}
	if len(services) == 0 {
		return nil, nil, fmt.Errorf("ble: ring service not found")
	}
	characteristics, err := client.DiscoverCharacteristics([]ble.UUID{biometricInitUUID, ringIdentityUUID}, services[0])
	if err != nil {
		return nil, nil, fmt.Errorf("ble: failed to discover service characteristics: %s", err)
	}
	for _, characteristic := range characteristics {
		if characteristic.UUID.Equal(biometricInitUUID) {
			initChar = characteristic
		} else if characteristic.UUID.Equal(ringIdentityUUID) {
			identityChar = characteristic
		}
	}
	if initChar == nil || identityChar == nil {
		return nil, nil, fmt.Errorf("ble: ring service missing required characteristics")
	}
	return initChar, identityChar, nil
}

func (r *Radio) findCharacteristic(client ble.Client, service, char ble.UUID) (*ble.Characteristic, error) {
	services, err := client.DiscoverServices([]ble.UUID{service})
	if err != nil || len(services) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", service.String())
	}
	characteristics, err := client.DiscoverCharacteristics([]ble.UUID{char}, services[0])
	if err != nil || len(characteristics) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", char.String())
	}
	return characteristics[0], nil
}

// Disconnect drops the live hardware connection, if any.
func (r *Radio) Disconnect() {
	r.mu.Lock()
	client := r.client
	r.client = nil
	r.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.CancelConnection(); err != nil {
		log.Warning("ble: failed to disconnect: %s", err)
	}
}

// Close stops scanning, drops any connection, stops the device, and closes the adapter state
// stream.
func (r *Radio) Close() {
	r.StopScan()
	r.Disconnect()
	if err := r.device.Stop(); err != nil {
		log.Warning("ble: failed to stop device: %s", err)
	}
	close(r.states)
}
