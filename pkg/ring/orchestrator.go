package ring

import (
	"context"
	"sync"
	"time"

	"github.com/lumiehealth/ring-command/internal/log"
	"github.com/lumiehealth/ring-command/pkg/protocol"
)

// State is the Orchestrator's position in the connection lifecycle. Idle and Error are
// transient and recoverable; Paired and Unpaired are the two stable rest states.
type State int

const (
	StateIdle State = iota
	StateCheckingBluetooth
	StateScanning
	StateConnecting
	StatePaired
	StateUnpaired
	StateError
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateCheckingBluetooth: "checkingBluetooth",
	StateScanning:          "scanning",
	StateConnecting:        "connecting",
	StatePaired:            "paired",
	StateUnpaired:          "unpaired",
	StateError:             "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "invalid"
}

// DefaultHandshakeTimeout bounds the hardware handshake step of ConnectAndPair. A stalled
// handshake would otherwise hold the Connecting state indefinitely.
const DefaultHandshakeTimeout = 30 * time.Second

// Snapshot is a consistent read-only view of the Orchestrator, published to observers after
// every observable mutation.
type Snapshot struct {
	State        State
	RingInfo     *RingInfo
	Discovered   []DiscoveredRing
	ErrorMessage string
	BluetoothOn  bool
	Paired       bool
	Version      uint64
}

// Orchestrator is the single logical owner of the ring connection. It composes the discovery
// scanner, the pairing handshake, the account registrar, and the durable local cache into one
// state machine.
//
// The Orchestrator is designed for single-threaded cooperative use from one caller: each
// command should be awaited to completion before the next is issued. The adapter-state
// subscription runs independently and may deliver updates at any time; such updates only
// refresh the cached Bluetooth flag and never alter lifecycle transitions.
type Orchestrator struct {
	scanner   Scanner
	pairer    Pairer
	registrar Registrar
	store     Store

	mu          sync.Mutex
	state       State
	info        *RingInfo
	discovered  []DiscoveredRing
	errMessage  string
	bluetoothOn bool
	version     uint64
	scanSeq     uint64
	pairing     bool

	handshakeTimeout time.Duration

	updates     chan struct{}
	stopAdapter chan struct{}
}

// NewOrchestrator assembles an Orchestrator from its four collaborators. Call Init before
// issuing commands and Close when discarding it.
func NewOrchestrator(scanner Scanner, pairer Pairer, registrar Registrar, store Store) *Orchestrator {
	return &Orchestrator{
		scanner:          scanner,
		pairer:           pairer,
		registrar:        registrar,
		store:            store,
		state:            StateIdle,
		handshakeTimeout: DefaultHandshakeTimeout,
		updates:          make(chan struct{}, 1),
	}
}

// SetHandshakeTimeout overrides the bound on the hardware handshake step of ConnectAndPair.
// Zero disables the bound.
func (o *Orchestrator) SetHandshakeTimeout(d time.Duration) {
	o.mu.Lock()
	o.handshakeTimeout = d
	o.mu.Unlock()
}

// Updates returns a coalescing notification channel that receives a tick after every
// observable mutation. Intended for a single consumer; read Snapshot after each tick.
func (o *Orchestrator) Updates() <-chan struct{} {
	return o.updates
}

// Snapshot returns a copy of the observable state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	var info *RingInfo
	if o.info != nil {
		c := *o.info
		info = &c
	}
	discovered := make([]DiscoveredRing, len(o.discovered))
	copy(discovered, o.discovered)
	return Snapshot{
		State:        o.state,
		RingInfo:     info,
		Discovered:   discovered,
		ErrorMessage: o.errMessage,
		BluetoothOn:  o.bluetoothOn,
		Paired:       o.info.IsPaired(),
		Version:      o.version,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// notify must be called without holding o.mu.
func (o *Orchestrator) notify() {
	o.mu.Lock()
	o.version++
	o.mu.Unlock()
	select {
	case o.updates <- struct{}{}:
	default:
	}
}

// Init loads the last-known ring from the durable cache and subscribes to adapter state for
// the lifetime of the Orchestrator. Idempotent: calling Init again discards the previous
// adapter subscription before creating a new one, so adapter updates are never duplicated.
func (o *Orchestrator) Init() error {
	info, err := o.store.RingInfo()
	if err != nil {
		log.Warning("ring: could not read cached ring info: %s", err)
	}

	o.mu.Lock()
	o.info = info
	if info.IsPaired() {
		o.state = StatePaired
	} else {
		o.state = StateUnpaired
	}
	o.bluetoothOn = o.scanner.AdapterOn()
	if o.stopAdapter != nil {
		close(o.stopAdapter)
	}
	stop := make(chan struct{})
	o.stopAdapter = stop
	o.mu.Unlock()

	go o.watchAdapter(stop)
	o.notify()
	return err
}

// watchAdapter mirrors adapter on/off transitions into the snapshot. It never touches the
// lifecycle state: aborting a scan when the radio turns off is the caller's decision.
func (o *Orchestrator) watchAdapter(stop <-chan struct{}) {
	states := o.scanner.AdapterStates()
	for {
		select {
		case <-stop:
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			o.mu.Lock()
			o.bluetoothOn = s == AdapterOn
			o.mu.Unlock()
			log.Debug("ring: adapter state now %s", s)
			o.notify()
		}
	}
}

// StartScan clears the prior discovered list and any error, then begins a time-boxed
// discovery session. Valid from any state. A scan already in progress is implicitly
// superseded. If the radio is off the Orchestrator enters the Error state with a
// RadioUnavailable message; calling StartScan again after enabling the radio recovers.
func (o *Orchestrator) StartScan(ctx context.Context) error {
	o.mu.Lock()
	o.scanSeq++
	seq := o.scanSeq
	o.discovered = nil
	o.errMessage = ""
	o.state = StateCheckingBluetooth
	o.mu.Unlock()
	o.notify()
	o.scanner.StopScan()

	if !o.scanner.AdapterOn() {
		o.mu.Lock()
		o.bluetoothOn = false
		o.errMessage = protocol.UserMessage(protocol.ErrRadioOff)
		o.state = StateError
		o.mu.Unlock()
		o.notify()
		return protocol.ErrRadioOff
	}

	onFound := func(d DiscoveredRing) {
		o.mu.Lock()
		if o.scanSeq != seq {
			o.mu.Unlock()
			return
		}
		for _, existing := range o.discovered {
			if existing.DeviceID == d.DeviceID {
				o.mu.Unlock()
				return
			}
		}
		o.discovered = append(o.discovered, d)
		o.mu.Unlock()
		log.Info("ring: discovered %s (%s)", d.DisplayName, d.DeviceID)
		o.notify()
	}
	onTimeout := func(found bool) {
		o.mu.Lock()
		if o.scanSeq != seq {
			o.mu.Unlock()
			return
		}
		// A timeout with results is not terminal; the caller decides when to stop.
		if !found {
			o.state = StateIdle
		}
		o.mu.Unlock()
		log.Debug("ring: scan session timed out (found=%t)", found)
		o.notify()
	}

	if err := o.scanner.StartScan(ctx, onFound, onTimeout); err != nil {
		err = protocol.WrapError(protocol.KindScanFailure, "could not start scanning for rings", err)
		o.mu.Lock()
		if o.scanSeq == seq {
			o.errMessage = protocol.UserMessage(err)
			o.state = StateIdle
		}
		o.mu.Unlock()
		o.notify()
		return err
	}

	o.mu.Lock()
	if o.scanSeq == seq {
		o.state = StateScanning
	}
	o.mu.Unlock()
	o.notify()
	return nil
}

// StopScan cancels the active discovery session. No-op when not scanning.
func (o *Orchestrator) StopScan() {
	o.scanner.StopScan()
	o.mu.Lock()
	o.scanSeq++
	changed := o.state == StateScanning || o.state == StateCheckingBluetooth
	if changed {
		o.state = StateIdle
	}
	o.mu.Unlock()
	if changed {
		o.notify()
	}
}

// ConnectAndPair runs the full pairing sequence against a ring selected from the discovered
// list: stop scanning, hardware handshake, account registration, then merge the backend's
// canonical record with the live battery level. At most one pairing attempt runs at a time.
//
// A nil return means the Orchestrator is Paired; any error means it reverted to Paired (when
// reconnecting a previously paired ring) or Unpaired.
func (o *Orchestrator) ConnectAndPair(ctx context.Context, target DiscoveredRing, params PairingParameters) error {
	o.mu.Lock()
	if o.pairing {
		o.mu.Unlock()
		return protocol.ErrCancelled
	}
	o.pairing = true
	prior := o.info
	o.errMessage = ""
	o.state = StateConnecting
	o.scanSeq++
	handshakeTimeout := o.handshakeTimeout
	o.mu.Unlock()
	o.notify()

	defer func() {
		o.mu.Lock()
		o.pairing = false
		o.mu.Unlock()
	}()

	o.scanner.StopScan()
	// The hardware connection handle is exclusively owned here; drop any stale session
	// before opening a new one.
	o.pairer.Disconnect()

	if err := params.Validate(); err != nil {
		return o.failPairing(prior, protocol.WrapError(protocol.KindHandshakeFailure, "invalid pairing parameters", err))
	}

	hctx := ctx
	if handshakeTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, handshakeTimeout)
		defer cancel()
	}
	result, err := o.pairer.ConnectAndPair(hctx, target, params)
	if err != nil {
		if protocol.GetKind(err) == protocol.KindUnknown {
			err = protocol.WrapError(protocol.KindHandshakeFailure, "could not connect to ring", err)
		}
		return o.failPairing(prior, err)
	}
	log.Info("ring: handshake complete with %s (firmware %s)", result.DeviceID, result.FirmwareVersion)

	canonical, err := o.registrar.PairRing(ctx, result.DeviceID, result.Name, result.FirmwareVersion)
	if err != nil {
		// The hardware pairing succeeded but the account binding did not; we must not
		// claim the Paired state.
		o.pairer.Disconnect()
		if protocol.GetKind(err) == protocol.KindUnknown {
			err = protocol.WrapError(protocol.KindRegistrationFailure, "could not register ring with your account", err)
		}
		return o.failPairing(prior, err)
	}

	canonical.BatteryLevel = result.BatteryLevel
	canonical.Status = StatusConnected
	if err := o.store.SetRingInfo(&canonical); err != nil {
		log.Warning("ring: could not persist ring info: %s", err)
	}

	o.mu.Lock()
	o.info = &canonical
	o.state = StatePaired
	o.mu.Unlock()
	o.notify()
	return nil
}

// failPairing reverts to the appropriate rest state after a failed pairing attempt and
// records the user-facing message. Cancellations revert silently.
func (o *Orchestrator) failPairing(prior *RingInfo, err error) error {
	o.mu.Lock()
	o.errMessage = protocol.UserMessage(err)
	if prior.IsPaired() {
		o.state = StatePaired
	} else {
		o.state = StateUnpaired
	}
	o.mu.Unlock()
	if !protocol.IsCancelled(err) {
		log.Warning("ring: pairing failed: %s", err)
	}
	o.notify()
	return err
}

// UnpairRing disconnects the hardware session, clears local and cached ring state, and asks
// the backend to unbind the device from the account. The local transition is authoritative:
// the Orchestrator is Unpaired even when the remote unbind fails, in which case the remote
// error is returned so the caller can retry that half.
func (o *Orchestrator) UnpairRing(ctx context.Context) error {
	o.scanner.StopScan()
	o.pairer.Disconnect()

	if err := o.store.SetRingInfo(nil); err != nil {
		log.Warning("ring: could not clear cached ring info: %s", err)
	}

	o.mu.Lock()
	o.scanSeq++
	o.info = nil
	o.discovered = nil
	o.errMessage = ""
	o.state = StateUnpaired
	o.mu.Unlock()
	o.notify()

	if err := o.registrar.UnpairRing(ctx); err != nil {
		if protocol.GetKind(err) == protocol.KindUnknown {
			err = protocol.WrapError(protocol.KindRegistrationFailure, "could not unregister ring from your account", err)
		}
		log.Warning("ring: remote unpair failed: %s", err)
		return err
	}
	return nil
}

// ClearOnLogout disconnects the hardware session and drops all subsystem-owned local state,
// including the ring prompt flag. For use when the authenticated account itself is being
// discarded; no backend call is made.
func (o *Orchestrator) ClearOnLogout() error {
	o.scanner.StopScan()
	o.pairer.Disconnect()

	err := o.store.Clear()
	if err != nil {
		log.Warning("ring: could not clear local ring state: %s", err)
	}

	o.mu.Lock()
	o.scanSeq++
	o.info = nil
	o.discovered = nil
	o.errMessage = ""
	o.state = StateUnpaired
	o.mu.Unlock()
	o.notify()
	return err
}

// ClearError clears the error message without changing state.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	cleared := o.errMessage != ""
	o.errMessage = ""
	o.mu.Unlock()
	if cleared {
		o.notify()
	}
}

// HasShownRingPrompt reports whether the pairing prompt has been shown this account session.
func (o *Orchestrator) HasShownRingPrompt() bool {
	shown, err := o.store.PromptShown()
	if err != nil {
		log.Warning("ring: could not read prompt flag: %s", err)
	}
	return shown
}

// MarkRingPromptShown records that the pairing prompt has been shown.
func (o *Orchestrator) MarkRingPromptShown() error {
	err := o.store.MarkPromptShown()
	if err == nil {
		o.notify()
	}
	return err
}

// Close tears down the adapter subscription, cancels any scan, and disconnects the hardware
// session. The Orchestrator must not be used after Close.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.stopAdapter != nil {
		close(o.stopAdapter)
		o.stopAdapter = nil
	}
	o.scanSeq++
	o.mu.Unlock()
	o.scanner.StopScan()
	o.pairer.Disconnect()
}
