package ring_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/lumiehealth/ring-command/mocks"
	"github.com/lumiehealth/ring-command/pkg/protocol"
	"github.com/lumiehealth/ring-command/pkg/ring"
)

func intPtr(n int) *int { return &n }

var _ = Describe("Orchestrator", func() {
	var (
		ctrl      *gomock.Controller
		scanner   *mocks.MockScanner
		pairer    *mocks.MockPairer
		registrar *mocks.MockRegistrar
		store     *mocks.MockStore
		orc       *ring.Orchestrator

		adapterStates chan ring.AdapterState
		adapterOn     bool
		cachedInfo    *ring.RingInfo

		onFound   func(ring.DiscoveredRing)
		onTimeout func(bool)
	)

	validParams := ring.PairingParameters{GenderCode: 1, AgeYears: 34, HeightCm: 172, WeightKg: 68}
	target := ring.DiscoveredRing{DeviceID: "C4:F3:12:09:AB:01", DisplayName: "Lumie Ring A1B2", SignalBars: 3}

	expectScan := func() {
		scanner.EXPECT().StartScan(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, found func(ring.DiscoveredRing), timeout func(bool)) error {
				onFound = found
				onTimeout = timeout
				return nil
			})
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		scanner = mocks.NewMockScanner(ctrl)
		pairer = mocks.NewMockPairer(ctrl)
		registrar = mocks.NewMockRegistrar(ctrl)
		store = mocks.NewMockStore(ctrl)

		adapterOn = true
		cachedInfo = nil
		adapterStates = make(chan ring.AdapterState)
		scanner.EXPECT().AdapterOn().DoAndReturn(func() bool { return adapterOn }).AnyTimes()
		scanner.EXPECT().AdapterStates().Return((<-chan ring.AdapterState)(adapterStates)).AnyTimes()
		scanner.EXPECT().StopScan().AnyTimes()
		pairer.EXPECT().Disconnect().AnyTimes()
		store.EXPECT().RingInfo().DoAndReturn(func() (*ring.RingInfo, error) { return cachedInfo, nil }).AnyTimes()

		DeferCleanup(func() {
			orc.Close()
			ctrl.Finish()
		})
	})

	JustBeforeEach(func() {
		orc = ring.NewOrchestrator(scanner, pairer, registrar, store)
		Expect(orc.Init()).To(Succeed())
	})

	Describe("initialization", func() {
		It("starts unpaired with an empty cache", func() {
			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateUnpaired))
			Expect(snap.Paired).To(BeFalse())
			Expect(snap.RingInfo).To(BeNil())
			Expect(snap.BluetoothOn).To(BeTrue())
		})

		Context("with a cached ring", func() {
			BeforeEach(func() {
				cachedInfo = &ring.RingInfo{
					DeviceID: target.DeviceID,
					Name:     target.DisplayName,
					Status:   ring.StatusDisconnected,
				}
			})

			It("restores the paired state", func() {
				snap := orc.Snapshot()
				Expect(snap.State).To(Equal(ring.StatePaired))
				Expect(snap.Paired).To(BeTrue())
				Expect(snap.RingInfo.DeviceID).To(Equal(target.DeviceID))
			})
		})

		It("mirrors adapter transitions without changing lifecycle state", func() {
			adapterStates <- ring.AdapterOff
			Eventually(func() bool { return orc.Snapshot().BluetoothOn }).Should(BeFalse())
			Expect(orc.State()).To(Equal(ring.StateUnpaired))

			adapterStates <- ring.AdapterOn
			Eventually(func() bool { return orc.Snapshot().BluetoothOn }).Should(BeTrue())
		})
	})

	Describe("scanning", func() {
		It("reaches the scanning state and records discoveries", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			Expect(orc.State()).To(Equal(ring.StateScanning))

			onFound(target)
			snap := orc.Snapshot()
			Expect(snap.Discovered).To(ConsistOf(target))
		})

		It("deduplicates discoveries by device ID", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())

			onFound(target)
			onFound(ring.DiscoveredRing{DeviceID: target.DeviceID, DisplayName: target.DisplayName, SignalBars: 1})
			onFound(ring.DiscoveredRing{DeviceID: "C4:F3:12:09:AB:02", DisplayName: "Lumie Ring C3D4"})

			Expect(orc.Snapshot().Discovered).To(HaveLen(2))
		})

		It("fails fast when the radio is off and recovers on the next scan", func() {
			adapterOn = false
			err := orc.StartScan(context.Background())
			Expect(protocol.GetKind(err)).To(Equal(protocol.KindRadioUnavailable))

			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateError))
			Expect(snap.ErrorMessage).NotTo(BeEmpty())

			adapterOn = true
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			snap = orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateScanning))
			Expect(snap.ErrorMessage).To(BeEmpty())
		})

		It("surfaces backend scan failures and returns to idle", func() {
			scanner.EXPECT().StartScan(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("hci fault"))
			err := orc.StartScan(context.Background())
			Expect(protocol.GetKind(err)).To(Equal(protocol.KindScanFailure))

			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateIdle))
			Expect(snap.ErrorMessage).NotTo(BeEmpty())
		})

		It("ignores callbacks from a superseded scan session", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			staleFound := onFound
			staleTimeout := onTimeout

			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())

			staleFound(target)
			Expect(orc.Snapshot().Discovered).To(BeEmpty())

			staleTimeout(false)
			Expect(orc.State()).To(Equal(ring.StateScanning))
		})

		It("clears previous results when a new scan starts", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			onFound(target)

			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			Expect(orc.Snapshot().Discovered).To(BeEmpty())
		})

		It("returns to idle when the session expires with no results", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			onTimeout(false)
			Expect(orc.State()).To(Equal(ring.StateIdle))
		})

		It("keeps showing results when the session expires after discoveries", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			onFound(target)
			onTimeout(true)
			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateScanning))
			Expect(snap.Discovered).To(ConsistOf(target))
		})

		It("does not abort the scan when the adapter turns off mid-session", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())

			adapterStates <- ring.AdapterOff
			Eventually(func() bool { return orc.Snapshot().BluetoothOn }).Should(BeFalse())
			Expect(orc.State()).To(Equal(ring.StateScanning))
		})

		It("stops on request", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			orc.StopScan()
			Expect(orc.State()).To(Equal(ring.StateIdle))
		})
	})

	Describe("pairing", func() {
		handshake := &ring.HandshakeResult{
			DeviceID:        target.DeviceID,
			Name:            target.DisplayName,
			FirmwareVersion: "2.4.1",
			BatteryLevel:    intPtr(87),
		}

		It("registers the ring and lands in the paired state", func() {
			pairer.EXPECT().ConnectAndPair(gomock.Any(), target, validParams).Return(handshake, nil)
			registrar.EXPECT().PairRing(gomock.Any(), target.DeviceID, target.DisplayName, "2.4.1").
				Return(ring.RingInfo{
					DeviceID:        target.DeviceID,
					Name:            target.DisplayName,
					FirmwareVersion: "2.4.1",
					BatteryLevel:    intPtr(12), // stale backend reading
					Status:          ring.StatusDisconnected,
				}, nil)
			var persisted *ring.RingInfo
			store.EXPECT().SetRingInfo(gomock.Any()).DoAndReturn(func(info *ring.RingInfo) error {
				persisted = info
				return nil
			})

			Expect(orc.ConnectAndPair(context.Background(), target, validParams)).To(Succeed())

			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StatePaired))
			Expect(snap.Paired).To(BeTrue())
			Expect(snap.RingInfo.Status).To(Equal(ring.StatusConnected))
			// The live handshake reading wins over whatever the backend last saw.
			Expect(*snap.RingInfo.BatteryLevel).To(Equal(87))
			Expect(persisted).NotTo(BeNil())
			Expect(*persisted.BatteryLevel).To(Equal(87))
		})

		It("rejects invalid biometric parameters before touching the hardware", func() {
			err := orc.ConnectAndPair(context.Background(), target, ring.PairingParameters{})
			Expect(protocol.GetKind(err)).To(Equal(protocol.KindHandshakeFailure))
			Expect(orc.State()).To(Equal(ring.StateUnpaired))
		})

		It("reverts to unpaired when the handshake fails", func() {
			pairer.EXPECT().ConnectAndPair(gomock.Any(), target, validParams).
				Return(nil, errors.New("connection refused"))

			err := orc.ConnectAndPair(context.Background(), target, validParams)
			Expect(protocol.GetKind(err)).To(Equal(protocol.KindHandshakeFailure))

			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateUnpaired))
			Expect(snap.Paired).To(BeFalse())
			Expect(snap.ErrorMessage).NotTo(BeEmpty())
		})

		It("never claims paired when registration fails after the handshake", func() {
			pairer.EXPECT().ConnectAndPair(gomock.Any(), target, validParams).Return(handshake, nil)
			registrar.EXPECT().PairRing(gomock.Any(), target.DeviceID, target.DisplayName, "2.4.1").
				Return(ring.RingInfo{}, protocol.NewError(protocol.KindRegistrationFailure, "another ring is already paired"))

			err := orc.ConnectAndPair(context.Background(), target, validParams)
			Expect(protocol.GetKind(err)).To(Equal(protocol.KindRegistrationFailure))

			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateUnpaired))
			Expect(snap.Paired).To(BeFalse())
			Expect(snap.ErrorMessage).To(Equal("another ring is already paired"))
		})

		Context("with a previously paired ring", func() {
			BeforeEach(func() {
				cachedInfo = &ring.RingInfo{
					DeviceID: target.DeviceID,
					Name:     target.DisplayName,
					Status:   ring.StatusDisconnected,
				}
			})

			It("reverts to paired when a reconnect attempt fails", func() {
				pairer.EXPECT().ConnectAndPair(gomock.Any(), target, validParams).
					Return(nil, errors.New("connection refused"))

				Expect(orc.ConnectAndPair(context.Background(), target, validParams)).NotTo(Succeed())

				snap := orc.Snapshot()
				Expect(snap.State).To(Equal(ring.StatePaired))
				Expect(snap.Paired).To(BeTrue())
			})
		})

		It("refuses a second attempt while one is in flight", func() {
			release := make(chan struct{})
			pairer.EXPECT().ConnectAndPair(gomock.Any(), target, validParams).DoAndReturn(
				func(context.Context, ring.DiscoveredRing, ring.PairingParameters) (*ring.HandshakeResult, error) {
					<-release
					return nil, errors.New("connection refused")
				})

			done := make(chan error, 1)
			go func() {
				done <- orc.ConnectAndPair(context.Background(), target, validParams)
			}()
			Eventually(orc.State).Should(Equal(ring.StateConnecting))

			err := orc.ConnectAndPair(context.Background(), target, validParams)
			Expect(protocol.IsCancelled(err)).To(BeTrue())

			close(release)
			Eventually(done).Should(Receive(HaveOccurred()))
		})

		It("leaves the discovered list intact across a failed attempt", func() {
			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			onFound(target)

			pairer.EXPECT().ConnectAndPair(gomock.Any(), target, validParams).
				Return(nil, errors.New("connection refused"))
			Expect(orc.ConnectAndPair(context.Background(), target, validParams)).NotTo(Succeed())

			Expect(orc.Snapshot().Discovered).To(ConsistOf(target))
		})
	})

	Describe("unpairing", func() {
		BeforeEach(func() {
			cachedInfo = &ring.RingInfo{
				DeviceID: target.DeviceID,
				Name:     target.DisplayName,
				Status:   ring.StatusConnected,
			}
		})

		It("clears local state and unbinds the account", func() {
			store.EXPECT().SetRingInfo(nil).Return(nil)
			registrar.EXPECT().UnpairRing(gomock.Any()).Return(nil)

			Expect(orc.UnpairRing(context.Background())).To(Succeed())

			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateUnpaired))
			Expect(snap.Paired).To(BeFalse())
			Expect(snap.RingInfo).To(BeNil())
			Expect(snap.Discovered).To(BeEmpty())
		})

		It("stays unpaired locally when the account unbind fails", func() {
			store.EXPECT().SetRingInfo(nil).Return(nil)
			registrar.EXPECT().UnpairRing(gomock.Any()).Return(errors.New("service unavailable"))

			err := orc.UnpairRing(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(orc.State()).To(Equal(ring.StateUnpaired))
			Expect(orc.Snapshot().RingInfo).To(BeNil())
		})
	})

	Describe("logout", func() {
		BeforeEach(func() {
			cachedInfo = &ring.RingInfo{
				DeviceID: target.DeviceID,
				Name:     target.DisplayName,
				Status:   ring.StatusConnected,
			}
		})

		It("drops all local state without contacting the backend", func() {
			store.EXPECT().Clear().Return(nil)

			Expect(orc.ClearOnLogout()).To(Succeed())

			snap := orc.Snapshot()
			Expect(snap.State).To(Equal(ring.StateUnpaired))
			Expect(snap.RingInfo).To(BeNil())
		})
	})

	Describe("pairing prompt", func() {
		It("round-trips the prompt flag through the store", func() {
			gomock.InOrder(
				store.EXPECT().PromptShown().Return(false, nil),
				store.EXPECT().MarkPromptShown().Return(nil),
				store.EXPECT().PromptShown().Return(true, nil),
			)
			Expect(orc.HasShownRingPrompt()).To(BeFalse())
			Expect(orc.MarkRingPromptShown()).To(Succeed())
			Expect(orc.HasShownRingPrompt()).To(BeTrue())
		})
	})

	Describe("observation", func() {
		It("bumps the snapshot version and ticks the update channel on mutations", func() {
			before := orc.Snapshot().Version

			expectScan()
			Expect(orc.StartScan(context.Background())).To(Succeed())
			Eventually(orc.Updates()).Should(Receive())
			Expect(orc.Snapshot().Version).To(BeNumerically(">", before))
		})
	})
})
