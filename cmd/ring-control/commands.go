package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lumiehealth/ring-command/pkg/account"
	"github.com/lumiehealth/ring-command/pkg/ring"
)

var (
	ErrCommandLineArgs = errors.New("invalid command line arguments")
	ErrUnknownCommand  = errors.New("unrecognized command")
	ErrRequiresOAuth   = errors.New("command requires an OAuth token")
	ErrRequiresRadio   = errors.New("command requires a Bluetooth adapter")
)

type Argument struct {
	name string
	help string
}

type Handler func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error

type Command struct {
	help          string
	requiresOAuth bool // True if command talks to the Lumie backend
	requiresRadio bool // True if command uses the Bluetooth stack
	args          []Argument
	optional      []Argument
	handler       Handler
}

// genderCodes maps the user-facing spellings to the single-byte code the ring firmware expects.
var genderCodes = map[string]int{
	"FEMALE": 0,
	"F":      0,
	"MALE":   1,
	"M":      1,
	"OTHER":  2,
}

func getGenderCode(value string) (int, error) {
	if code, ok := genderCodes[strings.ToUpper(strings.TrimSpace(value))]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("unrecognized gender %q (use female, male, or other)", value)
}

// pairingParameters builds the biometric parameters for the hardware handshake from the
// -gender/-age/-height/-weight command line flags.
func pairingParameters() (ring.PairingParameters, error) {
	var params ring.PairingParameters
	code, err := getGenderCode(profileGender)
	if err != nil {
		return params, err
	}
	params.GenderCode = code
	params.AgeYears = profileAge
	params.HeightCm = profileHeight
	params.WeightKg = profileWeight
	return params, params.Validate()
}

func checkReadiness(commandName string, haveOAuth, haveRadio bool) (*Command, error) {
	info, ok := commands[commandName]
	if !ok {
		return nil, ErrUnknownCommand
	}
	if info.requiresOAuth && !haveOAuth {
		return nil, ErrRequiresOAuth
	}
	if info.requiresRadio && !haveRadio {
		return nil, ErrRequiresRadio
	}
	return info, nil
}

func execute(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args []string) error {
	if len(args) == 0 {
		return errors.New("missing COMMAND")
	}

	info, err := checkReadiness(args[0], acct != nil && acct.Authenticated(), orc != nil)
	if err != nil {
		return err
	}

	if len(args)-1 < len(info.args) || len(args)-1 > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(args), len(info.args), len(info.optional))
		err = ErrCommandLineArgs
	} else {
		keywords := make(map[string]string)
		for i, argInfo := range info.args {
			keywords[argInfo.name] = args[i+1]
		}
		index := len(info.args) + 1
		for _, argInfo := range info.optional {
			if index >= len(args) {
				break
			}
			keywords[argInfo.name] = args[index]
			index++
		}
		err = info.handler(ctx, acct, orc, keywords)
	}

	// Print command-specific help
	if errors.Is(err, ErrCommandLineArgs) {
		info.Usage(args[0])
	}
	return err
}

func (c *Command) Usage(name string) {
	fmt.Printf("Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" [")
	}
	for _, arg := range c.optional {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" ]")
	}
	fmt.Printf("\n%s\n", c.help)
	maxLength++
	for _, arg := range c.args {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
	for _, arg := range c.optional {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
}

// runScan drives one discovery session, streaming newly found rings to stdout. Returns the
// final discovered list.
func runScan(ctx context.Context, orc *ring.Orchestrator) ([]ring.DiscoveredRing, error) {
	if err := orc.StartScan(ctx); err != nil {
		return nil, err
	}
	defer orc.StopScan()

	updates := orc.Updates()
	deadline := time.After(config.ScanTimeout + time.Second)
	printed := 0
	for {
		snap := orc.Snapshot()
		for _, found := range snap.Discovered[printed:] {
			fmt.Printf("  %-24s %-18s signal %s\n", found.DisplayName, found.DeviceID, strings.Repeat("▂", found.SignalBars))
		}
		printed = len(snap.Discovered)
		if snap.State == ring.StateError {
			return snap.Discovered, errors.New(snap.ErrorMessage)
		}
		if snap.State != ring.StateScanning && snap.State != ring.StateCheckingBluetooth {
			return snap.Discovered, nil
		}
		select {
		case <-ctx.Done():
			return snap.Discovered, ctx.Err()
		case <-deadline:
			return snap.Discovered, nil
		case <-updates:
		}
	}
}

// selectRing scans until a ring matching deviceID appears. An empty deviceID selects the
// first ring discovered.
func selectRing(ctx context.Context, orc *ring.Orchestrator, deviceID string) (ring.DiscoveredRing, error) {
	if err := orc.StartScan(ctx); err != nil {
		return ring.DiscoveredRing{}, err
	}
	defer orc.StopScan()

	updates := orc.Updates()
	deadline := time.After(config.ScanTimeout + time.Second)
	for {
		snap := orc.Snapshot()
		for _, found := range snap.Discovered {
			if deviceID == "" || strings.EqualFold(found.DeviceID, deviceID) {
				return found, nil
			}
		}
		if snap.State == ring.StateError {
			return ring.DiscoveredRing{}, errors.New(snap.ErrorMessage)
		}
		if snap.State != ring.StateScanning && snap.State != ring.StateCheckingBluetooth {
			return ring.DiscoveredRing{}, fmt.Errorf("no ring found")
		}
		select {
		case <-ctx.Done():
			return ring.DiscoveredRing{}, ctx.Err()
		case <-deadline:
			if deviceID == "" {
				return ring.DiscoveredRing{}, fmt.Errorf("no ring found")
			}
			return ring.DiscoveredRing{}, fmt.Errorf("ring %s not found", deviceID)
		case <-updates:
		}
	}
}

func printRingInfo(info *ring.RingInfo) {
	if info == nil {
		fmt.Println("No ring paired.")
		return
	}
	fmt.Printf("Ring:     %s\n", info.Name)
	fmt.Printf("Device:   %s\n", info.DeviceID)
	fmt.Printf("Status:   %s\n", info.Status)
	if info.FirmwareVersion != "" {
		fmt.Printf("Firmware: %s\n", info.FirmwareVersion)
	}
	if info.BatteryLevel != nil {
		fmt.Printf("Battery:  %d%%\n", *info.BatteryLevel)
	}
}

var commands = map[string]*Command{
	"scan": &Command{
		help:          "Scan for nearby rings",
		requiresRadio: true,
		handler: func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error {
			fmt.Println("Scanning...")
			discovered, err := runScan(ctx, orc)
			if err != nil {
				return err
			}
			if len(discovered) == 0 {
				fmt.Println("No rings found.")
			}
			return nil
		},
	},
	"pair": &Command{
		help:          "Pair a ring and register it with your account",
		requiresOAuth: true,
		requiresRadio: true,
		optional: []Argument{
			Argument{name: "RING_ID", help: "Device ID of the ring to pair. Omit to pair the first ring found."},
		},
		handler: func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error {
			params, err := pairingParameters()
			if err != nil {
				return fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
			}
			target, err := selectRing(ctx, orc, args["RING_ID"])
			if err != nil {
				return err
			}
			fmt.Printf("Pairing with %s (%s)...\n", target.DisplayName, target.DeviceID)
			if err := orc.ConnectAndPair(ctx, target, params); err != nil {
				return err
			}
			printRingInfo(orc.Snapshot().RingInfo)
			return nil
		},
	},
	"unpair": &Command{
		help:          "Unbind the paired ring from your account and forget it locally",
		requiresOAuth: true,
		requiresRadio: true,
		handler: func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error {
			if err := orc.UnpairRing(ctx); err != nil {
				return fmt.Errorf("ring forgotten locally, but the account unbind failed: %w", err)
			}
			fmt.Println("Ring unpaired.")
			return nil
		},
	},
	"status": &Command{
		help:          "Show the local view of the paired ring",
		requiresRadio: true,
		handler: func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error {
			snap := orc.Snapshot()
			fmt.Printf("State:     %s\n", snap.State)
			fmt.Printf("Bluetooth: %t\n", snap.BluetoothOn)
			if snap.ErrorMessage != "" {
				fmt.Printf("Error:     %s\n", snap.ErrorMessage)
			}
			printRingInfo(snap.RingInfo)
			return nil
		},
	},
	"remote-status": &Command{
		help:          "Fetch the backend's view of your account's ring",
		requiresOAuth: true,
		handler: func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error {
			info, err := acct.RingStatus(ctx)
			if err != nil {
				return err
			}
			printRingInfo(&info)
			return nil
		},
	},
	"forget": &Command{
		help:          "Drop local ring state without contacting the backend",
		requiresRadio: true,
		handler: func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error {
			if err := orc.ClearOnLogout(); err != nil {
				return err
			}
			fmt.Println("Local ring state cleared.")
			return nil
		},
	},
	"token-set": &Command{
		help: "Store an OAuth token in the system keyring",
		args: []Argument{
			Argument{name: "TOKEN_FILE", help: "File containing the OAuth token."},
		},
		handler: func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error {
			if config.KeyringTokenName == "" {
				return errors.New("set -token-name to identify the token in the keyring")
			}
			data, err := os.ReadFile(args["TOKEN_FILE"])
			if err != nil {
				return err
			}
			return config.SaveTokenToKeyring(strings.TrimSpace(string(data)))
		},
	},
	"token-drop": &Command{
		help: "Remove an OAuth token from the system keyring",
		handler: func(ctx context.Context, acct *account.Account, orc *ring.Orchestrator, args map[string]string) error {
			if config.KeyringTokenName == "" {
				return errors.New("set -token-name to identify the token in the keyring")
			}
			return config.DeleteTokenFromKeyring()
		},
	},
}
