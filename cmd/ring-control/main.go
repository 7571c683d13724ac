package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/lumiehealth/ring-command/internal/log"
	"github.com/lumiehealth/ring-command/pkg/account"
	"github.com/lumiehealth/ring-command/pkg/cli"
	"github.com/lumiehealth/ring-command/pkg/protocol"
	"github.com/lumiehealth/ring-command/pkg/ring"
)

var (
	config *cli.Config

	profileGender string
	profileAge    int
	profileHeight int
	profileWeight int
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usage = `
 * Commands that register or unregister a ring require an OAuth token.
 * Commands that talk to ring hardware require a Bluetooth adapter.
 * The pair command reads biometric parameters from -gender, -age, -height, and -weight.`

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] COMMAND [ARG...]\n", os.Args[0])
	fmt.Printf("\nRun %s help COMMAND for more information. Valid COMMANDs are listed below.", os.Args[0])
	fmt.Println("")
	fmt.Println(usage)
	fmt.Println("")

	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	var labels []string
	for command := range commands {
		labels = append(labels, command)
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	sort.Strings(labels)
	for _, command := range labels {
		info := commands[command]
		fmt.Printf("  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

func runCommand(acct *account.Account, orc *ring.Orchestrator, args []string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := execute(ctx, acct, orc, args); err != nil {
		if protocol.IsCancelled(err) {
			writeErr("Command superseded")
		} else if message := protocol.UserMessage(err); message != "" {
			writeErr("%s", message)
		} else {
			writeErr("Failed to execute command: %s", err)
		}
		return 1
	}
	return 0
}

func runInteractiveShell(acct *account.Account, orc *ring.Orchestrator, timeout time.Duration) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		runCommand(acct, orc, args, timeout)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

// commandNeedsRadio reports whether the Bluetooth stack must be initialized before running
// args. Keyring-only commands should work on machines without an adapter.
func commandNeedsRadio(args []string) bool {
	if len(args) == 0 {
		return true // interactive shell
	}
	info, ok := commands[args[0]]
	return !ok || info.requiresRadio
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	var (
		debug          bool
		commandTimeout time.Duration
	)
	var err error
	config, err = cli.NewConfig(cli.FlagAll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %s\n", err)
		os.Exit(1)
	}
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.DurationVar(&commandTimeout, "command-timeout", 90*time.Second, "Set timeout for commands.")
	flag.StringVar(&profileGender, "gender", "", "Wearer gender for the pairing handshake (female|male|other).")
	flag.IntVar(&profileAge, "age", 0, "Wearer age in years for the pairing handshake.")
	flag.IntVar(&profileHeight, "height", 0, "Wearer height in centimeters for the pairing handshake.")
	flag.IntVar(&profileWeight, "weight", 0, "Wearer weight in kilograms for the pairing handshake.")

	config.RegisterCommandLineFlags()
	flag.Parse()
	if !debug {
		if debugEnv, ok := os.LookupEnv("LUMIE_VERBOSE"); ok {
			debug = debugEnv != "false" && debugEnv != "0"
		}
	}
	if debug {
		log.SetLevel(log.LevelDebug)
	}
	config.ReadFromEnvironment()
	if err := config.LoadSettings(); err != nil {
		writeErr("Error loading settings: %s", err)
		return
	}

	args := flag.Args()
	if len(args) > 0 && args[0] == "help" {
		if len(args) == 1 {
			Usage()
			return
		}
		info, ok := commands[args[1]]
		if !ok {
			writeErr("Unrecognized command: %s", args[1])
			return
		}
		info.Usage(args[1])
		status = 0
		return
	}

	var acct *account.Account
	var orc *ring.Orchestrator
	if commandNeedsRadio(args) {
		orc, acct, err = config.Connect()
		if err != nil {
			writeErr("Error: %s", err)
			// Error isn't wrapped so we have to check for a substring explicitly.
			if strings.Contains(err.Error(), "operation not permitted") {
				// The underlying BLE package calls HCIDEVDOWN on the BLE device, presumably as
				// a heavy-handed way of dealing with devices that are in a bad state.
				writeErr("\nTry again after granting this application CAP_NET_ADMIN:\n\n\tsudo setcap 'cap_net_admin=eip' \"$(which %s)\"\n", os.Args[0])
			}
			return
		}
		defer orc.Close()
	} else {
		acct, err = config.Account("")
		if err != nil {
			writeErr("Error: %s", err)
			return
		}
	}

	if flag.NArg() > 0 {
		status = runCommand(acct, orc, flag.Args(), commandTimeout)
	} else {
		status = runInteractiveShell(acct, orc, commandTimeout)
	}
}
