/*
Package cli facilitates building command-line applications that manage a Lumie Ring. It defines
a [Config] type that registers common command-line flags (using the Golang flag package),
environment-variable equivalents, and an optional YAML settings file.

The package uses [keyring]'s platform-agnostic interface for storing the OAuth bearer token in
an OS-dependent credential store.

# Example

	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds command-line flags for the backend, token, etc.
	flag.Parse()
	config.ReadFromEnvironment() // Fills in missing fields using environment variables
	if err := config.LoadSettings(); err != nil {
		panic(err)
	}

	orchestrator, acct, err := config.Connect()
	if err != nil {
		panic(err)
	}
	defer orchestrator.Close()
*/
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"gopkg.in/yaml.v3"

	"github.com/lumiehealth/ring-command/internal/log"
	"github.com/lumiehealth/ring-command/pkg/account"
	"github.com/lumiehealth/ring-command/pkg/cache"
	"github.com/lumiehealth/ring-command/pkg/radio/goble"
	"github.com/lumiehealth/ring-command/pkg/radio/tinygo"
	"github.com/lumiehealth/ring-command/pkg/ring"
)

// Environment variable names used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvLumieHost         = "LUMIE_HOST"
	EnvLumieTokenName    = "LUMIE_TOKEN_NAME"
	EnvLumieTokenFile    = "LUMIE_TOKEN_FILE"
	EnvLumieCacheFile    = "LUMIE_RING_CACHE"
	EnvLumieSettingsFile = "LUMIE_SETTINGS_FILE"
	EnvLumieBLEBackend   = "LUMIE_BLE_BACKEND"
	EnvLumieAdapterID    = "LUMIE_ADAPTER_ID"
	EnvLumieKeyringType  = "LUMIE_KEYRING_TYPE"
	EnvLumieKeyringDebug = "LUMIE_KEYRING_DEBUG"
	EnvLumieKeyringPass  = "LUMIE_KEYRING_PASSWORD"
	EnvLumieKeyringPath  = "LUMIE_KEYRING_PATH"
)

// Flag controls what options should be scanned from the command line and/or environment
// variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagOAuth Flag = 1 // Enable OAuth token options.
	FlagBLE   Flag = 2 // Enable BLE backend options.
	FlagAll   Flag = FlagOAuth | FlagBLE
)

const defaultHost = "api.lumiehealth.com"

// ErrNoBackend indicates the configured BLE backend name was not recognized.
var ErrNoBackend = errors.New("unrecognized BLE backend")

// RadioDevice is the combined hardware surface a Config can construct: discovery plus pairing,
// with an explicit teardown.
type RadioDevice interface {
	ring.Scanner
	ring.Pairer
	SetScanTimeout(time.Duration)
	Close()
}

// Config fields determine how a client reaches the Bluetooth stack and the Lumie backend.
type Config struct {
	Flags            Flag   // Controls which set of environment variables/CLI flags to use.
	Host             string // Lumie backend host.
	KeyringTokenName string // Username for OAuth token in system keyring.
	TokenFilename    string
	CacheFilename    string // Durable ring cache location.
	SettingsFilename string // Optional YAML settings file.
	BLEBackend       string // "tinygo" or "goble".
	AdapterID        string // Bluetooth adapter ID; "" selects the platform default.
	ScanTimeout      time.Duration
	HandshakeTimeout time.Duration
	Backend          keyring.Config
	BackendType      backendType
	Debug            bool // Enable keyring debug messages.

	password   *string
	oauthToken string
}

// settings mirrors the YAML settings file schema.
type settings struct {
	Host               string `yaml:"host"`
	Backend            string `yaml:"backend"`
	AdapterID          string `yaml:"adapter_id"`
	ScanTimeoutSeconds int    `yaml:"scan_timeout_seconds"`
	CacheFile          string `yaml:"cache_file"`
	TokenName          string `yaml:"token_name"`
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags:            flags,
		Host:             defaultHost,
		BLEBackend:       "tinygo",
		ScanTimeout:      15 * time.Second,
		HandshakeTimeout: ring.DefaultHandshakeTimeout,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword
	return &c, nil
}

func (c *Config) RegisterCommandLineFlags() {
	flag.StringVar(&c.Host, "host", c.Host, "Lumie backend `host`. Defaults to $LUMIE_HOST.")
	flag.StringVar(&c.SettingsFilename, "settings-file", "", "YAML settings `file`. Defaults to $LUMIE_SETTINGS_FILE.")
	if c.Flags.isSet(FlagBLE) {
		flag.StringVar(&c.BLEBackend, "backend", c.BLEBackend, "BLE `backend` (tinygo|goble). Defaults to $LUMIE_BLE_BACKEND.")
		flag.StringVar(&c.AdapterID, "adapter", "", "Bluetooth adapter `ID`. Defaults to $LUMIE_ADAPTER_ID.")
		flag.DurationVar(&c.ScanTimeout, "scan-timeout", c.ScanTimeout, "Time bound of a discovery scan session.")
		flag.DurationVar(&c.HandshakeTimeout, "handshake-timeout", c.HandshakeTimeout, "Bound on the hardware pairing handshake. Zero disables the bound.")
		flag.StringVar(&c.CacheFilename, "ring-cache", "", "Durable ring cache `file`. Defaults to $LUMIE_RING_CACHE.")
	}
	if c.Flags.isSet(FlagOAuth) {
		flag.StringVar(&c.KeyringTokenName, "token-name", "", "System keyring `name` for OAuth token. Defaults to $LUMIE_TOKEN_NAME.")
		flag.StringVar(&c.TokenFilename, "token-file", "", "`File` containing OAuth token. Defaults to $LUMIE_TOKEN_FILE.")
		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		flag.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $LUMIE_KEYRING_TYPE.")
		flag.StringVar(&c.Backend.FileDir, "keyring-file-dir", keyringDirectory, "keyring `directory` for file-backed keyring types")
		flag.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	}
}

// ReadFromEnvironment populates c using environment variables. Values that are already
// populated are not overwritten, so call this after flag.Parse() to let explicit command-line
// parameters win.
func (c *Config) ReadFromEnvironment() {
	if c.Host == "" || c.Host == defaultHost {
		if host := os.Getenv(EnvLumieHost); host != "" {
			c.Host = host
			log.Debug("Set host to '%s'", c.Host)
		}
	}
	if c.SettingsFilename == "" {
		c.SettingsFilename = os.Getenv(EnvLumieSettingsFile)
	}
	if c.Flags.isSet(FlagBLE) {
		if backend := os.Getenv(EnvLumieBLEBackend); backend != "" && c.BLEBackend == "tinygo" {
			c.BLEBackend = backend
			log.Debug("Set BLE backend to '%s'", c.BLEBackend)
		}
		if c.AdapterID == "" {
			c.AdapterID = os.Getenv(EnvLumieAdapterID)
		}
		if c.CacheFilename == "" {
			c.CacheFilename = os.Getenv(EnvLumieCacheFile)
			log.Debug("Set ring cache file to '%s'", c.CacheFilename)
		}
	}
	if c.Flags.isSet(FlagOAuth) {
		if c.KeyringTokenName == "" && c.TokenFilename == "" {
			c.KeyringTokenName = os.Getenv(EnvLumieTokenName)
			log.Debug("Set OAuth token name to '%s'", c.KeyringTokenName)

			c.TokenFilename = os.Getenv(EnvLumieTokenFile)
			log.Debug("Set OAuth token file to '%s'", c.TokenFilename)
		}
		if pass := os.Getenv(EnvLumieKeyringPass); pass != "" {
			c.password = &pass
		}
		if path := os.Getenv(EnvLumieKeyringPath); path != "" {
			c.Backend.FileDir = path
		}
		if c.BackendType.String() == string(keyring.InvalidBackend) {
			if err := c.BackendType.Set(os.Getenv(EnvLumieKeyringType)); err != nil {
				log.Warning("Ignoring %s: %s", EnvLumieKeyringType, err)
			}
		}
		if !c.Debug {
			_, c.Debug = os.LookupEnv(EnvLumieKeyringDebug)
			log.Debug("Set keyring Debug Logging to '%v'", c.Debug)
		}
	}
}

// LoadSettings merges the YAML settings file into unset fields. Missing files are not an
// error when the filename came from a default.
func (c *Config) LoadSettings() error {
	if c.SettingsFilename == "" {
		return nil
	}
	data, err := os.ReadFile(c.SettingsFilename)
	if err != nil {
		return fmt.Errorf("could not read settings file: %w", err)
	}
	var s settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("could not parse settings file: %w", err)
	}
	if c.Host == defaultHost && s.Host != "" {
		c.Host = s.Host
	}
	if c.BLEBackend == "tinygo" && s.Backend != "" {
		c.BLEBackend = s.Backend
	}
	if c.AdapterID == "" {
		c.AdapterID = s.AdapterID
	}
	if s.ScanTimeoutSeconds > 0 {
		c.ScanTimeout = time.Duration(s.ScanTimeoutSeconds) * time.Second
	}
	if c.CacheFilename == "" {
		c.CacheFilename = s.CacheFile
	}
	if c.KeyringTokenName == "" {
		c.KeyringTokenName = s.TokenName
	}
	return nil
}

// token returns the OAuth token from the first available source: an explicit file, then the
// system keyring.
func (c *Config) token() (string, error) {
	if c.oauthToken != "" {
		return c.oauthToken, nil
	}
	if c.TokenFilename != "" {
		data, err := os.ReadFile(c.TokenFilename)
		if err != nil {
			return "", err
		}
		c.oauthToken = strings.TrimSpace(string(data))
		return c.oauthToken, nil
	}
	if c.KeyringTokenName != "" {
		token, err := c.LoadTokenFromKeyring()
		if err != nil {
			return "", err
		}
		c.oauthToken = token
		return c.oauthToken, nil
	}
	return "", errors.New("no OAuth token source configured")
}

// NewRadio constructs the configured BLE backend.
func (c *Config) NewRadio() (RadioDevice, error) {
	var device RadioDevice
	var err error
	switch c.BLEBackend {
	case "tinygo":
		device, err = tinygo.NewRadio(c.AdapterID)
	case "goble":
		device, err = goble.NewRadio(c.AdapterID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, c.BLEBackend)
	}
	if err != nil {
		return nil, err
	}
	if c.ScanTimeout > 0 {
		device.SetScanTimeout(c.ScanTimeout)
	}
	return device, nil
}

// Account constructs the backend client, installing the configured OAuth token when one is
// available. Commands that never touch the network may proceed without a token.
func (c *Config) Account(userAgent string) (*account.Account, error) {
	acct, err := account.New(c.Host, userAgent)
	if err != nil {
		return nil, err
	}
	if c.Flags.isSet(FlagOAuth) {
		token, err := c.token()
		if err != nil {
			log.Debug("No OAuth token available: %s", err)
			return acct, nil
		}
		if err := acct.SetToken(token); err != nil {
			return nil, err
		}
	}
	return acct, nil
}

// Connect assembles an initialized Orchestrator from the configured radio backend, backend
// account, and durable cache. The caller owns the returned Orchestrator and must Close it.
func (c *Config) Connect() (*ring.Orchestrator, *account.Account, error) {
	acct, err := c.Account("")
	if err != nil {
		return nil, nil, err
	}
	device, err := c.NewRadio()
	if err != nil {
		return nil, nil, err
	}
	var store *cache.Store
	if c.CacheFilename == "" {
		store = cache.New("")
	} else if store, err = cache.Open(c.CacheFilename); err != nil {
		device.Close()
		return nil, nil, fmt.Errorf("could not open ring cache: %w", err)
	}

	orchestrator := ring.NewOrchestrator(device, device, acct, store)
	orchestrator.SetHandshakeTimeout(c.HandshakeTimeout)
	if err := orchestrator.Init(); err != nil {
		log.Warning("Ring state loaded with warnings: %s", err)
	}
	return orchestrator, acct, nil
}
