// Package account implements the Account Registration Client: it binds and unbinds ring device
// identities to the authenticated user account over the Lumie REST backend.
package account

import (
	"bytes"
	"context"
	_ "embed" // Used to embed version for use with user agent
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lumiehealth/ring-command/internal/log"
	"github.com/lumiehealth/ring-command/pkg/protocol"
	"github.com/lumiehealth/ring-command/pkg/ring"
)

var (
	//go:embed version.txt
	libraryVersion string
)

// MaxResponseLength caps backend response bodies to keep a misbehaving server from exhausting
// client memory.
const MaxResponseLength = 1 << 20

func buildUserAgent(app string) string {
	library := strings.TrimSpace("lumie-ring-sdk/" + libraryVersion)
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return library
	}
	path := strings.Split(build.Path, "/")
	if len(path) == 0 {
		return library
	}

	if app == "" {
		app = path[len(path)-1]
		var version string
		if build.Main.Version != "(devel)" && build.Main.Version != "" {
			version = build.Main.Version
		} else {
			for _, info := range build.Settings {
				if info.Key == "vcs.revision" {
					if len(info.Value) > 8 {
						version = info.Value[0:8]
					}
					break
				}
			}
		}

		if version != "" {
			app = fmt.Sprintf("%s/%s", app, version)
		}
	}

	return fmt.Sprintf("%s %s", app, library)
}

// Account talks to the Lumie backend on behalf of one signed-in user. A bearer token must be
// supplied with SetToken before issuing requests.
type Account struct {
	// The default UserAgent is constructed from build info, but can be overridden.
	UserAgent string
	Host      string

	mu         sync.Mutex
	authHeader string
	subject    string
	client     http.Client
}

// New returns an Account bound to the backend at host. Optional userAgent can be passed in,
// otherwise it is generated from build info.
func New(host, userAgent string) (*Account, error) {
	host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://"), "/")
	if host == "" {
		return nil, fmt.Errorf("account: no backend host provided")
	}
	return &Account{
		UserAgent: buildUserAgent(userAgent),
		Host:      host,
	}, nil
}

// SetToken installs the OAuth bearer token used to authenticate requests. The token's claims
// are parsed (without signature verification, which is the server's job) to reject expired
// tokens early and to record the account subject.
func (a *Account) SetToken(token string) error {
	token = strings.TrimSpace(token)
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("account: malformed OAuth token: %s", err)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
		return fmt.Errorf("account: OAuth token is expired")
	}
	subject, _ := claims.GetSubject()

	a.mu.Lock()
	a.authHeader = "Bearer " + token
	a.subject = subject
	a.mu.Unlock()
	return nil
}

// ClearToken forgets the bearer token. Subsequent requests fail until SetToken is called.
func (a *Account) ClearToken() {
	a.mu.Lock()
	a.authHeader = ""
	a.subject = ""
	a.mu.Unlock()
}

// Authenticated reports whether a bearer token is installed.
func (a *Account) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authHeader != ""
}

// Subject returns the account identifier from the installed token, if any.
func (a *Account) Subject() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subject
}

func (a *Account) send(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	a.mu.Lock()
	authHeader := a.authHeader
	a.mu.Unlock()
	if authHeader == "" {
		return protocol.NewError(protocol.KindRegistrationFailure, "not signed in")
	}

	url := fmt.Sprintf("https://%s/%s", a.Host, endpoint)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("account: error constructing request to %s: %w", endpoint, err)
	}
	log.Debug("Requesting %s %s...", method, url)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", a.UserAgent)
	request.Header.Set("Authorization", authHeader)

	response, err := a.client.Do(request)
	if err != nil {
		return protocol.WrapError(protocol.KindRegistrationFailure, "could not reach the Lumie service", err)
	}
	defer response.Body.Close()

	limited := io.LimitedReader{R: response.Body, N: MaxResponseLength}
	responseBody, err := io.ReadAll(&limited)
	if err != nil {
		return protocol.WrapError(protocol.KindRegistrationFailure, "error reading service response", err)
	}
	log.Debug("Received %s: %s", response.Status, responseBody)

	if response.StatusCode != http.StatusOK {
		message := serverMessage(responseBody)
		if message == "" {
			message = fmt.Sprintf("the Lumie service rejected the request (%s)", response.Status)
		}
		return protocol.NewError(protocol.KindRegistrationFailure, message)
	}
	if out != nil {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return protocol.WrapError(protocol.KindRegistrationFailure, "invalid service response", err)
		}
	}
	return nil
}

// serverMessage extracts the backend's human-readable error detail, if present.
func serverMessage(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

type pairRequest struct {
	RingDeviceID    string `json:"ring_device_id"`
	RingName        string `json:"ring_name"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// PairRing registers a ring device identity with the account and returns the backend's
// canonical RingInfo record. Exactly one ring may be bound per account; the backend rejects
// a second binding.
func (a *Account) PairRing(ctx context.Context, deviceID, name, firmwareVersion string) (ring.RingInfo, error) {
	payload, err := json.Marshal(&pairRequest{
		RingDeviceID:    deviceID,
		RingName:        name,
		FirmwareVersion: firmwareVersion,
	})
	if err != nil {
		return ring.RingInfo{}, err
	}
	var info ring.RingInfo
	if err := a.send(ctx, http.MethodPost, "ring/pair", payload, &info); err != nil {
		return ring.RingInfo{}, err
	}
	if info.DeviceID == "" {
		info.DeviceID = deviceID
	}
	if info.Name == "" {
		info.Name = name
	}
	return info, nil
}

// UnpairRing unbinds the account's ring on the backend.
func (a *Account) UnpairRing(ctx context.Context) error {
	return a.send(ctx, http.MethodPost, "ring/unpair", nil, nil)
}

// RingStatus fetches the backend's current view of the account's ring.
func (a *Account) RingStatus(ctx context.Context) (ring.RingInfo, error) {
	var info ring.RingInfo
	err := a.send(ctx, http.MethodGet, "ring/status", nil, &info)
	return info, err
}
