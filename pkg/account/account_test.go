package account

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/lumiehealth/ring-command/pkg/protocol"
	"github.com/lumiehealth/ring-command/pkg/ring"
)

const testHost = "api.lumie.example.com"

func b64Encode(payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func makeToken(subject string, expiresAt time.Time) string {
	header := b64Encode(`{"alg":"HS256","typ":"JWT"}`)
	claims := b64Encode(fmt.Sprintf(`{"sub":"%s","exp":%d}`, subject, expiresAt.Unix()))
	return header + "." + claims + ".signature"
}

func testAccount(t *testing.T) *Account {
	t.Helper()
	acct, err := New(testHost, "unit-tests")
	if err != nil {
		t.Fatal(err)
	}
	if err := acct.SetToken(makeToken("user-123", time.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	return acct
}

func TestNewAccount(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Error("Returned success on empty host")
	}
	acct, err := New("https://"+testHost+"/", "")
	if err != nil {
		t.Fatal(err)
	}
	if acct.Host != testHost {
		t.Errorf("Host = %q", acct.Host)
	}
}

func TestSetToken(t *testing.T) {
	acct, err := New(testHost, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := acct.SetToken("not-a-jwt"); err == nil {
		t.Error("Accepted malformed token")
	}
	if err := acct.SetToken(makeToken("user-123", time.Now().Add(-time.Hour))); err == nil {
		t.Error("Accepted expired token")
	}
	if err := acct.SetToken(makeToken("user-123", time.Now().Add(time.Hour))); err != nil {
		t.Errorf("Rejected valid token: %s", err)
	}
	if !acct.Authenticated() {
		t.Error("Authenticated() false after SetToken")
	}
	if acct.Subject() != "user-123" {
		t.Errorf("Subject = %q", acct.Subject())
	}
	acct.ClearToken()
	if acct.Authenticated() {
		t.Error("Authenticated() true after ClearToken")
	}
}

func TestRequestsRequireToken(t *testing.T) {
	acct, err := New(testHost, "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = acct.PairRing(context.Background(), "C4:F3:12:09:AB:01", "Lumie Ring A1B2", "2.4.1")
	if protocol.GetKind(err) != protocol.KindRegistrationFailure {
		t.Errorf("expected registration failure, got %v", err)
	}
}

func TestPairRing(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	battery := 61
	httpmock.RegisterResponder(http.MethodPost, "https://"+testHost+"/ring/pair",
		func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got == "" {
				t.Error("missing Authorization header")
			}
			var body pairRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.RingDeviceID != "C4:F3:12:09:AB:01" || body.RingName != "Lumie Ring A1B2" || body.FirmwareVersion != "2.4.1" {
				t.Errorf("unexpected request body: %+v", body)
			}
			return httpmock.NewJsonResponse(http.StatusOK, ring.RingInfo{
				DeviceID:        body.RingDeviceID,
				Name:            body.RingName,
				FirmwareVersion: body.FirmwareVersion,
				BatteryLevel:    &battery,
				Status:          ring.StatusConnected,
			})
		})

	acct := testAccount(t)
	info, err := acct.PairRing(context.Background(), "C4:F3:12:09:AB:01", "Lumie Ring A1B2", "2.4.1")
	if err != nil {
		t.Fatal(err)
	}
	if info.DeviceID != "C4:F3:12:09:AB:01" || info.Status != ring.StatusConnected {
		t.Errorf("unexpected RingInfo: %+v", info)
	}
	if info.BatteryLevel == nil || *info.BatteryLevel != battery {
		t.Errorf("unexpected battery level: %+v", info.BatteryLevel)
	}
}

func TestPairRingBackfillsIdentity(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://"+testHost+"/ring/pair",
		httpmock.NewStringResponder(http.StatusOK, `{"connection_status": "connected"}`))

	acct := testAccount(t)
	info, err := acct.PairRing(context.Background(), "C4:F3:12:09:AB:01", "Lumie Ring A1B2", "")
	if err != nil {
		t.Fatal(err)
	}
	if info.DeviceID != "C4:F3:12:09:AB:01" || info.Name != "Lumie Ring A1B2" {
		t.Errorf("identity not backfilled: %+v", info)
	}
}

func TestPairRingConflict(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://"+testHost+"/ring/pair",
		httpmock.NewStringResponder(http.StatusConflict, `{"detail": "another ring is already paired to this account"}`))

	acct := testAccount(t)
	_, err := acct.PairRing(context.Background(), "C4:F3:12:09:AB:01", "Lumie Ring A1B2", "")
	if protocol.GetKind(err) != protocol.KindRegistrationFailure {
		t.Fatalf("expected registration failure, got %v", err)
	}
	if got := protocol.UserMessage(err); got != "another ring is already paired to this account" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestUnpairRing(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://"+testHost+"/ring/unpair",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	acct := testAccount(t)
	if err := acct.UnpairRing(context.Background()); err != nil {
		t.Errorf("UnpairRing failed: %s", err)
	}
}

func TestRingStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://"+testHost+"/ring/status",
		httpmock.NewStringResponder(http.StatusOK,
			`{"ring_device_id": "C4:F3:12:09:AB:01", "ring_name": "Lumie Ring A1B2", "connection_status": "disconnected"}`))

	acct := testAccount(t)
	info, err := acct.RingStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.DeviceID != "C4:F3:12:09:AB:01" || info.Status != ring.StatusDisconnected {
		t.Errorf("unexpected RingInfo: %+v", info)
	}
}

func TestServerMessage(t *testing.T) {
	if got := serverMessage([]byte(`{"detail": "no ring paired"}`)); got != "no ring paired" {
		t.Errorf("serverMessage = %q", got)
	}
	if got := serverMessage([]byte(`not json`)); got != "" {
		t.Errorf("serverMessage = %q on invalid JSON", got)
	}
}
