package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumiehealth/ring-command/pkg/ring"
)

func testInfo() *ring.RingInfo {
	battery := 42
	return &ring.RingInfo{
		DeviceID:        "C4:F3:12:09:AB:01",
		Name:            "Lumie Ring A1B2",
		FirmwareVersion: "2.4.1",
		BatteryLevel:    &battery,
		Status:          ring.StatusConnected,
	}
}

func verifyInfo(t *testing.T, got *ring.RingInfo) {
	t.Helper()
	want := testInfo()
	if got == nil {
		t.Fatal("store did not contain a ring record")
	}
	good := got.DeviceID == want.DeviceID &&
		got.Name == want.Name &&
		got.FirmwareVersion == want.FirmwareVersion &&
		got.BatteryLevel != nil && *got.BatteryLevel == *want.BatteryLevel &&
		got.Status == want.Status
	if !good {
		t.Errorf("store contained invalid ring record: %+v", got)
	}
}

func TestImportExport(t *testing.T) {
	var buffer bytes.Buffer
	s := New("")
	if err := s.SetRingInfo(testInfo()); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkPromptShown(); err != nil {
		t.Fatal(err)
	}
	if err := s.Export(&buffer); err != nil {
		t.Fatal(err)
	}
	ss, err := Import(&buffer)
	if err != nil {
		t.Fatal(err)
	}
	info, err := ss.RingInfo()
	if err != nil {
		t.Fatal(err)
	}
	verifyInfo(t, info)
	shown, err := ss.PromptShown()
	if err != nil {
		t.Fatal(err)
	}
	if !shown {
		t.Error("prompt flag did not survive export")
	}
}

func TestImportInvalidJSON(t *testing.T) {
	buffer := bytes.NewBufferString("not json")
	if _, err := Import(buffer); err == nil {
		t.Error("Import accepted invalid JSON")
	}
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	info, err := s.RingInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info != nil {
		t.Errorf("expected empty store, got %+v", info)
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetRingInfo(testInfo()); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	info, err := reopened.RingInfo()
	if err != nil {
		t.Fatal(err)
	}
	verifyInfo(t, info)
}

func TestSetRingInfoCopies(t *testing.T) {
	s := New("")
	original := testInfo()
	if err := s.SetRingInfo(original); err != nil {
		t.Fatal(err)
	}
	original.DeviceID = "mutated"

	info, err := s.RingInfo()
	if err != nil {
		t.Fatal(err)
	}
	verifyInfo(t, info)

	info.Name = "mutated"
	again, err := s.RingInfo()
	if err != nil {
		t.Fatal(err)
	}
	verifyInfo(t, again)
}

func TestClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetRingInfo(testInfo()); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkPromptShown(); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("backing file survived Clear: %v", err)
	}
	info, err := s.RingInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info != nil {
		t.Errorf("ring record survived Clear: %+v", info)
	}
	shown, err := s.PromptShown()
	if err != nil {
		t.Fatal(err)
	}
	if shown {
		t.Error("prompt flag survived Clear")
	}
}

func TestSetNilClears(t *testing.T) {
	s := New("")
	if err := s.SetRingInfo(testInfo()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRingInfo(nil); err != nil {
		t.Fatal(err)
	}
	info, err := s.RingInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info != nil {
		t.Errorf("expected cleared store, got %+v", info)
	}
}
