// Package cache persists the last-known ring record across process restarts. The cache is
// authoritative at startup; the backend becomes authoritative after any network mutation, at
// which point the orchestrator writes the refreshed record back here.
package cache

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/lumiehealth/ring-command/pkg/ring"
)

// Store holds one durable record per account session: the ring bound to the account and
// whether the pairing prompt has been shown. A Store with no backing file is memory-only.
type Store struct {
	Ring   *ring.RingInfo `json:"ring,omitempty"`
	Prompt bool           `json:"prompt_shown"`

	path string
	lock sync.Mutex
}

// New returns an empty Store that persists to path after every mutation. An empty path makes
// the Store memory-only.
func New(path string) *Store {
	return &Store{path: path}
}

// Open loads the Store persisted at path. A missing file yields an empty Store bound to path.
func Open(path string) (*Store, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(path), nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	store, err := Import(file)
	if err != nil {
		return nil, err
	}
	store.path = path
	return store, nil
}

// Import reads a Store previously written with Export.
func Import(r io.Reader) (*Store, error) {
	var store Store
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&store); err != nil {
		return nil, err
	}
	return &store, nil
}

// Export writes a serialized Store to w.
func (s *Store) Export(w io.Writer) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return json.NewEncoder(w).Encode(s)
}

// ExportToFile writes the Store to disk.
func (s *Store) ExportToFile(filename string) error {
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.Export(file)
}

// flush must be called with s.lock held.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}
	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(s)
}

// RingInfo returns a copy of the cached ring record, or nil if none is stored.
func (s *Store) RingInfo() (*ring.RingInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.Ring == nil {
		return nil, nil
	}
	info := *s.Ring
	return &info, nil
}

// SetRingInfo replaces the cached ring record. A nil info clears it.
func (s *Store) SetRingInfo(info *ring.RingInfo) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if info == nil {
		s.Ring = nil
	} else {
		copied := *info
		s.Ring = &copied
	}
	return s.flush()
}

// PromptShown reports whether the pairing prompt has been shown this account session.
func (s *Store) PromptShown() (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.Prompt, nil
}

// MarkPromptShown records that the pairing prompt has been shown.
func (s *Store) MarkPromptShown() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Prompt = true
	return s.flush()
}

// Clear drops the ring record and the prompt flag, and removes the backing file. Used on
// logout, when the account session's bookkeeping must not leak into the next session.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Ring = nil
	s.Prompt = false
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
