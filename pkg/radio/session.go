package radio

import (
	"sync"
	"time"

	"github.com/lumiehealth/ring-command/pkg/ring"
)

// Session tracks one discovery scan: per-device deduplication and the exactly-once timeout
// callback. Both backends funnel raw advertisements through a Session so that dedup happens at
// the lowest layer even when the caller also guards against duplicates.
type Session struct {
	onFound   func(ring.DiscoveredRing)
	onTimeout func(found bool)

	mu    sync.Mutex
	seen  map[string]bool
	found bool
	done  bool
	timer *time.Timer
}

// NewSession starts a session whose timeout callback fires after bound unless End is called
// first. A zero bound uses DefaultScanTimeout.
func NewSession(bound time.Duration, onFound func(ring.DiscoveredRing), onTimeout func(found bool)) *Session {
	if bound <= 0 {
		bound = DefaultScanTimeout
	}
	s := &Session{
		onFound:   onFound,
		onTimeout: onTimeout,
		seen:      make(map[string]bool),
	}
	s.timer = time.AfterFunc(bound, s.expire)
	return s
}

// Report forwards a discovered ring to the session's consumer, at most once per device ID.
// Reports after End or after the timeout are dropped.
func (s *Session) Report(d ring.DiscoveredRing) {
	s.mu.Lock()
	if s.done || s.seen[d.DeviceID] {
		s.mu.Unlock()
		return
	}
	s.seen[d.DeviceID] = true
	s.found = true
	s.mu.Unlock()
	s.onFound(d)
}

func (s *Session) expire() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	found := s.found
	s.mu.Unlock()
	s.onTimeout(found)
}

// End stops the session and suppresses the timeout callback.
func (s *Session) End() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.timer.Stop()
}

// Done reports whether the session has ended or timed out.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
