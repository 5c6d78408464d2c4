// Package switcher owns the active-session pointer. Every activation bumps a
// generation counter; asynchronous work carries the Ticket it started under
// and may only mutate UI-facing state while that ticket is still current.
package switcher

import (
	"sync"

	"docchat-client/pkg/chat/transcript"

	"github.com/google/uuid"
)

type Ticket struct {
	Generation uint64
	SessionId  uuid.UUID
}

// Live is the state bound to the active session.
type Live struct {
	Transcript    transcript.Transcript
	PendingUpload bool
	// InFlight counts sends awaiting a reply.
	InFlight int
}

func (l Live) Sending() bool {
	return l.InFlight > 0
}

type Switch struct {
	mu         sync.Mutex
	generation uint64
	active     uuid.UUID
	hasActive  bool
	live       Live
	listeners  []func()
}

func New() *Switch {
	return &Switch{}
}

// OnChange registers fn to run after every accepted mutation. Listeners run
// outside the lock and must not block.
func (s *Switch) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Switch) notify() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Activate makes sessionId the active session and starts a new generation.
// Live state is reset; stale tickets can no longer write.
func (s *Switch) Activate(sessionId uuid.UUID) Ticket {
	s.mu.Lock()
	s.generation++
	s.active = sessionId
	s.hasActive = true
	s.live = Live{Transcript: transcript.New(sessionId)}
	t := Ticket{Generation: s.generation, SessionId: sessionId}
	s.mu.Unlock()

	s.notify()
	return t
}

// Deactivate clears the active session.
func (s *Switch) Deactivate() {
	s.mu.Lock()
	s.generation++
	s.active = uuid.Nil
	s.hasActive = false
	s.live = Live{}
	s.mu.Unlock()

	s.notify()
}

// DeactivateIf clears the active session only if it is sessionId.
func (s *Switch) DeactivateIf(sessionId uuid.UUID) bool {
	s.mu.Lock()
	if !s.hasActive || s.active != sessionId {
		s.mu.Unlock()
		return false
	}
	s.generation++
	s.active = uuid.Nil
	s.hasActive = false
	s.live = Live{}
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Switch) Current() (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasActive {
		return Ticket{Generation: s.generation}, false
	}
	return Ticket{Generation: s.generation, SessionId: s.active}, true
}

func (s *Switch) IsCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCurrent(t)
}

func (s *Switch) isCurrent(t Ticket) bool {
	return s.hasActive && t.Generation == s.generation && t.SessionId == s.active
}

// Apply runs fn against live state iff t is current, atomically with the
// check. It reports whether fn ran.
func (s *Switch) Apply(t Ticket, fn func(*Live)) bool {
	s.mu.Lock()
	if !s.isCurrent(t) {
		s.mu.Unlock()
		return false
	}
	fn(&s.live)
	s.mu.Unlock()

	s.notify()
	return true
}

// Read runs fn against live state iff t is current, without notifying.
func (s *Switch) Read(t Ticket, fn func(Live)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrent(t) {
		return false
	}
	fn(s.live)
	return true
}

// View returns a copy of live state with the ticket it belongs to.
func (s *Switch) View() (Ticket, Live, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.live
	live.Transcript = s.live.Transcript.Clone()
	return Ticket{Generation: s.generation, SessionId: s.active}, live, s.hasActive
}
