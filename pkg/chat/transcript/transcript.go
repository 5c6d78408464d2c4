package transcript

import (
	"docchat-client/internal/entity"

	"github.com/google/uuid"
)

// Status is the hydration state of a Transcript.
type Status int

const (
	NotHydrated Status = iota
	Hydrating
	Hydrated
)

func (s Status) String() string {
	switch s {
	case Hydrating:
		return "hydrating"
	case Hydrated:
		return "hydrated"
	default:
		return "not_hydrated"
	}
}

// Transcript is the in-memory message list of the active session. It only
// ever holds messages of SessionId.
type Transcript struct {
	SessionId uuid.UUID
	Status    Status
	messages  []entity.ChatMessage
}

func New(sessionId uuid.UUID) Transcript {
	return Transcript{SessionId: sessionId}
}

func (t *Transcript) BeginHydration() {
	t.Status = Hydrating
}

// AbortHydration returns to NotHydrated without touching messages.
func (t *Transcript) AbortHydration() {
	if t.Status == Hydrating {
		t.Status = NotHydrated
	}
}

// Replace swaps in the persisted history wholesale. Messages of other
// sessions are dropped.
func (t *Transcript) Replace(messages []entity.ChatMessage) {
	t.messages = make([]entity.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.SessionId == t.SessionId {
			t.messages = append(t.messages, m)
		}
	}
	t.Status = Hydrated
}

// Append adds a message of this session to a hydrated transcript. Anything
// else is ignored, since a later Replace would drop it.
func (t *Transcript) Append(m entity.ChatMessage) bool {
	if t.Status != Hydrated || m.SessionId != t.SessionId {
		return false
	}
	t.messages = append(t.messages, m)
	return true
}

// Last returns the newest message, if any.
func (t Transcript) Last() (entity.ChatMessage, bool) {
	if len(t.messages) == 0 {
		return entity.ChatMessage{}, false
	}
	return t.messages[len(t.messages)-1], true
}

func (t Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy.
func (t Transcript) Messages() []entity.ChatMessage {
	return append([]entity.ChatMessage(nil), t.messages...)
}

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	c := t
	c.messages = t.Messages()
	return c
}
