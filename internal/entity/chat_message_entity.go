package entity

import (
	"time"

	"github.com/google/uuid"
)

// Role tags the author of a ChatMessage.
type Role string

const (
	RoleHuman     Role = "Human"
	RoleAssistant Role = "Assistant"
)

type ChatMessage struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	UserId    uuid.UUID
	Role      Role
	Text      string
	Timestamp time.Time
}

func (m ChatMessage) IsHuman() bool {
	return m.Role == RoleHuman
}
