package entity

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated user handle supplied by the auth collaborator.
type Identity struct {
	Id          uuid.UUID
	Email       string
	Metadata    map[string]interface{}
	AccessToken string
	ExpiresAt   time.Time
}
