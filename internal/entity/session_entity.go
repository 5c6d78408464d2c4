package entity

import (
	"time"

	"docchat-client/internal/constant"

	"github.com/google/uuid"
)

type Session struct {
	Id            uuid.UUID
	UserId        uuid.UUID
	StartedAt     time.Time
	LastUpdatedAt time.Time
	DocumentIds   []string

	// Description is derived from the attached documents' filenames, empty when unresolved.
	Description string
}

// Label is the human-readable name shown in a session list.
func (s Session) Label() string {
	if s.Description != "" {
		return s.Description
	}
	return s.StartedAt.Local().Format(constant.SessionLabelLayout)
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	c := s
	if s.DocumentIds != nil {
		c.DocumentIds = append([]string(nil), s.DocumentIds...)
	}
	return c
}
