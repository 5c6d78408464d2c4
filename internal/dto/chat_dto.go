package dto

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessageView struct {
	Id        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionView struct {
	Id            uuid.UUID `json:"session_id"`
	Label         string    `json:"label"`
	Description   string    `json:"pdf_descriptions,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	LastUpdatedAt time.Time `json:"last_updated"`
	DocumentIds   []string  `json:"document_ids"`
	Active        bool      `json:"active"`
}

type TranscriptView struct {
	SessionId *uuid.UUID        `json:"session_id"`
	Status    string            `json:"status"` // "not_hydrated" | "hydrating" | "hydrated"
	Messages  []ChatMessageView `json:"messages"`
}

// WorkspaceSnapshot is the observable state pushed to the rendering layer.
type WorkspaceSnapshot struct {
	SignedIn        bool           `json:"signed_in"`
	Sessions        []SessionView  `json:"sessions"`
	ActiveSessionId *uuid.UUID     `json:"active_session_id"`
	Generation      uint64         `json:"generation"`
	Transcript      TranscriptView `json:"transcript"`
	PendingUpload   bool           `json:"pending_upload"`
	Sending         bool           `json:"sending"`
	LastError       *ErrorView     `json:"last_error"`
}

// ErrorView carries the kind of the last failure; renderers switch on Kind.
type ErrorView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type SignInRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type CreateSessionResponse struct {
	Session SessionView `json:"session"`
}

type UploadDocumentsResponse struct {
	DocumentIds []string `json:"documentIds"`
}
