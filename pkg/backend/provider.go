package backend

import (
	"context"

	"github.com/google/uuid"
)

// File is one document handed to the upload endpoint.
type File struct {
	Name string
	Data []byte
}

// ChatBackend is the remote question-answering service. Implementations
// classify failures as apperror ReplyFailed (Answer) or UploadFailed
// (AttachDocuments).
type ChatBackend interface {
	Answer(ctx context.Context, sessionId uuid.UUID, text string) (string, error)
	AttachDocuments(ctx context.Context, sessionId uuid.UUID, files []File) ([]string, error)
}
