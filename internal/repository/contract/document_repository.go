package contract

import (
	"context"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/specification"
)

// DocumentRepository is read-only; documents are written by the chat backend.
type DocumentRepository interface {
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
}
