package contract

import (
	"context"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/specification"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	UpdateDocuments(ctx context.Context, id uuid.UUID, documentIds []string, lastUpdated time.Time) error
	Touch(ctx context.Context, id uuid.UUID, lastUpdated time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error)
}
