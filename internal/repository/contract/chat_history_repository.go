package contract

import (
	"context"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatHistoryRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) error
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
