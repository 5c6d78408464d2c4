package implementation

import (
	"context"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/mapper"
	"docchat-client/internal/model"
	"docchat-client/internal/repository/contract"
	"docchat-client/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatHistoryRepositoryImpl struct {
	db      *gorm.DB
	timeout time.Duration
	mapper  *mapper.ChatMapper
}

func NewChatHistoryRepository(db *gorm.DB, timeout time.Duration) contract.ChatHistoryRepository {
	return &ChatHistoryRepositoryImpl{
		db:      db,
		timeout: timeout,
		mapper:  mapper.NewChatMapper(),
	}
}

func (r *ChatHistoryRepositoryImpl) Create(ctx context.Context, message *entity.ChatMessage) error {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	m := r.mapper.ChatMessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return storeError("chat_history.insert", err)
	}
	*message = *r.mapper.ChatMessageToEntity(m)
	return nil
}

func (r *ChatHistoryRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	err := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.ChatHistory{}).Error
	return storeError("chat_history.delete", err)
}

func (r *ChatHistoryRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	var models []*model.ChatHistory
	query := specification.Chain(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, storeError("chat_history.select", err)
	}
	entities := make([]*entity.ChatMessage, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatMessageToEntity(m)
	}
	return entities, nil
}

func (r *ChatHistoryRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	var count int64
	query := specification.Chain(r.db.WithContext(ctx).Model(&model.ChatHistory{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, storeError("chat_history.count", err)
	}
	return count, nil
}
