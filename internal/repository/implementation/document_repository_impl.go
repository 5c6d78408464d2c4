package implementation

import (
	"context"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/mapper"
	"docchat-client/internal/model"
	"docchat-client/internal/repository/contract"
	"docchat-client/internal/repository/specification"

	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db      *gorm.DB
	timeout time.Duration
	mapper  *mapper.ChatMapper
}

func NewDocumentRepository(db *gorm.DB, timeout time.Duration) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:      db,
		timeout: timeout,
		mapper:  mapper.NewChatMapper(),
	}
}

func (r *DocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	var models []*model.Document
	query := specification.Chain(r.db.WithContext(ctx).Select("id", "metadata"), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, storeError("documents.select", err)
	}
	entities := make([]*entity.Document, len(models))
	for i, m := range models {
		entities[i] = r.mapper.DocumentToEntity(m)
	}
	return entities, nil
}
