package implementation

import (
	"context"
	"errors"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/mapper"
	"docchat-client/internal/model"
	"docchat-client/internal/repository/contract"
	"docchat-client/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionRepositoryImpl struct {
	db      *gorm.DB
	timeout time.Duration
	mapper  *mapper.ChatMapper
}

func NewSessionRepository(db *gorm.DB, timeout time.Duration) contract.SessionRepository {
	return &SessionRepositoryImpl{
		db:      db,
		timeout: timeout,
		mapper:  mapper.NewChatMapper(),
	}
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *entity.Session) error {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return storeError("sessions.insert", err)
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *SessionRepositoryImpl) UpdateDocuments(ctx context.Context, id uuid.UUID, documentIds []string, lastUpdated time.Time) error {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	ids := make(datatypes.JSONSlice[string], len(documentIds))
	copy(ids, documentIds)

	// Single UPDATE so the id set and timestamp land together.
	err := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", id).
		Updates(map[string]interface{}{
			"document_ids": ids,
			"last_updated": lastUpdated,
		}).Error
	return storeError("sessions.update", err)
}

func (r *SessionRepositoryImpl) Touch(ctx context.Context, id uuid.UUID, lastUpdated time.Time) error {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	err := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", id).
		Update("last_updated", lastUpdated).Error
	return storeError("sessions.update", err)
}

func (r *SessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	err := r.db.WithContext(ctx).Where("session_id = ?", id).Delete(&model.Session{}).Error
	return storeError("sessions.delete", err)
}

func (r *SessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error) {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	var m model.Session
	query := specification.Chain(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("sessions.select", err)
	}
	return r.mapper.SessionToEntity(&m), nil
}

func (r *SessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error) {
	ctx, cancel := bound(ctx, r.timeout)
	defer cancel()

	var models []*model.Session
	query := specification.Chain(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, storeError("sessions.select", err)
	}
	entities := make([]*entity.Session, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SessionToEntity(m)
	}
	return entities, nil
}
