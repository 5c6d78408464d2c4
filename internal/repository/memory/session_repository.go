package memory

import (
	"context"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/contract"
	"docchat-client/internal/repository/specification"
	"docchat-client/pkg/apperror"

	"github.com/google/uuid"
)

type SessionRepository struct {
	store *Store
}

func NewSessionRepository(store *Store) contract.SessionRepository {
	return &SessionRepository{store: store}
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if err := r.store.enter(ctx, "sessions.insert"); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fault("sessions.insert"); err != nil {
		return err
	}
	if _, exists := r.store.sessions[session.Id]; exists {
		return apperror.StoreUnavailable("sessions.insert", errDuplicateKey)
	}
	row := session.Clone()
	row.Description = ""
	if row.DocumentIds == nil {
		row.DocumentIds = []string{}
	}
	r.store.sessions[row.Id] = row
	return nil
}

func (r *SessionRepository) UpdateDocuments(ctx context.Context, id uuid.UUID, documentIds []string, lastUpdated time.Time) error {
	if err := r.store.enter(ctx, "sessions.update"); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fault("sessions.update"); err != nil {
		return err
	}
	row, ok := r.store.sessions[id]
	if !ok {
		return nil
	}
	row.DocumentIds = append([]string{}, documentIds...)
	row.LastUpdatedAt = lastUpdated
	r.store.sessions[id] = row
	return nil
}

func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID, lastUpdated time.Time) error {
	if err := r.store.enter(ctx, "sessions.update"); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fault("sessions.update"); err != nil {
		return err
	}
	if row, ok := r.store.sessions[id]; ok {
		row.LastUpdatedAt = lastUpdated
		r.store.sessions[id] = row
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.enter(ctx, "sessions.delete"); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fault("sessions.delete"); err != nil {
		return err
	}
	delete(r.store.sessions, id)
	return nil
}

func (r *SessionRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error) {
	rows, err := r.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *SessionRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error) {
	f, err := compile(specs)
	if err != nil {
		return nil, err
	}

	if err := r.store.enter(ctx, "sessions.select"); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if err := r.store.fault("sessions.select"); err != nil {
		return nil, err
	}

	rows := make([]entity.Session, 0, len(r.store.sessions))
	for _, row := range r.store.sessions {
		if f.session(row) {
			rows = append(rows, row.Clone())
		}
	}
	if err := orderRows(rows, f.orders, sessionColumn); err != nil {
		return nil, err
	}

	out := make([]*entity.Session, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
