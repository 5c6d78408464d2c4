package memory

import (
	"context"
	"errors"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/contract"
	"docchat-client/internal/repository/specification"
	"docchat-client/pkg/apperror"

	"github.com/google/uuid"
)

var errDuplicateKey = errors.New("duplicate key value violates unique constraint")

type ChatHistoryRepository struct {
	store *Store
}

func NewChatHistoryRepository(store *Store) contract.ChatHistoryRepository {
	return &ChatHistoryRepository{store: store}
}

func (r *ChatHistoryRepository) Create(ctx context.Context, message *entity.ChatMessage) error {
	if err := r.store.enter(ctx, "chat_history.insert"); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fault("chat_history.insert"); err != nil {
		return err
	}
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	for _, m := range r.store.messages {
		if m.Id == message.Id {
			return apperror.StoreUnavailable("chat_history.insert", errDuplicateKey)
		}
	}
	r.store.messages = append(r.store.messages, *message)
	return nil
}

func (r *ChatHistoryRepository) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	if err := r.store.enter(ctx, "chat_history.delete"); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fault("chat_history.delete"); err != nil {
		return err
	}
	kept := r.store.messages[:0:0]
	for _, m := range r.store.messages {
		if m.SessionId != sessionId {
			kept = append(kept, m)
		}
	}
	r.store.messages = kept
	return nil
}

func (r *ChatHistoryRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	f, err := compile(specs)
	if err != nil {
		return nil, err
	}

	if err := r.store.enter(ctx, "chat_history.select"); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if err := r.store.fault("chat_history.select"); err != nil {
		return nil, err
	}

	var rows []entity.ChatMessage
	for _, m := range r.store.messages {
		if f.message(m) {
			rows = append(rows, m)
		}
	}
	if err := orderRows(rows, f.orders, messageColumn); err != nil {
		return nil, err
	}

	out := make([]*entity.ChatMessage, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (r *ChatHistoryRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	rows, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}
