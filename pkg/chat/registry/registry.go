// Package registry keeps the signed-in identity's session list in step with
// the remote store.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/pkg/logger"
	"docchat-client/internal/repository/specification"
	"docchat-client/internal/repository/unitofwork"
	"docchat-client/pkg/apperror"
	"docchat-client/pkg/chat/switcher"

	"github.com/google/uuid"
)

const module = "SessionRegistry"

type Registry struct {
	uowFactory unitofwork.RepositoryFactory
	describer  *Describer
	sw         *switcher.Switch
	logger     logger.ILogger
	now        func() time.Time

	mu       sync.RWMutex
	epoch    uint64
	owner    uuid.UUID
	sessions []entity.Session
}

func New(uowFactory unitofwork.RepositoryFactory, describer *Describer, sw *switcher.Switch, log logger.ILogger) *Registry {
	return &Registry{
		uowFactory: uowFactory,
		describer:  describer,
		sw:         sw,
		logger:     log,
		now:        time.Now,
	}
}

// SetClock replaces time.Now; tests use it.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// classify leaves already classified errors alone and marks the rest as
// store failures.
func classify(op string, err error) error {
	if _, ok := apperror.KindOf(err); ok {
		return err
	}
	return apperror.StoreUnavailable(op, err)
}

// List loads every session of identity, newest first, and merges it into the
// in-memory list. A Reset while loading discards the result.
func (r *Registry) List(ctx context.Context, identity entity.Identity) ([]entity.Session, error) {
	const op = "SessionRegistry.List"

	r.mu.RLock()
	epoch := r.epoch
	known := make(map[uuid.UUID]time.Time, len(r.sessions))
	if r.owner == identity.Id {
		for _, s := range r.sessions {
			known[s.Id] = s.LastUpdatedAt
		}
	}
	r.mu.RUnlock()

	uow := r.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.SessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: identity.Id},
		specification.OrderBy{Field: "started_at", Desc: true},
	)
	if err != nil {
		r.logger.Error(module, "Failed to list sessions", map[string]interface{}{
			"user_id": identity.Id,
			"error":   err.Error(),
		})
		return nil, classify(op, err)
	}

	sessions := make([]entity.Session, 0, len(rows))
	for _, row := range rows {
		s := row.Clone()
		s.Description = r.describer.Describe(ctx, s)
		sessions = append(sessions, s)
	}

	r.mu.Lock()
	if r.epoch == epoch {
		var current []entity.Session
		if r.owner == identity.Id {
			current = r.sessions
		}
		r.owner = identity.Id
		r.sessions = merge(sessions, current, known)
		sessions = cloneAll(r.sessions)
	}
	r.mu.Unlock()

	r.logger.Info(module, "Sessions loaded", map[string]interface{}{
		"user_id": identity.Id,
		"count":   len(sessions),
	})
	return sessions, nil
}

// Create persists a new empty session and prepends it to the list.
func (r *Registry) Create(ctx context.Context, identity entity.Identity) (entity.Session, error) {
	const op = "SessionRegistry.Create"

	now := r.now()
	s := entity.Session{
		Id:            uuid.New(),
		UserId:        identity.Id,
		StartedAt:     now,
		LastUpdatedAt: now,
		DocumentIds:   []string{},
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SessionRepository().Create(ctx, &s); err != nil {
		r.logger.Error(module, "Failed to create session", map[string]interface{}{
			"user_id": identity.Id,
			"error":   err.Error(),
		})
		return entity.Session{}, classify(op, err)
	}

	r.mu.Lock()
	if r.owner == identity.Id || r.owner == uuid.Nil {
		r.owner = identity.Id
		r.sessions = append([]entity.Session{s.Clone()}, r.sessions...)
	}
	r.mu.Unlock()

	r.logger.Info(module, "Session created", map[string]interface{}{
		"session_id": s.Id,
		"user_id":    identity.Id,
	})
	return s.Clone(), nil
}

// Delete removes the session and its history in one transaction, drops it
// from the list and clears the active pointer if it pointed at it. Deleting
// an unknown id succeeds.
func (r *Registry) Delete(ctx context.Context, sessionId uuid.UUID) error {
	const op = "SessionRegistry.Delete"

	uow := r.uowFactory.NewUnitOfWork(ctx)
	if _, listed := r.Lookup(sessionId); !listed {
		row, err := uow.SessionRepository().FindOne(ctx, specification.BySessionID{SessionID: sessionId})
		if err != nil {
			return classify(op, err)
		}
		if row != nil && row.UserId != r.Owner() {
			return apperror.Validation(op, apperror.ErrSessionNotFound)
		}
	}

	err := unitofwork.Atomically(ctx, r.uowFactory, func(tx unitofwork.UnitOfWork) error {
		if err := tx.ChatHistoryRepository().DeleteBySessionId(ctx, sessionId); err != nil {
			return err
		}
		return tx.SessionRepository().Delete(ctx, sessionId)
	})
	if err != nil {
		r.logDeleteFailure(sessionId, err)
		return classify(op, err)
	}

	var removed *entity.Session
	r.mu.Lock()
	for i, s := range r.sessions {
		if s.Id == sessionId {
			c := s.Clone()
			removed = &c
			r.sessions = append(r.sessions[:i:i], r.sessions[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if removed != nil {
		r.describer.Forget(ctx, *removed)
	}
	cleared := r.sw.DeactivateIf(sessionId)

	r.logger.Info(module, "Session deleted", map[string]interface{}{
		"session_id":     sessionId,
		"cleared_active": cleared,
	})
	return nil
}

func (r *Registry) logDeleteFailure(sessionId uuid.UUID, err error) {
	r.logger.Error(module, "Failed to delete session", map[string]interface{}{
		"session_id": sessionId,
		"error":      err.Error(),
	})
}

// UpdateDocuments replaces the document id set and last-updated time in one
// store update, then refreshes the in-memory row.
func (r *Registry) UpdateDocuments(ctx context.Context, sessionId uuid.UUID, documentIds []string) (entity.Session, error) {
	const op = "SessionRegistry.UpdateDocuments"

	now := r.now()
	ids := append([]string{}, documentIds...)

	uow := r.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SessionRepository().UpdateDocuments(ctx, sessionId, ids, now); err != nil {
		r.logger.Error(module, "Failed to attach documents", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return entity.Session{}, classify(op, err)
	}

	s, ok := r.Lookup(sessionId)
	if !ok {
		row, err := uow.SessionRepository().FindOne(ctx, specification.BySessionID{SessionID: sessionId})
		if err != nil {
			return entity.Session{}, classify(op, err)
		}
		if row == nil {
			return entity.Session{}, apperror.Validation(op, apperror.ErrSessionNotFound)
		}
		s = row.Clone()
	}
	s.DocumentIds = ids
	s.LastUpdatedAt = now
	s.Description = r.describer.Describe(ctx, s)

	r.replace(s)
	return s.Clone(), nil
}

// Touch bumps last_updated.
func (r *Registry) Touch(ctx context.Context, sessionId uuid.UUID) error {
	const op = "SessionRegistry.Touch"

	now := r.now()
	uow := r.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SessionRepository().Touch(ctx, sessionId, now); err != nil {
		return classify(op, err)
	}

	if s, ok := r.Lookup(sessionId); ok {
		s.LastUpdatedAt = now
		r.replace(s)
	}
	return nil
}

func (r *Registry) replace(s entity.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sessions {
		if r.sessions[i].Id == s.Id {
			r.sessions[i] = s.Clone()
			return
		}
	}
}

// Lookup finds a session in the in-memory list.
func (r *Registry) Lookup(sessionId uuid.UUID) (entity.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Id == sessionId {
			return s.Clone(), true
		}
	}
	return entity.Session{}, false
}

// Get returns the listed session, falling back to the store.
func (r *Registry) Get(ctx context.Context, sessionId uuid.UUID) (entity.Session, error) {
	const op = "SessionRegistry.Get"

	if s, ok := r.Lookup(sessionId); ok {
		return s, nil
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	row, err := uow.SessionRepository().FindOne(ctx, specification.BySessionID{SessionID: sessionId})
	if err != nil {
		return entity.Session{}, classify(op, err)
	}
	if row == nil {
		return entity.Session{}, apperror.Validation(op, apperror.ErrSessionNotFound)
	}

	if row.UserId != r.Owner() {
		return entity.Session{}, apperror.Validation(op, apperror.ErrSessionNotFound)
	}

	s := row.Clone()
	s.Description = r.describer.Describe(ctx, s)
	r.adopt(s)
	return s.Clone(), nil
}

// adopt inserts an owned session missing from the list at its newest-first
// position, so later Lookups see it.
func (r *Registry) adopt(s entity.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.UserId != r.owner {
		return
	}
	at := len(r.sessions)
	for i := range r.sessions {
		if r.sessions[i].Id == s.Id {
			return
		}
		if at == len(r.sessions) && s.StartedAt.After(r.sessions[i].StartedAt) {
			at = i
		}
	}
	r.sessions = append(r.sessions, entity.Session{})
	copy(r.sessions[at+1:], r.sessions[at:])
	r.sessions[at] = s.Clone()
}

func (r *Registry) Owner() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// Sessions returns a copy of the in-memory list.
func (r *Registry) Sessions() []entity.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.sessions)
}

// Reset forgets the list and its owner; in-flight List calls are discarded.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.owner = uuid.Nil
	r.sessions = nil
}

// merge combines a fresh load with what changed in memory while it ran.
// known maps the ids listed when the load began to their last update: a known
// id missing from memory was deleted meanwhile, an unknown one was created
// meanwhile, and a row whose update time moved was changed meanwhile.
func merge(loaded, current []entity.Session, known map[uuid.UUID]time.Time) []entity.Session {
	live := make(map[uuid.UUID]entity.Session, len(current))
	for _, s := range current {
		live[s.Id] = s
	}

	out := make([]entity.Session, 0, len(loaded)+len(current))
	seen := make(map[uuid.UUID]struct{}, len(loaded))
	for _, s := range loaded {
		cur, inMemory := live[s.Id]
		was, wasKnown := known[s.Id]
		if wasKnown && !inMemory {
			continue
		}
		if inMemory && (!wasKnown || !cur.LastUpdatedAt.Equal(was)) {
			s = cur.Clone()
		}
		seen[s.Id] = struct{}{}
		out = append(out, s)
	}
	for _, s := range current {
		if _, ok := seen[s.Id]; ok {
			continue
		}
		if _, wasKnown := known[s.Id]; wasKnown {
			continue
		}
		out = append(out, s.Clone())
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func cloneAll(sessions []entity.Session) []entity.Session {
	out := make([]entity.Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}
