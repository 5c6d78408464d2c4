// Package synchronizer keeps the active session's transcript consistent with
// chat_history: it hydrates from the store and runs the optimistic send flow.
package synchronizer

import (
	"context"
	"strings"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/pkg/logger"
	"docchat-client/internal/repository/specification"
	"docchat-client/internal/repository/unitofwork"
	"docchat-client/pkg/apperror"
	"docchat-client/pkg/backend"
	"docchat-client/pkg/chat/events"
	"docchat-client/pkg/chat/gate"
	"docchat-client/pkg/chat/switcher"
	"docchat-client/pkg/chat/transcript"

	"github.com/google/uuid"
)

const module = "MessageSynchronizer"

// Sessions is the slice of the session registry the synchronizer reads.
type Sessions interface {
	Lookup(sessionId uuid.UUID) (entity.Session, bool)
	Touch(ctx context.Context, sessionId uuid.UUID) error
}

type Synchronizer struct {
	sw         *switcher.Switch
	uowFactory unitofwork.RepositoryFactory
	sessions   Sessions
	backend    backend.ChatBackend
	emitter    *events.Emitter
	locks      *KeyedLock
	logger     logger.ILogger
	now        func() time.Time
}

func New(
	sw *switcher.Switch,
	uowFactory unitofwork.RepositoryFactory,
	sessions Sessions,
	b backend.ChatBackend,
	emitter *events.Emitter,
	log logger.ILogger,
) *Synchronizer {
	return &Synchronizer{
		sw:         sw,
		uowFactory: uowFactory,
		sessions:   sessions,
		backend:    b,
		emitter:    emitter,
		locks:      NewKeyedLock(),
		logger:     log,
		now:        time.Now,
	}
}

// SetClock replaces time.Now; tests use it.
func (s *Synchronizer) SetClock(now func() time.Time) {
	s.now = now
}

// Hydrate loads t's session history into the transcript. It waits for any
// send on the same session, does nothing for sessions still awaiting upload,
// and drops its result if t went stale meanwhile.
func (s *Synchronizer) Hydrate(ctx context.Context, t switcher.Ticket) error {
	if sess, ok := s.sessions.Lookup(t.SessionId); ok && gate.RequiresUpload(sess) {
		return nil
	}

	release, err := s.locks.Acquire(ctx, t.SessionId)
	if err != nil {
		return err
	}
	defer release()

	return s.hydrateLocked(ctx, t)
}

func (s *Synchronizer) hydrateLocked(ctx context.Context, t switcher.Ticket) error {
	const op = "MessageSynchronizer.Hydrate"

	if !s.sw.Apply(t, func(l *switcher.Live) { l.Transcript.BeginHydration() }) {
		return nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.ChatHistoryRepository().FindAll(ctx,
		specification.BySessionID{SessionID: t.SessionId},
		specification.OrderBy{Field: "timestamp"},
		specification.InsertionOrder{},
	)
	if err != nil {
		s.sw.Apply(t, func(l *switcher.Live) { l.Transcript.AbortHydration() })
		s.logger.Error(module, "Failed to load history", map[string]interface{}{
			"session_id": t.SessionId,
			"error":      err.Error(),
		})
		return classify(op, err, apperror.KindStoreUnavailable)
	}

	messages := make([]entity.ChatMessage, len(rows))
	for i, row := range rows {
		messages[i] = *row
	}

	applied := s.sw.Apply(t, func(l *switcher.Live) { l.Transcript.Replace(messages) })
	s.logger.Debug(module, "History loaded", map[string]interface{}{
		"session_id": t.SessionId,
		"generation": t.Generation,
		"messages":   len(messages),
		"stale":      !applied,
	})
	return nil
}

// Send runs one message exchange on the active session. Validation failures
// change nothing. Past validation, every store write completes even if the
// session is switched away; only transcript updates depend on the ticket.
func (s *Synchronizer) Send(ctx context.Context, sessionId uuid.UUID, text string) (entity.ChatMessage, error) {
	const op = "MessageSynchronizer.Send"

	if strings.TrimSpace(text) == "" {
		return entity.ChatMessage{}, apperror.Validation(op, apperror.ErrEmptyMessage)
	}
	t, ok := s.sw.Current()
	if !ok || t.SessionId != sessionId {
		return entity.ChatMessage{}, apperror.Validation(op, apperror.ErrSessionNotActive)
	}
	sess, ok := s.sessions.Lookup(sessionId)
	if !ok {
		return entity.ChatMessage{}, apperror.Validation(op, apperror.ErrSessionNotFound)
	}
	if gate.RequiresUpload(sess) {
		return entity.ChatMessage{}, apperror.Validation(op, apperror.ErrNoDocuments)
	}

	release, err := s.locks.Acquire(ctx, sessionId)
	if err != nil {
		return entity.ChatMessage{}, err
	}
	defer release()

	// Optimistic entries must land on a hydrated transcript, or a later
	// hydration would overwrite them.
	hydrated := true
	s.sw.Read(t, func(l switcher.Live) { hydrated = l.Transcript.Status == transcript.Hydrated })
	if !hydrated {
		if err := s.hydrateLocked(ctx, t); err != nil {
			return entity.ChatMessage{}, err
		}
	}

	s.sw.Apply(t, func(l *switcher.Live) { l.InFlight++ })
	defer s.sw.Apply(t, func(l *switcher.Live) { l.InFlight-- })

	var tail time.Time
	s.sw.Read(t, func(l switcher.Live) {
		if last, ok := l.Transcript.Last(); ok {
			tail = last.Timestamp
		}
	})

	human := entity.ChatMessage{
		Id:        uuid.New(),
		SessionId: sessionId,
		UserId:    sess.UserId,
		Role:      entity.RoleHuman,
		Text:      text,
		Timestamp: s.next(tail),
	}
	s.sw.Apply(t, func(l *switcher.Live) { l.Transcript.Append(human) })

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ChatHistoryRepository().Create(ctx, &human); err != nil {
		s.logger.Error(module, "Failed to persist message", map[string]interface{}{
			"session_id": sessionId,
			"role":       human.Role,
			"error":      err.Error(),
		})
		return entity.ChatMessage{}, classify(op, err, apperror.KindStoreUnavailable)
	}

	reply, err := s.backend.Answer(ctx, sessionId, text)
	if err != nil {
		s.logger.Warn(module, "Backend did not answer", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return entity.ChatMessage{}, classify(op, err, apperror.KindReplyFailed)
	}

	assistant := entity.ChatMessage{
		Id:        uuid.New(),
		SessionId: sessionId,
		UserId:    sess.UserId,
		Role:      entity.RoleAssistant,
		Text:      reply,
		Timestamp: s.next(human.Timestamp),
	}

	appended := s.sw.Apply(t, func(l *switcher.Live) { l.Transcript.Append(assistant) })
	if !appended {
		s.logger.Info(module, "Reply arrived for inactive session", map[string]interface{}{
			"session_id": sessionId,
			"generation": t.Generation,
		})
	}

	if err := uow.ChatHistoryRepository().Create(ctx, &assistant); err != nil {
		s.logger.Error(module, "Failed to persist message", map[string]interface{}{
			"session_id": sessionId,
			"role":       assistant.Role,
			"error":      err.Error(),
		})
		return assistant, classify(op, err, apperror.KindStoreUnavailable)
	}

	if err := s.sessions.Touch(ctx, sessionId); err != nil {
		s.logger.Warn(module, "Failed to touch session", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	s.emitter.Emit(ctx, events.MessageExchanged, sess.UserId, sessionId, nil)
	return assistant, nil
}

// next returns the current time, pushed past after if needed. Postgres keeps
// microseconds, so both are compared at that precision and this client's
// messages never share a timestamp within a session.
func (s *Synchronizer) next(after time.Time) time.Time {
	at := s.now().Truncate(time.Microsecond)
	floor := after.Truncate(time.Microsecond)
	if !at.After(floor) {
		at = floor.Add(time.Microsecond)
	}
	return at
}

func classify(op string, err error, fallback apperror.Kind) error {
	if _, ok := apperror.KindOf(err); ok {
		return err
	}
	return apperror.New(fallback, op, err)
}
