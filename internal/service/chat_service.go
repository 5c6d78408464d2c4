package service

import (
	"context"
	"encoding/json"
	"sync"

	"docchat-client/internal/dto"
	"docchat-client/internal/entity"
	"docchat-client/internal/mapper"
	"docchat-client/internal/pkg/logger"
	"docchat-client/internal/repository/cache"
	"docchat-client/internal/repository/unitofwork"
	"docchat-client/pkg/apperror"
	"docchat-client/pkg/backend"
	chatevents "docchat-client/pkg/chat/events"
	"docchat-client/pkg/chat/gate"
	"docchat-client/pkg/chat/registry"
	"docchat-client/pkg/chat/switcher"
	"docchat-client/pkg/chat/synchronizer"
	"docchat-client/pkg/chat/upload"
	"docchat-client/pkg/events"

	"github.com/google/uuid"
)

const chatModule = "ChatService"

// IChatService is the command surface of the workspace. Every failing command
// also becomes the workspace's last error.
type IChatService interface {
	RefreshSessions(ctx context.Context) ([]entity.Session, error)
	CreateSession(ctx context.Context) (entity.Session, error)
	DeleteSession(ctx context.Context, sessionId uuid.UUID) error
	Activate(ctx context.Context, sessionId uuid.UUID) error
	Send(ctx context.Context, sessionId uuid.UUID, text string) (entity.ChatMessage, error)
	Upload(ctx context.Context, sessionId uuid.UUID, files []backend.File) ([]string, error)
	RequestUpload(ctx context.Context) error
	DismissUpload(ctx context.Context) error
	DismissError(ctx context.Context)
	Snapshot() dto.WorkspaceSnapshot
	HandleActivity(ctx context.Context, event events.Event) error
}

type ChatServiceDeps struct {
	UowFactory unitofwork.RepositoryFactory
	Cache      cache.DescriptionCache
	Backend    backend.ChatBackend
	Identity   IIdentityService
	Publisher  IPublisherService
	Activity   chatevents.Publisher
	Origin     string
	Logger     logger.ILogger
}

type chatService struct {
	identity  IIdentityService
	publisher IPublisherService
	logger    logger.ILogger

	sw          *switcher.Switch
	registry    *registry.Registry
	gate        *gate.Gate
	sync        *synchronizer.Synchronizer
	coordinator *upload.Coordinator
	emitter     *chatevents.Emitter

	mu        sync.Mutex
	lastError *dto.ErrorView

	pubMu sync.Mutex
}

// NewChatService wires the chat core and subscribes it to identity changes.
func NewChatService(deps ChatServiceDeps) IChatService {
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}

	sw := switcher.New()
	describer := registry.NewDescriber(deps.UowFactory, deps.Cache, deps.Logger)
	reg := registry.New(deps.UowFactory, describer, sw, deps.Logger)
	emitter := chatevents.NewEmitter(deps.Activity, deps.Origin, deps.Logger)
	syncer := synchronizer.New(sw, deps.UowFactory, reg, deps.Backend, emitter, deps.Logger)

	s := &chatService{
		identity:    deps.Identity,
		publisher:   deps.Publisher,
		logger:      deps.Logger,
		sw:          sw,
		registry:    reg,
		gate:        gate.New(sw, reg, syncer, deps.Logger),
		sync:        syncer,
		coordinator: upload.New(deps.Backend, deps.Logger),
		emitter:     emitter,
	}

	sw.OnChange(func() { s.publish(context.Background()) })
	deps.Identity.OnChange(s.onIdentityChange)
	return s
}

func (s *chatService) onIdentityChange(ctx context.Context, prev, next *entity.Identity) {
	if next == nil {
		s.reset()
		if prev != nil {
			s.emitter.Emit(ctx, chatevents.SignedOut, prev.Id, uuid.Nil, nil)
		}
		s.publish(ctx)
		return
	}
	// A refreshed token for the same user keeps the workspace.
	if prev != nil && prev.Id == next.Id {
		return
	}
	if prev != nil {
		s.reset()
	}
	if _, err := s.RefreshSessions(ctx); err != nil {
		s.logger.Warn(chatModule, "Initial session load failed", map[string]interface{}{
			"user_id": next.Id,
			"error":   err.Error(),
		})
	}
}

func (s *chatService) reset() {
	s.registry.Reset()
	s.sw.Deactivate()
	s.mu.Lock()
	s.lastError = nil
	s.mu.Unlock()
}

func (s *chatService) requireIdentity(op string) (entity.Identity, error) {
	identity, ok := s.identity.Current()
	if !ok {
		return entity.Identity{}, s.fail(apperror.Validation(op, apperror.ErrNoIdentity))
	}
	return identity, nil
}

// fail records err as the last error and returns it unchanged. Errors
// without a kind come from cancelled store waits.
func (s *chatService) fail(err error) error {
	if err == nil {
		return nil
	}
	kind, ok := apperror.KindOf(err)
	if !ok {
		kind = apperror.KindStoreUnavailable
	}
	view := &dto.ErrorView{Kind: string(kind), Message: err.Error()}
	s.mu.Lock()
	s.lastError = view
	s.mu.Unlock()
	s.publish(context.Background())
	return err
}

func (s *chatService) RefreshSessions(ctx context.Context) ([]entity.Session, error) {
	identity, err := s.requireIdentity("ChatService.RefreshSessions")
	if err != nil {
		return nil, err
	}

	sessions, err := s.registry.List(ctx, identity)
	if err != nil {
		return nil, s.fail(err)
	}
	s.publish(ctx)
	return sessions, nil
}

// CreateSession persists a new session and activates it, which opens the
// upload flow right away.
func (s *chatService) CreateSession(ctx context.Context) (entity.Session, error) {
	identity, err := s.requireIdentity("ChatService.CreateSession")
	if err != nil {
		return entity.Session{}, err
	}

	session, err := s.registry.Create(ctx, identity)
	if err != nil {
		return entity.Session{}, s.fail(err)
	}
	s.emitter.Emit(ctx, chatevents.SessionCreated, identity.Id, session.Id, nil)

	t := s.sw.Activate(session.Id)
	if err := s.gate.OnActivate(ctx, t, session); err != nil {
		return session, s.fail(err)
	}
	return session, nil
}

func (s *chatService) DeleteSession(ctx context.Context, sessionId uuid.UUID) error {
	identity, err := s.requireIdentity("ChatService.DeleteSession")
	if err != nil {
		return err
	}

	if err := s.registry.Delete(ctx, sessionId); err != nil {
		return s.fail(err)
	}
	s.emitter.Emit(ctx, chatevents.SessionDeleted, identity.Id, sessionId, nil)
	s.publish(ctx)
	return nil
}

// Activate switches to sessionId. Work still running for the previous
// session finishes its store writes but no longer touches the transcript.
func (s *chatService) Activate(ctx context.Context, sessionId uuid.UUID) error {
	if _, err := s.requireIdentity("ChatService.Activate"); err != nil {
		return err
	}

	session, err := s.registry.Get(ctx, sessionId)
	if err != nil {
		return s.fail(err)
	}

	t := s.sw.Activate(session.Id)
	s.logger.Debug(chatModule, "Session activated", map[string]interface{}{
		"session_id": session.Id,
		"generation": t.Generation,
	})
	if err := s.gate.OnActivate(ctx, t, session); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *chatService) Send(ctx context.Context, sessionId uuid.UUID, text string) (entity.ChatMessage, error) {
	if _, err := s.requireIdentity("ChatService.Send"); err != nil {
		return entity.ChatMessage{}, err
	}

	reply, err := s.sync.Send(ctx, sessionId, text)
	if err != nil {
		return reply, s.fail(err)
	}
	s.publish(ctx)
	return reply, nil
}

// Upload sends files for sessionId and attaches the returned documents. The
// session does not have to be active any more when the upload completes.
func (s *chatService) Upload(ctx context.Context, sessionId uuid.UUID, files []backend.File) ([]string, error) {
	identity, err := s.requireIdentity("ChatService.Upload")
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(ctx, sessionId); err != nil {
		return nil, s.fail(err)
	}

	ids, err := s.coordinator.Upload(ctx, sessionId, files)
	if err != nil {
		return nil, s.fail(err)
	}

	if _, err := s.gate.CompleteUpload(ctx, sessionId, ids); err != nil {
		return ids, s.fail(err)
	}
	s.emitter.Emit(ctx, chatevents.DocumentsAttached, identity.Id, sessionId, map[string]interface{}{
		"document_count": len(ids),
	})
	s.publish(ctx)
	return ids, nil
}

func (s *chatService) RequestUpload(ctx context.Context) error {
	const op = "ChatService.RequestUpload"

	if _, err := s.requireIdentity(op); err != nil {
		return err
	}
	t, ok := s.sw.Current()
	if !ok || !s.gate.RequestUpload(t) {
		return s.fail(apperror.Validation(op, apperror.ErrSessionNotActive))
	}
	return nil
}

// DismissUpload closes the upload flow without attaching anything.
func (s *chatService) DismissUpload(ctx context.Context) error {
	const op = "ChatService.DismissUpload"

	if _, err := s.requireIdentity(op); err != nil {
		return err
	}
	t, ok := s.sw.Current()
	if !ok || !s.gate.DismissUpload(t) {
		return s.fail(apperror.Validation(op, apperror.ErrSessionNotActive))
	}
	return nil
}

func (s *chatService) DismissError(ctx context.Context) {
	s.mu.Lock()
	s.lastError = nil
	s.mu.Unlock()
	s.publish(ctx)
}

func (s *chatService) Snapshot() dto.WorkspaceSnapshot {
	_, signedIn := s.identity.Current()
	t, live, active := s.sw.View()

	snapshot := dto.WorkspaceSnapshot{
		SignedIn:   signedIn,
		Generation: t.Generation,
		Transcript: dto.TranscriptView{
			Status:   live.Transcript.Status.String(),
			Messages: mapper.ChatMessagesToViews(live.Transcript.Messages()),
		},
		PendingUpload: live.PendingUpload,
		Sending:       live.Sending(),
	}

	activeId := ""
	if active {
		id := t.SessionId
		snapshot.ActiveSessionId = &id
		snapshot.Transcript.SessionId = &id
		activeId = id.String()
	}

	sessions := s.registry.Sessions()
	snapshot.Sessions = make([]dto.SessionView, len(sessions))
	for i, session := range sessions {
		snapshot.Sessions[i] = mapper.SessionToView(session, activeId)
	}

	s.mu.Lock()
	if s.lastError != nil {
		view := *s.lastError
		snapshot.LastError = &view
	}
	s.mu.Unlock()

	return snapshot
}

// publish sends the current snapshot. pubMu keeps snapshots entering the bus
// in the order they were taken.
func (s *chatService) publish(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	payload, err := json.Marshal(s.Snapshot())
	if err != nil {
		s.logger.Error(chatModule, "Failed to encode workspace snapshot", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.logger.Warn(chatModule, "Failed to publish workspace snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// HandleActivity applies activity another instance of the same user reported.
// Events from this instance or for other users are ignored.
func (s *chatService) HandleActivity(ctx context.Context, event events.Event) error {
	if events.StringField(event, "origin") == s.emitter.Origin() {
		return nil
	}
	identity, ok := s.identity.Current()
	if !ok || events.UUIDField(event, "user_id") != identity.Id {
		return nil
	}
	sessionId := events.UUIDField(event, "session_id")

	s.logger.Debug(chatModule, "Remote activity", map[string]interface{}{
		"type":       event.EventType(),
		"session_id": sessionId,
	})

	switch event.EventType() {
	case chatevents.SessionDeleted:
		s.sw.DeactivateIf(sessionId)
	case chatevents.MessageExchanged:
		if t, ok := s.sw.Current(); ok && t.SessionId == sessionId {
			if err := s.sync.Hydrate(ctx, t); err != nil {
				return s.fail(err)
			}
		}
		return nil
	case chatevents.SignedOut:
		return nil
	}

	if _, err := s.registry.List(ctx, identity); err != nil {
		return s.fail(err)
	}
	if event.EventType() == chatevents.DocumentsAttached {
		s.reactivateIfAwaiting(ctx, sessionId)
	}
	s.publish(ctx)
	return nil
}

// reactivateIfAwaiting hydrates the active session when another instance
// attached its documents while this one was waiting for an upload.
func (s *chatService) reactivateIfAwaiting(ctx context.Context, sessionId uuid.UUID) {
	t, ok := s.sw.Current()
	if !ok || t.SessionId != sessionId {
		return
	}
	session, ok := s.registry.Lookup(sessionId)
	if !ok || gate.RequiresUpload(session) {
		return
	}
	if s.gate.DismissUpload(t) {
		if err := s.sync.Hydrate(ctx, t); err != nil {
			_ = s.fail(err)
		}
	}
}
