package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"docchat-client/internal/dto"
	"docchat-client/internal/entity"
	"docchat-client/internal/pkg/logger"
	"docchat-client/internal/repository/memory"
	"docchat-client/pkg/apperror"
	"docchat-client/pkg/backend"
	"docchat-client/pkg/backend/backendtest"
	chatevents "docchat-client/pkg/chat/events"
	"docchat-client/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotSink struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (s *snapshotSink) Publish(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *snapshotSink) last(t *testing.T) dto.WorkspaceSnapshot {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.payloads)
	var snapshot dto.WorkspaceSnapshot
	require.NoError(t, json.Unmarshal(s.payloads[len(s.payloads)-1], &snapshot))
	return snapshot
}

type chatFixture struct {
	store    *memory.Store
	backend  *backendtest.Backend
	identity IIdentityService
	recorder *chatevents.Recorder
	sink     *snapshotSink
	svc      IChatService
	userId   uuid.UUID
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	store := memory.NewStore()
	log := logger.NewNopLogger()
	identity := NewIdentityService(testSecret, log)
	fake := backendtest.New(store)
	rec := &chatevents.Recorder{}
	sink := &snapshotSink{}

	svc := NewChatService(ChatServiceDeps{
		UowFactory: memory.NewRepositoryFactory(store),
		Backend:    fake,
		Identity:   identity,
		Publisher:  sink,
		Activity:   rec,
		Origin:     "local",
		Logger:     log,
	})

	return &chatFixture{
		store:    store,
		backend:  fake,
		identity: identity,
		recorder: rec,
		sink:     sink,
		svc:      svc,
		userId:   uuid.New(),
	}
}

func (f *chatFixture) signIn(t *testing.T) {
	t.Helper()
	_, err := f.identity.SignIn(context.Background(), mintToken(t, testSecret, f.userId.String(), time.Hour))
	require.NoError(t, err)
}

func (f *chatFixture) readySession(t *testing.T) entity.Session {
	t.Helper()
	ctx := context.Background()
	s, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, s.Id, []backend.File{{Name: "guide.pdf", Data: []byte("%PDF-1.4")}})
	require.NoError(t, err)
	return s
}

func TestCommandsRequireIdentity(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSession(ctx)
	assert.ErrorIs(t, err, apperror.ErrNoIdentity)
	_, err = f.svc.RefreshSessions(ctx)
	assert.ErrorIs(t, err, apperror.ErrNoIdentity)
	_, err = f.svc.Send(ctx, uuid.New(), "hello")
	assert.ErrorIs(t, err, apperror.ErrNoIdentity)

	snapshot := f.svc.Snapshot()
	assert.False(t, snapshot.SignedIn)
	require.NotNil(t, snapshot.LastError)
	assert.Equal(t, string(apperror.KindValidation), snapshot.LastError.Kind)
}

func TestSignInListsExistingSessions(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	now := time.Now()
	for i := 0; i < 2; i++ {
		require.NoError(t, uow.SessionRepository().Create(ctx, &entity.Session{
			Id:            uuid.New(),
			UserId:        f.userId,
			StartedAt:     now.Add(time.Duration(i) * time.Minute),
			LastUpdatedAt: now,
			DocumentIds:   []string{},
		}))
	}
	require.NoError(t, uow.SessionRepository().Create(ctx, &entity.Session{
		Id:          uuid.New(),
		UserId:      uuid.New(),
		StartedAt:   now,
		DocumentIds: []string{},
	}))

	f.signIn(t)

	snapshot := f.sink.last(t)
	assert.True(t, snapshot.SignedIn)
	require.Len(t, snapshot.Sessions, 2)
	assert.True(t, snapshot.Sessions[0].StartedAt.After(snapshot.Sessions[1].StartedAt))
	assert.Nil(t, snapshot.ActiveSessionId)
}

func TestCreateSessionOpensUploadFlow(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	snapshot := f.svc.Snapshot()
	require.NotNil(t, snapshot.ActiveSessionId)
	assert.Equal(t, s.Id, *snapshot.ActiveSessionId)
	assert.True(t, snapshot.PendingUpload)
	require.Len(t, snapshot.Sessions, 1)
	assert.True(t, snapshot.Sessions[0].Active)

	_, err = f.svc.Send(ctx, s.Id, "hello")
	assert.ErrorIs(t, err, apperror.ErrNoDocuments)
	assert.Empty(t, f.store.Messages(s.Id))
	assert.Empty(t, f.backend.Calls())
	require.NotNil(t, f.svc.Snapshot().LastError)

	assert.Contains(t, f.recorder.Types(), chatevents.SessionCreated)
}

func TestUploadThenSend(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s := f.readySession(t)

	snapshot := f.svc.Snapshot()
	assert.False(t, snapshot.PendingUpload)
	assert.Equal(t, "hydrated", snapshot.Transcript.Status)
	assert.Equal(t, "guide.pdf", snapshot.Sessions[0].Description)
	assert.Equal(t, "guide.pdf", snapshot.Sessions[0].Label)

	reply, err := f.svc.Send(ctx, s.Id, "What is in chapter 2?")
	require.NoError(t, err)
	assert.Equal(t, "reply: What is in chapter 2?", reply.Text)

	snapshot = f.sink.last(t)
	require.Len(t, snapshot.Transcript.Messages, 2)
	assert.True(t, snapshot.Transcript.Messages[0].IsUser)
	assert.False(t, snapshot.Transcript.Messages[1].IsUser)
	assert.False(t, snapshot.Sending)
	assert.Len(t, f.store.Messages(s.Id), 2)

	assert.Equal(t, []string{
		chatevents.SessionCreated,
		chatevents.DocumentsAttached,
		chatevents.MessageExchanged,
	}, f.recorder.Types())
}

func TestTwoDocumentsThenConversationInOrder(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	ids, err := f.svc.Upload(ctx, s.Id, []backend.File{
		{Name: "a.pdf", Data: []byte("%PDF-1.4")},
		{Name: "b.pdf", Data: []byte("%PDF-1.4")},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	snapshot := f.svc.Snapshot()
	require.Len(t, snapshot.Sessions, 1)
	assert.Len(t, snapshot.Sessions[0].DocumentIds, 2)
	assert.False(t, snapshot.PendingUpload)

	_, err = f.svc.Send(ctx, s.Id, "hello")
	require.NoError(t, err)

	rows := f.store.Messages(s.Id)
	require.Len(t, rows, 2)
	assert.Equal(t, entity.RoleHuman, rows[0].Role)
	assert.Equal(t, "hello", rows[0].Text)
	assert.Equal(t, entity.RoleAssistant, rows[1].Role)
	assert.True(t, rows[0].Timestamp.Before(rows[1].Timestamp))
}

func TestSendDuringOutageKeepsQuestion(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s := f.readySession(t)
	f.backend.FailAnswers(backendtest.ErrOutage)

	_, err := f.svc.Send(ctx, s.Id, "anyone there?")
	assert.True(t, apperror.Is(err, apperror.KindReplyFailed))

	snapshot := f.sink.last(t)
	require.Len(t, snapshot.Transcript.Messages, 1)
	assert.True(t, snapshot.Transcript.Messages[0].IsUser)
	require.NotNil(t, snapshot.LastError)
	assert.Equal(t, string(apperror.KindReplyFailed), snapshot.LastError.Kind)
	assert.Contains(t, snapshot.LastError.Message, backendtest.ErrOutage.Error())

	rows := f.store.Messages(s.Id)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.RoleHuman, rows[0].Role)
}

func TestSendOnSessionMissingFromList(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	// Created by another client after this one listed its sessions.
	f.store.PutDocument(entity.Document{Id: "doc-1", Metadata: map[string]interface{}{"filename": "guide.pdf"}})
	unlisted := entity.Session{
		Id:            uuid.New(),
		UserId:        f.userId,
		StartedAt:     time.Now(),
		LastUpdatedAt: time.Now(),
		DocumentIds:   []string{"doc-1"},
	}
	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	require.NoError(t, uow.SessionRepository().Create(ctx, &unlisted))
	require.Empty(t, f.svc.Snapshot().Sessions)

	require.NoError(t, f.svc.Activate(ctx, unlisted.Id))
	assert.Equal(t, "hydrated", f.svc.Snapshot().Transcript.Status)

	reply, err := f.svc.Send(ctx, unlisted.Id, "hello")
	require.NoError(t, err)
	assert.Equal(t, "reply: hello", reply.Text)

	snapshot := f.svc.Snapshot()
	require.Len(t, snapshot.Sessions, 1)
	assert.Equal(t, "guide.pdf", snapshot.Sessions[0].Description)
	assert.Len(t, snapshot.Transcript.Messages, 2)
	assert.Len(t, f.store.Messages(unlisted.Id), 2)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = f.svc.Upload(ctx, s.Id, []backend.File{{Name: "notes.txt"}})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	stored, ok := f.store.Session(s.Id)
	require.True(t, ok)
	assert.Empty(t, stored.DocumentIds)
	assert.True(t, f.svc.Snapshot().PendingUpload)
}

func TestUploadFailureKeepsGateClosed(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	f.backend.FailUploads(backendtest.ErrOutage)

	_, err = f.svc.Upload(ctx, s.Id, []backend.File{{Name: "guide.pdf"}})
	assert.True(t, apperror.Is(err, apperror.KindUploadFailed))

	snapshot := f.svc.Snapshot()
	assert.True(t, snapshot.PendingUpload)
	require.NotNil(t, snapshot.LastError)
	assert.Equal(t, string(apperror.KindUploadFailed), snapshot.LastError.Kind)

	f.svc.DismissError(ctx)
	assert.Nil(t, f.svc.Snapshot().LastError)
}

func TestUploadCompletingAfterSwitchDoesNotHydrate(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	first, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	second := f.readySession(t)
	require.Equal(t, second.Id, *f.svc.Snapshot().ActiveSessionId)

	_, err = f.svc.Upload(ctx, first.Id, []backend.File{{Name: "late.pdf"}})
	require.NoError(t, err)

	stored, ok := f.store.Session(first.Id)
	require.True(t, ok)
	assert.Len(t, stored.DocumentIds, 1)

	snapshot := f.svc.Snapshot()
	assert.Equal(t, second.Id, *snapshot.ActiveSessionId)
	assert.Equal(t, second.Id, *snapshot.Transcript.SessionId)
}

func TestUploadFinishingAfterSwitchLeavesNewSession(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	second := f.readySession(t)
	first, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	require.True(t, f.svc.Snapshot().PendingUpload)

	started, release := f.backend.HoldUploads()
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Upload(ctx, first.Id, []backend.File{{Name: "slow.pdf"}})
		done <- err
	}()
	select {
	case id := <-started:
		require.Equal(t, first.Id, id)
	case <-time.After(2 * time.Second):
		t.Fatal("upload never reached the backend")
	}

	require.NoError(t, f.svc.Activate(ctx, second.Id))
	release()
	require.NoError(t, <-done)

	snapshot := f.svc.Snapshot()
	assert.Equal(t, second.Id, *snapshot.ActiveSessionId)
	assert.Equal(t, second.Id, *snapshot.Transcript.SessionId)
	assert.Equal(t, "hydrated", snapshot.Transcript.Status)
	assert.False(t, snapshot.PendingUpload)

	stored, ok := f.store.Session(first.Id)
	require.True(t, ok)
	assert.Len(t, stored.DocumentIds, 1)

	require.NoError(t, f.svc.Activate(ctx, first.Id))
	snapshot = f.svc.Snapshot()
	assert.False(t, snapshot.PendingUpload, "documents landed while away")
	assert.Equal(t, "hydrated", snapshot.Transcript.Status)
}

func TestDismissAndRequestUpload(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.DismissUpload(ctx))
	assert.False(t, f.svc.Snapshot().PendingUpload)

	_, err = f.svc.Send(ctx, s.Id, "hello")
	assert.ErrorIs(t, err, apperror.ErrNoDocuments)

	require.NoError(t, f.svc.RequestUpload(ctx))
	assert.True(t, f.svc.Snapshot().PendingUpload)
}

func TestRequestUploadWithoutActiveSession(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)

	err := f.svc.RequestUpload(context.Background())
	assert.ErrorIs(t, err, apperror.ErrSessionNotActive)
}

func TestDeleteActiveSessionClearsActive(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s := f.readySession(t)
	_, err := f.svc.Send(ctx, s.Id, "hello")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(ctx, s.Id))

	snapshot := f.svc.Snapshot()
	assert.Nil(t, snapshot.ActiveSessionId)
	assert.Empty(t, snapshot.Sessions)
	assert.Empty(t, snapshot.Transcript.Messages)
	assert.Empty(t, f.store.Messages(s.Id))

	// Idempotent.
	require.NoError(t, f.svc.DeleteSession(ctx, s.Id))
	assert.Contains(t, f.recorder.Types(), chatevents.SessionDeleted)
}

func TestActivateSwitchesTranscript(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	a := f.readySession(t)
	_, err := f.svc.Send(ctx, a.Id, "about a")
	require.NoError(t, err)
	b := f.readySession(t)

	assert.Empty(t, f.svc.Snapshot().Transcript.Messages)

	require.NoError(t, f.svc.Activate(ctx, a.Id))
	snapshot := f.svc.Snapshot()
	require.Len(t, snapshot.Transcript.Messages, 2)
	assert.Equal(t, "about a", snapshot.Transcript.Messages[0].Text)

	require.NoError(t, f.svc.Activate(ctx, b.Id))
	assert.Empty(t, f.svc.Snapshot().Transcript.Messages)

	err = f.svc.Activate(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrSessionNotFound)
}

func TestSignOutResetsWorkspace(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	f.readySession(t)
	f.identity.SignOut(ctx)

	snapshot := f.sink.last(t)
	assert.False(t, snapshot.SignedIn)
	assert.Empty(t, snapshot.Sessions)
	assert.Nil(t, snapshot.ActiveSessionId)
	assert.Nil(t, snapshot.LastError)
	assert.Contains(t, f.recorder.Types(), chatevents.SignedOut)
}

func TestSwitchingUserDropsPreviousSessions(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	f.readySession(t)

	other := uuid.New()
	_, err := f.identity.SignIn(context.Background(), mintToken(t, testSecret, other.String(), time.Hour))
	require.NoError(t, err)

	snapshot := f.svc.Snapshot()
	assert.Empty(t, snapshot.Sessions)
	assert.Nil(t, snapshot.ActiveSessionId)
}

func remoteEvent(eventType string, data map[string]interface{}) events.Event {
	return events.BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

func TestHandleActivityRefreshesOnRemoteChanges(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	remote := entity.Session{
		Id:            uuid.New(),
		UserId:        f.userId,
		StartedAt:     time.Now(),
		LastUpdatedAt: time.Now(),
		DocumentIds:   []string{},
	}
	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	require.NoError(t, uow.SessionRepository().Create(ctx, &remote))

	// Own activity and other users are ignored.
	require.NoError(t, f.svc.HandleActivity(ctx, remoteEvent(chatevents.SessionCreated, map[string]interface{}{
		"origin": "local", "user_id": f.userId.String(), "session_id": remote.Id.String(),
	})))
	require.NoError(t, f.svc.HandleActivity(ctx, remoteEvent(chatevents.SessionCreated, map[string]interface{}{
		"origin": "laptop", "user_id": uuid.NewString(), "session_id": remote.Id.String(),
	})))
	assert.Empty(t, f.svc.Snapshot().Sessions)

	require.NoError(t, f.svc.HandleActivity(ctx, remoteEvent(chatevents.SessionCreated, map[string]interface{}{
		"origin": "laptop", "user_id": f.userId.String(), "session_id": remote.Id.String(),
	})))
	snapshot := f.svc.Snapshot()
	require.Len(t, snapshot.Sessions, 1)
	assert.Equal(t, remote.Id, snapshot.Sessions[0].Id)
}

func TestHandleActivityRemoteDeleteOfActiveSession(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s := f.readySession(t)
	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	require.NoError(t, uow.SessionRepository().Delete(ctx, s.Id))

	require.NoError(t, f.svc.HandleActivity(ctx, remoteEvent(chatevents.SessionDeleted, map[string]interface{}{
		"origin": "laptop", "user_id": f.userId.String(), "session_id": s.Id.String(),
	})))

	snapshot := f.svc.Snapshot()
	assert.Nil(t, snapshot.ActiveSessionId)
	assert.Empty(t, snapshot.Sessions)
}

func TestHandleActivityRemoteMessageRehydrates(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s := f.readySession(t)
	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	require.NoError(t, uow.ChatHistoryRepository().Create(ctx, &entity.ChatMessage{
		Id:        uuid.New(),
		SessionId: s.Id,
		UserId:    f.userId,
		Role:      entity.RoleHuman,
		Text:      "asked elsewhere",
		Timestamp: time.Now(),
	}))

	require.NoError(t, f.svc.HandleActivity(ctx, remoteEvent(chatevents.MessageExchanged, map[string]interface{}{
		"origin": "laptop", "user_id": f.userId.String(), "session_id": s.Id.String(),
	})))

	snapshot := f.svc.Snapshot()
	require.Len(t, snapshot.Transcript.Messages, 1)
	assert.Equal(t, "asked elsewhere", snapshot.Transcript.Messages[0].Text)
}

func TestHandleActivityRemoteUploadReleasesGate(t *testing.T) {
	f := newChatFixture(t)
	f.signIn(t)
	ctx := context.Background()

	s, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	require.True(t, f.svc.Snapshot().PendingUpload)

	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	require.NoError(t, uow.SessionRepository().UpdateDocuments(ctx, s.Id, []string{"doc-remote"}, time.Now()))

	require.NoError(t, f.svc.HandleActivity(ctx, remoteEvent(chatevents.DocumentsAttached, map[string]interface{}{
		"origin": "laptop", "user_id": f.userId.String(), "session_id": s.Id.String(),
	})))

	snapshot := f.svc.Snapshot()
	assert.False(t, snapshot.PendingUpload)
	assert.Equal(t, "hydrated", snapshot.Transcript.Status)
	assert.Equal(t, "Unnamed PDF", snapshot.Sessions[0].Description)
}
