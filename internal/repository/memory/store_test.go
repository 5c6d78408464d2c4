package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/specification"
	"docchat-client/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryScopesAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewSessionRepository(store)

	owner := uuid.New()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	older := &entity.Session{Id: uuid.New(), UserId: owner, StartedAt: base, LastUpdatedAt: base}
	newer := &entity.Session{Id: uuid.New(), UserId: owner, StartedAt: base.Add(time.Hour), LastUpdatedAt: base.Add(time.Hour)}
	foreign := &entity.Session{Id: uuid.New(), UserId: uuid.New(), StartedAt: base, LastUpdatedAt: base}

	for _, s := range []*entity.Session{older, newer, foreign} {
		require.NoError(t, repo.Create(ctx, s))
	}

	rows, err := repo.FindAll(ctx,
		specification.UserOwnedBy{UserID: owner},
		specification.OrderBy{Field: "started_at", Desc: true},
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.Id, rows[0].Id)
	assert.Equal(t, older.Id, rows[1].Id)
	assert.NotNil(t, rows[0].DocumentIds, "stored sessions carry an empty, not nil, id set")
}

func TestSessionRepositoryUpdateDocumentsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewSessionRepository(store)

	s := &entity.Session{Id: uuid.New(), UserId: uuid.New()}
	require.NoError(t, repo.Create(ctx, s))

	ids := []string{"d1", "d2"}
	at := time.Now()
	require.NoError(t, repo.UpdateDocuments(ctx, s.Id, ids, at))
	ids[0] = "mutated"

	row, err := repo.FindOne(ctx, specification.BySessionID{SessionID: s.Id})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, []string{"d1", "d2"}, row.DocumentIds)
	assert.True(t, row.LastUpdatedAt.Equal(at))
}

func TestFindOneMissingReturnsNil(t *testing.T) {
	repo := NewSessionRepository(NewStore())
	row, err := repo.FindOne(context.Background(), specification.BySessionID{SessionID: uuid.New()})
	assert.NoError(t, err)
	assert.Nil(t, row)
}

func TestChatHistoryOrderedByTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewChatHistoryRepository(store)

	sessionId := uuid.New()
	base := time.Now()
	late := &entity.ChatMessage{SessionId: sessionId, Role: entity.RoleAssistant, Text: "b", Timestamp: base.Add(time.Second)}
	early := &entity.ChatMessage{SessionId: sessionId, Role: entity.RoleHuman, Text: "a", Timestamp: base}
	other := &entity.ChatMessage{SessionId: uuid.New(), Role: entity.RoleHuman, Text: "x", Timestamp: base}
	for _, m := range []*entity.ChatMessage{late, early, other} {
		require.NoError(t, repo.Create(ctx, m))
	}
	assert.NotEqual(t, uuid.Nil, late.Id)

	rows, err := repo.FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "timestamp"},
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Text)
	assert.Equal(t, "b", rows[1].Text)

	count, err := repo.Count(ctx, specification.BySessionID{SessionID: sessionId})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestChatHistoryTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewChatHistoryRepository(store)

	sessionId := uuid.New()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, &entity.ChatMessage{SessionId: sessionId, Text: text, Timestamp: at}))
	}

	rows, err := repo.FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "timestamp"},
		specification.InsertionOrder{},
	)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{rows[0].Text, rows[1].Text, rows[2].Text})
}

func TestUnsupportedSpecificationFails(t *testing.T) {
	repo := NewChatHistoryRepository(NewStore())
	_, err := repo.FindAll(context.Background(), specification.OrderBy{Field: "message"})
	assert.Error(t, err)
}

func TestFailOnReturnsStoreUnavailable(t *testing.T) {
	store := NewStore()
	store.FailOn("sessions.select", errors.New("connection refused"))
	repo := NewSessionRepository(store)

	_, err := repo.FindAll(context.Background())
	assert.True(t, apperror.Is(err, apperror.KindStoreUnavailable))

	store.FailOn("sessions.select", nil)
	_, err = repo.FindAll(context.Background())
	assert.NoError(t, err)
}

func TestHeldCallTimesOutAsStoreUnavailable(t *testing.T) {
	store := NewStore()
	store.SetTimeout(20 * time.Millisecond)
	_, release := store.Hold("sessions.select")
	defer release()

	_, err := NewSessionRepository(store).FindAll(context.Background())
	assert.True(t, apperror.Is(err, apperror.KindStoreUnavailable))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other operations are not blocked by the held one.
	require.NoError(t, NewSessionRepository(store).Create(context.Background(), &entity.Session{Id: uuid.New()}))
}

func TestHeldCallResumesOnRelease(t *testing.T) {
	store := NewStore()
	started, release := store.Hold("chat_history.select")

	done := make(chan error, 1)
	go func() {
		_, err := NewChatHistoryRepository(store).FindAll(context.Background())
		done <- err
	}()

	<-started
	select {
	case <-done:
		t.Fatal("held call returned before release")
	default:
	}
	release()
	assert.NoError(t, <-done)
}

func TestUnitOfWorkRollbackRestores(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	factory := NewRepositoryFactory(store)

	s := &entity.Session{Id: uuid.New(), UserId: uuid.New()}
	require.NoError(t, NewSessionRepository(store).Create(ctx, s))

	uow := factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.SessionRepository().Delete(ctx, s.Id))
	require.NoError(t, uow.Rollback())

	_, ok := store.Session(s.Id)
	assert.True(t, ok)
}

func TestDocumentRepositoryFiltersByIds(t *testing.T) {
	store := NewStore()
	store.PutDocument(entity.Document{Id: "a", Metadata: map[string]interface{}{"filename": "a.pdf"}})
	store.PutDocument(entity.Document{Id: "b"})
	store.PutDocument(entity.Document{Id: "c"})

	docs, err := NewDocumentRepository(store).FindAll(context.Background(), specification.ByDocumentIDs{IDs: []string{"a", "c", "missing"}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Id)
	assert.Equal(t, "c", docs[1].Id)
}
