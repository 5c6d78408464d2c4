package implementation_test

import (
	"context"
	"os"
	"testing"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/model"
	"docchat-client/internal/repository/specification"
	"docchat-client/internal/repository/unitofwork"
	"docchat-client/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormStoreRoundTrip(t *testing.T) {
	// Tests run in the package dir; .env lives at the root.
	if err := godotenv.Load("../../../.env"); err != nil {
		t.Log("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.Session{}, &model.Document{}, &model.ChatHistory{}))

	ctx := context.Background()
	factory := unitofwork.NewRepositoryFactory(gormDB, 10*time.Second)
	uow := factory.NewUnitOfWork(ctx)

	userId := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	session := &entity.Session{
		Id:            uuid.New(),
		UserId:        userId,
		StartedAt:     now,
		LastUpdatedAt: now,
		DocumentIds:   []string{},
	}
	require.NoError(t, uow.SessionRepository().Create(ctx, session))
	t.Cleanup(func() {
		cleanup := factory.NewUnitOfWork(ctx)
		_ = cleanup.ChatHistoryRepository().DeleteBySessionId(ctx, session.Id)
		_ = cleanup.SessionRepository().Delete(ctx, session.Id)
	})

	t.Run("Session is scoped to its owner", func(t *testing.T) {
		mine, err := uow.SessionRepository().FindAll(ctx, specification.UserOwnedBy{UserID: userId})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Empty(t, mine[0].DocumentIds)

		theirs, err := uow.SessionRepository().FindAll(ctx, specification.UserOwnedBy{UserID: uuid.New()})
		require.NoError(t, err)
		assert.Empty(t, theirs)
	})

	t.Run("Document ids replace atomically", func(t *testing.T) {
		docId := uuid.NewString()
		later := now.Add(time.Minute)
		require.NoError(t, uow.SessionRepository().UpdateDocuments(ctx, session.Id, []string{docId}, later))

		found, err := uow.SessionRepository().FindOne(ctx, specification.BySessionID{SessionID: session.Id})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, []string{docId}, found.DocumentIds)
		assert.True(t, found.LastUpdatedAt.Equal(later))
	})

	t.Run("History comes back in timestamp order", func(t *testing.T) {
		for i, text := range []string{"second", "first"} {
			require.NoError(t, uow.ChatHistoryRepository().Create(ctx, &entity.ChatMessage{
				Id:        uuid.New(),
				SessionId: session.Id,
				UserId:    userId,
				Role:      entity.RoleHuman,
				Text:      text,
				Timestamp: now.Add(time.Duration(1-i) * time.Second),
			}))
		}

		rows, err := uow.ChatHistoryRepository().FindAll(ctx,
			specification.BySessionID{SessionID: session.Id},
			specification.OrderBy{Field: "timestamp"},
		)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "first", rows[0].Text)
		assert.Equal(t, "second", rows[1].Text)
	})

	t.Run("Delete in a transaction", func(t *testing.T) {
		tx := factory.NewUnitOfWork(ctx)
		require.NoError(t, tx.Begin(ctx))
		require.NoError(t, tx.ChatHistoryRepository().DeleteBySessionId(ctx, session.Id))
		require.NoError(t, tx.SessionRepository().Delete(ctx, session.Id))
		require.NoError(t, tx.Commit())

		count, err := uow.ChatHistoryRepository().Count(ctx, specification.BySessionID{SessionID: session.Id})
		require.NoError(t, err)
		assert.Zero(t, count)

		found, err := uow.SessionRepository().FindOne(ctx, specification.BySessionID{SessionID: session.Id})
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}
