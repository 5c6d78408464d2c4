package unitofwork_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/memory"
	"docchat-client/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicallyCommits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	factory := memory.NewRepositoryFactory(store)
	id := uuid.New()

	err := unitofwork.Atomically(ctx, factory, func(uow unitofwork.UnitOfWork) error {
		return uow.SessionRepository().Create(ctx, &entity.Session{Id: id, UserId: uuid.New(), StartedAt: time.Now()})
	})
	require.NoError(t, err)

	_, ok := store.Session(id)
	assert.True(t, ok)
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	factory := memory.NewRepositoryFactory(store)
	id := uuid.New()
	boom := errors.New("boom")

	err := unitofwork.Atomically(ctx, factory, func(uow unitofwork.UnitOfWork) error {
		if err := uow.SessionRepository().Create(ctx, &entity.Session{Id: id, UserId: uuid.New()}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := store.Session(id)
	assert.False(t, ok)
}

func TestCommitWithoutBegin(t *testing.T) {
	uow := memory.NewRepositoryFactory(memory.NewStore()).NewUnitOfWork(context.Background())
	assert.ErrorIs(t, uow.Commit(), unitofwork.ErrNoTx)
	assert.ErrorIs(t, uow.Rollback(), unitofwork.ErrNoTx)
}
