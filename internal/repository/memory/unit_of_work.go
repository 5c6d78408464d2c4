package memory

import (
	"context"

	"docchat-client/internal/repository/contract"
	"docchat-client/internal/repository/unitofwork"
)

// UnitOfWork emulates a transaction by snapshotting the store on Begin.
// Concurrent writers outside the UoW are not isolated.
type UnitOfWork struct {
	store *Store
	snap  *snapshot
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.snap != nil {
		return unitofwork.ErrTxActive
	}
	snap := u.store.snapshot()
	u.snap = &snap
	return nil
}

func (u *UnitOfWork) Commit() error {
	if u.snap == nil {
		return unitofwork.ErrNoTx
	}
	u.snap = nil
	return nil
}

func (u *UnitOfWork) Rollback() error {
	if u.snap == nil {
		return unitofwork.ErrNoTx
	}
	u.store.restore(*u.snap)
	u.snap = nil
	return nil
}

func (u *UnitOfWork) SessionRepository() contract.SessionRepository {
	return NewSessionRepository(u.store)
}

func (u *UnitOfWork) DocumentRepository() contract.DocumentRepository {
	return NewDocumentRepository(u.store)
}

func (u *UnitOfWork) ChatHistoryRepository() contract.ChatHistoryRepository {
	return NewChatHistoryRepository(u.store)
}

type RepositoryFactory struct {
	store *Store
}

func NewRepositoryFactory(store *Store) unitofwork.RepositoryFactory {
	return &RepositoryFactory{store: store}
}

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &UnitOfWork{store: f.store}
}
