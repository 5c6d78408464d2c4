package unitofwork

import (
	"context"
	"errors"

	"docchat-client/internal/repository/contract"
)

var (
	ErrTxActive = errors.New("transaction already started")
	ErrNoTx     = errors.New("no transaction in progress")
)

// UnitOfWork hands out repositories bound to one store handle. Between Begin
// and Commit/Rollback every repository it returns shares the transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SessionRepository() contract.SessionRepository
	DocumentRepository() contract.DocumentRepository
	ChatHistoryRepository() contract.ChatHistoryRepository
}

// RepositoryFactory opens a fresh UnitOfWork per operation.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

// Atomically runs fn inside a transaction on a fresh UnitOfWork. fn's error
// rolls the transaction back and is returned as is.
func Atomically(ctx context.Context, factory RepositoryFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
