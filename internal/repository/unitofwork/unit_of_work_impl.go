package unitofwork

import (
	"context"
	"time"

	"docchat-client/internal/repository/contract"
	"docchat-client/internal/repository/implementation"

	"gorm.io/gorm"
)

type gormUnitOfWork struct {
	db      *gorm.DB
	tx      *gorm.DB
	timeout time.Duration
}

// handle is the transaction when one is open, the pooled connection otherwise.
func (u *gormUnitOfWork) handle() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *gormUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ErrTxActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return implementation.ClassifyStoreError("UnitOfWork.Begin", tx.Error)
	}
	u.tx = tx
	return nil
}

func (u *gormUnitOfWork) Commit() error {
	if u.tx == nil {
		return ErrNoTx
	}
	err := u.tx.Commit().Error
	u.tx = nil
	if err != nil {
		return implementation.ClassifyStoreError("UnitOfWork.Commit", err)
	}
	return nil
}

func (u *gormUnitOfWork) Rollback() error {
	if u.tx == nil {
		return ErrNoTx
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *gormUnitOfWork) SessionRepository() contract.SessionRepository {
	return implementation.NewSessionRepository(u.handle(), u.timeout)
}

func (u *gormUnitOfWork) DocumentRepository() contract.DocumentRepository {
	return implementation.NewDocumentRepository(u.handle(), u.timeout)
}

func (u *gormUnitOfWork) ChatHistoryRepository() contract.ChatHistoryRepository {
	return implementation.NewChatHistoryRepository(u.handle(), u.timeout)
}

type gormFactory struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewRepositoryFactory serves units of work over the shared gorm pool. Each
// repository call is bounded by timeout; a transaction lives as long as the
// context given to Begin.
func NewRepositoryFactory(db *gorm.DB, timeout time.Duration) RepositoryFactory {
	return &gormFactory{db: db, timeout: timeout}
}

func (f *gormFactory) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return &gormUnitOfWork{db: f.db.WithContext(ctx), timeout: f.timeout}
}
