package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BySessionID matches sessions.session_id and chat_history.session_id alike.
type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByDocumentIDs struct {
	IDs []string
}

func (s ByDocumentIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id IN ?", s.IDs)
}

// InsertionOrder breaks ties left by an earlier OrderBy. chat_history has no
// sequence column, so Postgres orders by the row's physical position, which
// follows insertion for an append-only table.
type InsertionOrder struct{}

func (InsertionOrder) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "ctid"}})
}
