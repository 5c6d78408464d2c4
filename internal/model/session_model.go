package model

import (
	"time"

	"docchat-client/internal/constant"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Session struct {
	SessionId   uuid.UUID                   `gorm:"column:session_id;type:uuid;primaryKey"`
	StartedAt   time.Time                   `gorm:"column:started_at;not null"`
	LastUpdated time.Time                   `gorm:"column:last_updated;not null"`
	UserId      uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"` // Ownership scope for every query
	DocumentIds datatypes.JSONSlice[string] `gorm:"column:document_ids;type:jsonb;not null;default:'[]'"`
}

func (Session) TableName() string {
	return constant.TableSessions
}
