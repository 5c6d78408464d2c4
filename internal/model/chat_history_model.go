package model

import (
	"time"

	"docchat-client/internal/constant"

	"github.com/google/uuid"
)

type ChatHistory struct {
	Id        uuid.UUID `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID `gorm:"column:session_id;type:uuid;not null;index"`
	UserId    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Message   string    `gorm:"column:message;type:text;not null"`
	Role      string    `gorm:"column:role;type:varchar(16);not null"` // "human" | "ai"
	Timestamp time.Time `gorm:"column:timestamp;not null;index"`
}

func (ChatHistory) TableName() string {
	return constant.TableChatHistory
}
