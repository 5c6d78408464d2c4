package mapper

import (
	"docchat-client/internal/constant"
	"docchat-client/internal/dto"
	"docchat-client/internal/entity"
	"docchat-client/internal/model"

	"gorm.io/datatypes"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) SessionToEntity(s *model.Session) *entity.Session {
	if s == nil {
		return nil
	}

	documentIds := make([]string, len(s.DocumentIds))
	copy(documentIds, s.DocumentIds)

	return &entity.Session{
		Id:            s.SessionId,
		UserId:        s.UserId,
		StartedAt:     s.StartedAt,
		LastUpdatedAt: s.LastUpdated,
		DocumentIds:   documentIds,
	}
}

func (m *ChatMapper) SessionToModel(s *entity.Session) *model.Session {
	if s == nil {
		return nil
	}

	// A nil slice would serialize as JSON null.
	documentIds := make(datatypes.JSONSlice[string], len(s.DocumentIds))
	copy(documentIds, s.DocumentIds)

	return &model.Session{
		SessionId:   s.Id,
		StartedAt:   s.StartedAt,
		LastUpdated: s.LastUpdatedAt,
		UserId:      s.UserId,
		DocumentIds: documentIds,
	}
}

// Document Mappers

func (m *ChatMapper) DocumentToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}
	return &entity.Document{
		Id:       d.Id,
		Metadata: map[string]interface{}(d.Metadata),
	}
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatHistory) *entity.ChatMessage {
	if msg == nil {
		return nil
	}
	return &entity.ChatMessage{
		Id:        msg.Id,
		SessionId: msg.SessionId,
		UserId:    msg.UserId,
		Role:      RoleFromStorage(msg.Role),
		Text:      msg.Message,
		Timestamp: msg.Timestamp,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatHistory {
	if msg == nil {
		return nil
	}
	return &model.ChatHistory{
		Id:        msg.Id,
		SessionId: msg.SessionId,
		UserId:    msg.UserId,
		Message:   msg.Text,
		Role:      RoleToStorage(msg.Role),
		Timestamp: msg.Timestamp,
	}
}

func (m *ChatMapper) ChatMessagesToEntities(models []*model.ChatHistory) []entity.ChatMessage {
	messages := make([]entity.ChatMessage, 0, len(models))
	for _, msg := range models {
		messages = append(messages, *m.ChatMessageToEntity(msg))
	}
	return messages
}

// Role Mappers

// RoleFromStorage treats every tag other than "human" as an assistant reply.
func RoleFromStorage(role string) entity.Role {
	if role == constant.ChatHistoryRoleHuman {
		return entity.RoleHuman
	}
	return entity.RoleAssistant
}

func RoleToStorage(role entity.Role) string {
	if role == entity.RoleHuman {
		return constant.ChatHistoryRoleHuman
	}
	return constant.ChatHistoryRoleAI
}

// View Mappers

func ChatMessageToView(msg entity.ChatMessage) dto.ChatMessageView {
	return dto.ChatMessageView{
		Id:        msg.Id,
		Text:      msg.Text,
		IsUser:    msg.IsHuman(),
		Timestamp: msg.Timestamp,
	}
}

func ChatMessagesToViews(messages []entity.ChatMessage) []dto.ChatMessageView {
	views := make([]dto.ChatMessageView, len(messages))
	for i, msg := range messages {
		views[i] = ChatMessageToView(msg)
	}
	return views
}

func SessionToView(s entity.Session, activeId string) dto.SessionView {
	return dto.SessionView{
		Id:            s.Id,
		Label:         s.Label(),
		Description:   s.Description,
		StartedAt:     s.StartedAt,
		LastUpdatedAt: s.LastUpdatedAt,
		DocumentIds:   append([]string{}, s.DocumentIds...),
		Active:        s.Id.String() == activeId,
	}
}
