package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-response-queue/internal/domain"
)

// ConversationMessage is one durable entry of a conversation's message log.
// The enqueue endpoint writes the user turn here before the job exists, so
// the message survives even if the job never runs.
type ConversationMessage struct {
	ID             string
	TenantID       string
	WorkspaceID    string
	ConversationID string
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}

func NewConversationMessage(tenantID, workspaceID, conversationID string, role MessageRole, content string) (*ConversationMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if role != RoleUser && role != RoleAssistant {
		return nil, domain.ErrInvalidArgument
	}
	return &ConversationMessage{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		WorkspaceID:    workspaceID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}, nil
}
