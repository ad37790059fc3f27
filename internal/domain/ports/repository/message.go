package repository

import (
	"context"

	"ai-response-queue/internal/domain/model"
)

// MessageRepository is the conversation's durable message log.
type MessageRepository interface {
	SaveMessage(ctx context.Context, tx Tx, msg *model.ConversationMessage) error
	ListRecent(ctx context.Context, tx Tx, tenantID, workspaceID, conversationID string, limit int) ([]*model.ConversationMessage, error)
}
