package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-response-queue/internal/domain"
	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/repository"
)

var _ repository.MessageRepository = (*messageRepo)(nil)

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *messageRepo {
	return &messageRepo{pool: pool}
}

func (r *messageRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.ConversationMessage) error {
	const q = `
INSERT INTO conversation_messages (id, tenant_id, workspace_id, conversation_id, role, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := execSQL(ctx, r.pool, tx, q,
		msg.ID, msg.TenantID, msg.WorkspaceID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt)
	return err
}

func (r *messageRepo) ListRecent(ctx context.Context, tx repository.Tx, tenantID, workspaceID, conversationID string, limit int) ([]*model.ConversationMessage, error) {
	// Newest-first fetch, returned oldest-first for prompt building.
	const q = `
SELECT id, tenant_id, workspace_id, conversation_id, role, content, created_at
FROM conversation_messages
WHERE tenant_id = $1 AND workspace_id = $2 AND conversation_id = $3
ORDER BY created_at DESC
LIMIT $4;`

	rows, err := pickRows(ctx, r.pool, tx, q, tenantID, workspaceID, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*model.ConversationMessage
	for rows.Next() {
		var (
			m    model.ConversationMessage
			role string
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &m.WorkspaceID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		m.Role = model.MessageRole(role)
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
