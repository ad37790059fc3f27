package generator

import (
	"context"
	"time"

	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/adapter"
	"ai-response-queue/internal/domain/ports/repository"
)

var _ adapter.ResponseGenerator = (*NoopGenerator)(nil)

// NoopGenerator implements the generator port for local/dev runs. It streams
// a canned reply in two chunks and persists it like the real thing.
type NoopGenerator struct {
	messages repository.MessageRepository
}

func NewNoopGenerator(messages repository.MessageRepository) *NoopGenerator {
	return &NoopGenerator{messages: messages}
}

func (g *NoopGenerator) Generate(ctx context.Context, req adapter.GenerationRequest, onUpdate adapter.UpdateFunc) (adapter.GenerationResult, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return adapter.GenerationResult{Success: false, Error: ctx.Err().Error()}, ctx.Err()
	}

	onUpdate(model.ContentDelta{Text: "This is a "})
	onUpdate(model.ContentDelta{Text: "noop response."})

	msg, err := model.NewConversationMessage(req.TenantID, req.WorkspaceID, req.ConversationID, model.RoleAssistant, "This is a noop response.")
	if err != nil {
		return adapter.GenerationResult{Success: false, Error: err.Error()}, err
	}
	if err := g.messages.SaveMessage(ctx, nil, msg); err != nil {
		return adapter.GenerationResult{Success: false, Error: err.Error()}, err
	}
	onUpdate(model.MessageSaved{MessageID: msg.ID})

	return adapter.GenerationResult{Success: true, MessagesSaved: 1}, nil
}
