//go:build !integration

package generator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/adapter"
	"ai-response-queue/internal/domain/ports/repository"
)

type memMessageRepo struct {
	mu      sync.Mutex
	saved   []*model.ConversationMessage
	saveErr error
}

func (m *memMessageRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.ConversationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, msg)
	return nil
}

func (m *memMessageRepo) ListRecent(ctx context.Context, tx repository.Tx, tenantID, workspaceID, conversationID string, limit int) ([]*model.ConversationMessage, error) {
	return nil, nil
}

func testRequest() adapter.GenerationRequest {
	return adapter.GenerationRequest{
		TenantID:       "t1",
		WorkspaceID:    "w1",
		ConversationID: "c1",
		Messages:       []model.Message{{Role: model.RoleUser, Content: "Hi"}},
		Parameters:     model.JobParameters{Personality: 1},
	}
}

func TestNoopGenerator_Generate(t *testing.T) {
	t.Run("streams chunks and persists the reply", func(t *testing.T) {
		repo := &memMessageRepo{}
		gen := NewNoopGenerator(repo)

		var updates []model.UpdatePayload
		result, err := gen.Generate(context.Background(), testRequest(), func(p model.UpdatePayload) {
			updates = append(updates, p)
		})
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if !result.Success || result.MessagesSaved != 1 {
			t.Errorf("unexpected result: %+v", result)
		}

		if len(updates) != 3 {
			t.Fatalf("expected 2 deltas and a saved marker, got %d updates", len(updates))
		}
		if updates[0].Kind() != model.UpdateContentDelta || updates[1].Kind() != model.UpdateContentDelta {
			t.Error("the first two updates must be content deltas")
		}
		saved, ok := updates[2].(model.MessageSaved)
		if !ok {
			t.Fatalf("expected a MessageSaved marker, got %T", updates[2])
		}

		if len(repo.saved) != 1 {
			t.Fatalf("expected 1 persisted message, got %d", len(repo.saved))
		}
		msg := repo.saved[0]
		if msg.Role != model.RoleAssistant || msg.ConversationID != "c1" {
			t.Errorf("unexpected message: %+v", msg)
		}
		if saved.MessageID != msg.ID {
			t.Errorf("saved marker must carry the persisted id: %s vs %s", saved.MessageID, msg.ID)
		}
	})

	t.Run("a persistence failure fails the generation", func(t *testing.T) {
		repo := &memMessageRepo{saveErr: errors.New("disk full")}
		gen := NewNoopGenerator(repo)

		result, err := gen.Generate(context.Background(), testRequest(), func(model.UpdatePayload) {})
		if err == nil || result.Success {
			t.Errorf("expected a failed generation, got %+v, %v", result, err)
		}
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		gen := NewNoopGenerator(&memMessageRepo{})
		result, err := gen.Generate(ctx, testRequest(), func(model.UpdatePayload) {})
		if !errors.Is(err, context.Canceled) || result.Success {
			t.Errorf("expected context.Canceled, got %+v, %v", result, err)
		}
	})
}
