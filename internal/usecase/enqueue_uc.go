// File: internal/usecase/enqueue_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-response-queue/internal/domain"
	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/repository"
	"ai-response-queue/internal/infra/logging"
)

// Compile-time check
var _ EnqueueUseCase = (*enqueueUC)(nil)

// Limiter is the slice of the rate limiter the enqueue flow needs.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EnqueueInput struct {
	TenantID       string
	WorkspaceID    string
	ConversationID string
	AgentID        string
	Text           string
	Personality    *int
	Features       map[string]bool
	History        []model.Message
}

// EnqueueUseCase validates a new user message, persists it to the durable
// conversation log, and creates the pending job. It never waits for the job
// to run; waking a worker is the transport layer's concern.
type EnqueueUseCase interface {
	Enqueue(ctx context.Context, in EnqueueInput) (*model.Job, error)
}

type enqueueUC struct {
	queue    QueueService
	messages repository.MessageRepository
	tm       repository.TransactionManager
	limiter  Limiter
	rateKey  func(tenantID, conversationID string) string
	ratePerM int
	log      *zerolog.Logger
}

func NewEnqueueUseCase(queue QueueService, messages repository.MessageRepository, tm repository.TransactionManager, limiter Limiter, rateKey func(tenantID, conversationID string) string, ratePerMinute int, log *zerolog.Logger) *enqueueUC {
	return &enqueueUC{
		queue:    queue,
		messages: messages,
		tm:       tm,
		limiter:  limiter,
		rateKey:  rateKey,
		ratePerM: ratePerMinute,
		log:      log,
	}
}

func (u *enqueueUC) Enqueue(ctx context.Context, in EnqueueInput) (*model.Job, error) {
	defer logging.TraceDuration(u.log, "EnqueueUseCase.Enqueue")()

	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" || in.TenantID == "" || in.WorkspaceID == "" || in.ConversationID == "" {
		return nil, domain.ErrInvalidArgument
	}
	// Caller-supplied context is rejected up front, before anything is
	// written, so a bad request never leaves an orphaned message behind.
	for _, m := range in.History {
		if m.Role != model.RoleUser && m.Role != model.RoleAssistant {
			return nil, domain.ErrInvalidArgument
		}
	}

	if u.limiter != nil && u.ratePerM > 0 {
		ok, err := u.limiter.Allow(ctx, u.rateKey(in.TenantID, in.ConversationID), u.ratePerM, time.Minute)
		if err != nil {
			// Rate limiting is advisory; a broken limiter must not block enqueues.
			u.log.Warn().Err(err).Msg("rate limiter unavailable, allowing enqueue")
		} else if !ok {
			return nil, domain.ErrRateLimited
		}
	}

	msg, err := model.NewConversationMessage(in.TenantID, in.WorkspaceID, in.ConversationID, model.RoleUser, in.Text)
	if err != nil {
		return nil, err
	}

	// The history read and the message write share one transaction so two
	// racing enqueues on a conversation cannot build prompts from half-written
	// context. The job is created only after this commits; the user message is
	// durable even if the job never runs.
	history := in.History
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		if len(history) == 0 {
			loaded, err := u.loadHistory(ctx, tx, in)
			if err != nil {
				return err
			}
			history = loaded
		}
		return u.messages.SaveMessage(ctx, tx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	params := model.JobParameters{Personality: model.PersonalityDefault, Features: in.Features}
	if in.Personality != nil {
		params.Personality = *in.Personality
	}

	// history may alias the caller's slice; never grow it in place.
	messages := make([]model.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: in.Text})
	return u.queue.Enqueue(ctx, in.TenantID, in.WorkspaceID, in.ConversationID, in.AgentID, messages, params)
}

// loadHistory pulls recent context from the durable log when the caller did
// not supply any.
func (u *enqueueUC) loadHistory(ctx context.Context, tx repository.Tx, in EnqueueInput) ([]model.Message, error) {
	const contextWindow = 20
	stored, err := u.messages.ListRecent(ctx, tx, in.TenantID, in.WorkspaceID, in.ConversationID, contextWindow)
	if err != nil {
		return nil, err
	}
	history := make([]model.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, model.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}
