package adapter

import (
	"context"

	"ai-response-queue/internal/domain/model"
)

// UpdateFunc receives one typed progress event. Implementations must not
// assume the callback's outcome blocks generation; errors are the caller's
// problem to log, never the generator's to retry.
type UpdateFunc func(payload model.UpdatePayload)

// GenerationRequest is everything the generator needs to produce a reply.
type GenerationRequest struct {
	TenantID       string
	WorkspaceID    string
	ConversationID string
	AgentID        string
	Messages       []model.Message
	Parameters     model.JobParameters
}

// GenerationResult is the generator's final outcome. MessagesSaved counts
// assistant messages it durably persisted while running.
type GenerationResult struct {
	Success       bool
	MessagesSaved int
	Error         string
}

// ResponseGenerator turns a message history into a reply. The pipeline treats
// it as a black box: it only forwards emitted events and records the outcome.
type ResponseGenerator interface {
	Generate(ctx context.Context, req GenerationRequest, onUpdate UpdateFunc) (GenerationResult, error)
}
