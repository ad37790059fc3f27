// File: internal/usecase/queue_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-response-queue/internal/domain"
	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/repository"
	"ai-response-queue/internal/infra/logging"
	"ai-response-queue/internal/infra/metrics"
)

// Compile-time check
var _ QueueService = (*queueService)(nil)

// UpdateSink receives every accepted streaming update for live fan-out.
// Implementations must be best effort; the append already succeeded.
type UpdateSink interface {
	Publish(ctx context.Context, update *model.JobUpdate)
}

// QueueService owns the job lifecycle. All status mutations in the system go
// through here; nothing else writes a job record.
type QueueService interface {
	Enqueue(ctx context.Context, tenantID, workspaceID, conversationID, agentID string, messages []model.Message, params model.JobParameters) (*model.Job, error)
	ListPending(ctx context.Context, limit int) ([]*model.Job, error)
	Get(ctx context.Context, tenantID, workspaceID, jobID string) (*model.Job, error)

	// Claim atomically moves a pending job to processing. ErrJobConflict
	// means another invocation got there first and is not an error the
	// caller should escalate.
	Claim(ctx context.Context, job *model.Job) error
	Complete(ctx context.Context, job *model.Job, messagesSaved int) error
	Fail(ctx context.Context, job *model.Job, errMsg string, newRetryCount int) error

	// Retry returns a failed job to pending. Fails with ErrRetryExhausted
	// once the job has used up its retry budget.
	Retry(ctx context.Context, job *model.Job) error

	// AppendUpdate records one streaming update. A nil or empty payload is
	// silently dropped so the progress log never carries meaningless entries.
	AppendUpdate(ctx context.Context, jobID string, payload model.UpdatePayload) error
	ListUpdates(ctx context.Context, jobID string) ([]*model.JobUpdate, error)

	// CleanupTerminal is housekeeping, not part of the execution path.
	CleanupTerminal(ctx context.Context, olderThan time.Duration) (int, error)
}

type queueService struct {
	jobs repository.JobRepository
	sink UpdateSink
	log  *zerolog.Logger
}

func NewQueueService(jobs repository.JobRepository, sink UpdateSink, log *zerolog.Logger) *queueService {
	return &queueService{jobs: jobs, sink: sink, log: log}
}

func (s *queueService) Enqueue(ctx context.Context, tenantID, workspaceID, conversationID, agentID string, messages []model.Message, params model.JobParameters) (*model.Job, error) {
	defer logging.TraceDuration(s.log, "QueueService.Enqueue")()

	job, err := model.NewJob(tenantID, workspaceID, conversationID, agentID, messages, params)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Save(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	metrics.IncEnqueued()
	s.log.Info().Str("job_id", job.ID).Str("tenant_id", tenantID).Str("conversation_id", conversationID).Msg("job enqueued")
	return job, nil
}

func (s *queueService) ListPending(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		return []*model.Job{}, nil
	}
	jobs, err := s.jobs.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	return jobs, nil
}

func (s *queueService) Get(ctx context.Context, tenantID, workspaceID, jobID string) (*model.Job, error) {
	return s.jobs.FindByID(ctx, nil, tenantID, workspaceID, jobID)
}

func (s *queueService) Claim(ctx context.Context, job *model.Job) error {
	if !job.CanTransition(model.JobStatusProcessing) {
		return domain.ErrInvalidTransition
	}
	now := time.Now()
	if err := s.jobs.ClaimPending(ctx, job.ID, now); err != nil {
		if err == domain.ErrJobConflict {
			metrics.IncClaimConflict()
		}
		return err
	}
	job.Status = model.JobStatusProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *queueService) Complete(ctx context.Context, job *model.Job, messagesSaved int) error {
	if !job.CanTransition(model.JobStatusCompleted) {
		return domain.ErrInvalidTransition
	}
	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.MessagesSaved = messagesSaved
	job.LastError = ""
	job.CompletedAt = &now
	if err := s.jobs.Save(ctx, nil, job); err != nil {
		return fmt.Errorf("save completed job: %w", err)
	}
	metrics.IncJobProcessed(string(model.JobStatusCompleted))
	return nil
}

func (s *queueService) Fail(ctx context.Context, job *model.Job, errMsg string, newRetryCount int) error {
	if !job.CanTransition(model.JobStatusFailed) {
		return domain.ErrInvalidTransition
	}
	if newRetryCount > model.MaxRetries {
		newRetryCount = model.MaxRetries
	}
	now := time.Now()
	job.Status = model.JobStatusFailed
	job.LastError = errMsg
	job.RetryCount = newRetryCount
	job.CompletedAt = &now
	if err := s.jobs.Save(ctx, nil, job); err != nil {
		return fmt.Errorf("save failed job: %w", err)
	}
	metrics.IncJobProcessed(string(model.JobStatusFailed))
	return nil
}

func (s *queueService) Retry(ctx context.Context, job *model.Job) error {
	if job.Status != model.JobStatusFailed {
		return domain.ErrInvalidTransition
	}
	if job.RetriesLeft() == 0 {
		metrics.IncRetriesExhausted()
		return domain.ErrRetryExhausted
	}
	job.Status = model.JobStatusPending
	job.LastError = ""
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := s.jobs.Save(ctx, nil, job); err != nil {
		return fmt.Errorf("save retried job: %w", err)
	}
	metrics.IncRetried()
	s.log.Info().Str("job_id", job.ID).Int("retry_count", job.RetryCount).Msg("job returned to pending")
	return nil
}

func (s *queueService) AppendUpdate(ctx context.Context, jobID string, payload model.UpdatePayload) error {
	update, ok := model.NewJobUpdate(jobID, payload)
	if !ok {
		// Empty payloads are dropped, not recorded.
		return nil
	}
	if err := s.jobs.AppendUpdate(ctx, nil, update); err != nil {
		return fmt.Errorf("append update: %w", err)
	}
	metrics.IncUpdate(string(update.Kind))
	if s.sink != nil {
		s.sink.Publish(ctx, update)
	}
	return nil
}

func (s *queueService) ListUpdates(ctx context.Context, jobID string) ([]*model.JobUpdate, error) {
	return s.jobs.ListUpdates(ctx, nil, jobID)
}

func (s *queueService) CleanupTerminal(ctx context.Context, olderThan time.Duration) (int, error) {
	defer logging.TraceDuration(s.log, "QueueService.CleanupTerminal")()

	if olderThan <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	cutoff := time.Now().Add(-olderThan)
	count, err := s.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info().Int("count", count).Time("cutoff", cutoff).Msg("terminal jobs cleaned up")
	}
	return count, nil
}
