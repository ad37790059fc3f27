package repository

import (
	"context"
	"time"

	"ai-response-queue/internal/domain/model"
)

// JobRepository persists job records and their append-only update logs.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, tenantID, workspaceID, jobID string) (*model.Job, error)

	// ListPending returns up to limit pending jobs across all tenants,
	// oldest first. An empty result is not an error.
	ListPending(ctx context.Context, limit int) ([]*model.Job, error)

	// ClaimPending atomically moves a pending job to processing and sets
	// startedAt. Returns domain.ErrJobConflict when the job is no longer
	// pending, so two concurrent workers can never both claim it.
	ClaimPending(ctx context.Context, jobID string, startedAt time.Time) error

	AppendUpdate(ctx context.Context, tx Tx, update *model.JobUpdate) error
	ListUpdates(ctx context.Context, tx Tx, jobID string) ([]*model.JobUpdate, error)

	// DeleteTerminalBefore removes completed/failed jobs whose updatedAt is
	// older than cutoff, returning the number deleted.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}
