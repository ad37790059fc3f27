package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-response-queue/internal/domain"
	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, status, tenant_id, workspace_id, conversation_id, agent_id,
messages, parameters, retry_count, last_error, messages_saved,
created_at, updated_at, started_at, completed_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	messages, err := json.Marshal(job.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	params, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO ai_response_jobs (id, status, tenant_id, workspace_id, conversation_id, agent_id,
  messages, parameters, retry_count, last_error, messages_saved,
  created_at, updated_at, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  retry_count = EXCLUDED.retry_count,
  last_error = EXCLUDED.last_error,
  messages_saved = EXCLUDED.messages_saved,
  updated_at = EXCLUDED.updated_at,
  started_at = EXCLUDED.started_at,
  completed_at = EXCLUDED.completed_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.Status, job.TenantID, job.WorkspaceID, job.ConversationID, job.AgentID,
		messages, params, job.RetryCount, job.LastError, job.MessagesSaved,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, workspaceID, jobID string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + `
FROM ai_response_jobs
WHERE id = $1 AND tenant_id = $2 AND workspace_id = $3;`

	row, err := pickRow(ctx, r.pool, tx, q, jobID, tenantID, workspaceID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ListPending(ctx context.Context, limit int) ([]*model.Job, error) {
	q := `SELECT ` + jobColumns + `
FROM ai_response_jobs
WHERE status = 'pending'
ORDER BY created_at
LIMIT $1;`

	rows, err := pickRows(ctx, r.pool, nil, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*model.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimPending is the atomic pending -> processing transition. The WHERE
// clause is the guard: a concurrent invocation that lost the race sees zero
// rows affected and gets ErrJobConflict instead of executing the job twice.
func (r *jobRepo) ClaimPending(ctx context.Context, jobID string, startedAt time.Time) error {
	const q = `
UPDATE ai_response_jobs
SET status = 'processing', started_at = $2, updated_at = $2
WHERE id = $1 AND status = 'pending';`

	tag, err := execSQL(ctx, r.pool, nil, q, jobID, startedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish "lost the race" from "no such job".
	row, err := pickRow(ctx, r.pool, nil, `SELECT status FROM ai_response_jobs WHERE id = $1;`, jobID)
	if err != nil {
		return err
	}
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return domain.ErrReadDatabaseRow
	}
	return domain.ErrJobConflict
}

func (r *jobRepo) AppendUpdate(ctx context.Context, tx repository.Tx, update *model.JobUpdate) error {
	const q = `
INSERT INTO job_updates (id, job_id, kind, data, created_at)
VALUES ($1, $2, $3, $4, $5);`

	_, err := execSQL(ctx, r.pool, tx, q,
		update.ID, update.JobID, update.Kind, []byte(update.Data), update.Timestamp)
	return err
}

func (r *jobRepo) ListUpdates(ctx context.Context, tx repository.Tx, jobID string) ([]*model.JobUpdate, error) {
	const q = `
SELECT id, job_id, kind, data, created_at
FROM job_updates
WHERE job_id = $1
ORDER BY created_at, id;`

	rows, err := pickRows(ctx, r.pool, tx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []*model.JobUpdate
	for rows.Next() {
		var (
			u    model.JobUpdate
			kind string
			data []byte
		)
		if err := rows.Scan(&u.ID, &u.JobID, &kind, &data, &u.Timestamp); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		u.Kind = model.UpdateKind(kind)
		u.Data = json.RawMessage(data)
		updates = append(updates, &u)
	}
	return updates, rows.Err()
}

func (r *jobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `
DELETE FROM ai_response_jobs
WHERE status IN ('completed', 'failed') AND updated_at < $1;`

	tag, err := execSQL(ctx, r.pool, nil, q, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job      model.Job
		status   string
		messages []byte
		params   []byte
	)
	err := row.Scan(
		&job.ID, &status, &job.TenantID, &job.WorkspaceID, &job.ConversationID, &job.AgentID,
		&messages, &params, &job.RetryCount, &job.LastError, &job.MessagesSaved,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, translateScanErr(err)
	}
	job.Status = model.JobStatus(status)
	if err := json.Unmarshal(messages, &job.Messages); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(params, &job.Parameters); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &job, nil
}
