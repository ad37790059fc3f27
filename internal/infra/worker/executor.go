package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-response-queue/internal/domain"
	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/adapter"
	"ai-response-queue/internal/infra/logging"
	"ai-response-queue/internal/infra/metrics"
	"ai-response-queue/internal/usecase"
)

// Summary is what a single worker invocation reports back.
type Summary struct {
	Processed int      `json:"processed"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Executor drives claimed jobs through the response generator. It is
// stateless; concurrent invocations coordinate only through the job store's
// atomic claim.
type Executor struct {
	queue usecase.QueueService
	gen   adapter.ResponseGenerator
	log   *zerolog.Logger
}

func NewExecutor(queue usecase.QueueService, gen adapter.ResponseGenerator, log *zerolog.Logger) *Executor {
	return &Executor{queue: queue, gen: gen, log: log}
}

// RunHinted executes exactly the hinted job. A job that is missing or no
// longer pending is a no-op: another invocation is handling it, or it is done.
func (e *Executor) RunHinted(ctx context.Context, tenantID, workspaceID, jobID string) Summary {
	var sum Summary

	job, err := e.queue.Get(ctx, tenantID, workspaceID, jobID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.log.Error().Err(err).Str("job_id", jobID).Msg("hinted job load failed")
			sum.Errors = append(sum.Errors, err.Error())
		}
		return sum
	}
	if job.Status != model.JobStatusPending {
		e.log.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("hinted job not pending, skipping")
		return sum
	}

	e.runOne(ctx, job, &sum)
	return sum
}

// RunSweep claims up to limit globally oldest pending jobs and executes them
// sequentially. Each job's outcome is independent; a store failure on one
// never aborts the rest of the batch.
func (e *Executor) RunSweep(ctx context.Context, limit int) Summary {
	var sum Summary

	jobs, err := e.queue.ListPending(ctx, limit)
	if err != nil {
		e.log.Error().Err(err).Msg("pending sweep query failed")
		sum.Errors = append(sum.Errors, err.Error())
		return sum
	}
	metrics.ObserveSweep(len(jobs))

	for _, job := range jobs {
		e.runOne(ctx, job, &sum)
	}
	return sum
}

// Sweep adapts RunSweep to the scheduler's narrow interface.
func (e *Executor) Sweep(ctx context.Context, limit int) int {
	return e.RunSweep(ctx, limit).Processed
}

func (e *Executor) runOne(ctx context.Context, job *model.Job, sum *Summary) {
	ctx = logging.WithJobID(ctx, job.ID)
	ctx = logging.WithTenantID(ctx, job.TenantID)
	ctx = logging.WithConversationID(ctx, job.ConversationID)
	log := *logging.With(ctx, e.log)

	if err := e.queue.Claim(ctx, job); err != nil {
		if errors.Is(err, domain.ErrJobConflict) {
			// Lost the claim race; the winner is executing it.
			log.Debug().Msg("claim conflict, job already handled")
			return
		}
		log.Error().Err(err).Msg("claim failed")
		sum.Errors = append(sum.Errors, fmt.Sprintf("%s: claim: %v", job.ID, err))
		return
	}

	sum.Processed++
	log.Info().Int("messages", len(job.Messages)).Msg("processing job")

	// Once claimed, the job must reach a recorded outcome. Status writes use
	// a context that survives cancellation of the generation; otherwise an
	// aborted stream leaves the job in processing, which the pending sweep
	// never revisits.
	statusCtx := context.WithoutCancel(ctx)
	start := time.Now()

	result, genErr := e.gen.Generate(ctx, adapter.GenerationRequest{
		TenantID:       job.TenantID,
		WorkspaceID:    job.WorkspaceID,
		ConversationID: job.ConversationID,
		AgentID:        job.AgentID,
		Messages:       job.Messages,
		Parameters:     job.Parameters,
	}, func(payload model.UpdatePayload) {
		if err := e.queue.AppendUpdate(ctx, job.ID, payload); err != nil {
			log.Warn().Err(err).Msg("streaming update dropped")
		}
	})
	latency := time.Since(start)

	if genErr == nil && result.Success {
		metrics.ObserveGeneration(int(latency/time.Millisecond), true)
		if err := e.queue.Complete(statusCtx, job, result.MessagesSaved); err != nil {
			log.Error().Err(err).Msg("could not mark job completed")
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: complete: %v", job.ID, err))
			return
		}
		sum.Completed++
		log.Info().Dur("duration", latency).Int("messages_saved", result.MessagesSaved).Msg("job completed")
		return
	}

	metrics.ObserveGeneration(int(latency/time.Millisecond), false)
	reason := result.Error
	if genErr != nil {
		reason = genErr.Error()
	}
	if reason == "" {
		reason = "generator reported failure"
	}
	log.Error().Str("reason", reason).Dur("duration", latency).Msg("job failed")

	if err := e.queue.Fail(statusCtx, job, reason, job.RetryCount+1); err != nil {
		log.Error().Err(err).Msg("could not mark job failed")
		sum.Errors = append(sum.Errors, fmt.Sprintf("%s: fail: %v", job.ID, err))
		return
	}
	sum.Failed++

	if err := e.queue.Retry(statusCtx, job); err != nil {
		// Exhausted retries stay failed; anything else is logged, not escalated.
		if errors.Is(err, domain.ErrRetryExhausted) {
			log.Warn().Int("retry_count", job.RetryCount).Msg("retries exhausted, job stays failed")
		} else {
			log.Error().Err(err).Msg("retry failed")
		}
	}
}
