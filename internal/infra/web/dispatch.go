package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/infra/worker"
)

// HintDispatcher wakes a worker immediately after an enqueue by posting the
// new job's id to the worker endpoint. The call is dispatched detached and
// its outcome is only logged: losing a hint is fine because the scheduler
// sweep is the durability backstop.
type HintDispatcher struct {
	client *http.Client
	runURL string
	secret string
	pool   *worker.Pool
	log    *zerolog.Logger
}

func NewHintDispatcher(baseURL, secret string, pool *worker.Pool, log *zerolog.Logger) *HintDispatcher {
	return &HintDispatcher{
		client: &http.Client{Timeout: 5 * time.Second},
		runURL: baseURL + "/internal/v1/worker/run",
		secret: secret,
		pool:   pool,
		log:    log,
	}
}

func (d *HintDispatcher) Dispatch(job *model.Job) {
	if d == nil || d.pool == nil {
		return
	}
	hint := workerHint{JobID: job.ID, TenantID: job.TenantID, WorkspaceID: job.WorkspaceID}

	err := d.pool.Submit(func(ctx context.Context) error {
		if err := d.post(ctx, hint); err != nil {
			// Swallowed: the sweep will pick the job up.
			d.log.Warn().Err(err).Str("job_id", hint.JobID).Msg("worker hint failed")
		}
		return nil
	})
	if err != nil {
		d.log.Warn().Err(err).Str("job_id", hint.JobID).Msg("worker hint dropped")
	}
}

func (d *HintDispatcher) post(ctx context.Context, hint workerHint) error {
	body, err := json.Marshal(hint)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.runURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		req.Header.Set("Authorization", "Bearer "+d.secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("worker hint http %d", resp.StatusCode)
	}
	return nil
}
