package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"ai-response-queue/internal/domain/model"
)

// UpdatePublisher fans streaming updates out to a per-job channel so an
// observer can tail a job's progress live instead of polling the log table.
// Publishing is best effort: a redis failure is logged and never fails the
// append that triggered it.
type UpdatePublisher struct {
	client RedisClient
	log    *zerolog.Logger
}

func NewUpdatePublisher(client RedisClient, log *zerolog.Logger) *UpdatePublisher {
	return &UpdatePublisher{client: client, log: log}
}

// ChannelFor is the channel name clients subscribe to for one job.
func ChannelFor(jobID string) string {
	return fmt.Sprintf("job:updates:%s", jobID)
}

func (p *UpdatePublisher) Publish(ctx context.Context, update *model.JobUpdate) {
	if p == nil || p.client == nil {
		return
	}
	payload, err := json.Marshal(struct {
		Kind      string          `json:"kind"`
		Data      json.RawMessage `json:"data"`
		Timestamp int64           `json:"timestamp"`
	}{string(update.Kind), update.Data, update.Timestamp.UnixMilli()})
	if err != nil {
		return
	}
	if err := p.client.Publish(ctx, ChannelFor(update.JobID), payload); err != nil {
		p.log.Warn().Err(err).Str("job_id", update.JobID).Msg("update publish failed")
	}
}
