package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"ai-response-queue/internal/domain"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// MaxRetries bounds the failed -> pending backward edge. Once a job has been
// retried this many times it stays failed permanently.
const MaxRetries = 3

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of the conversation context captured at enqueue time.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// JobParameters is the immutable configuration bag attached to a job.
// Personality is a 0..3 level; Features is an optional flag set.
type JobParameters struct {
	Personality int             `json:"personality"`
	Features    map[string]bool `json:"features,omitempty"`
}

const (
	PersonalityMin     = 0
	PersonalityMax     = 3
	PersonalityDefault = 1
)

// Job is the durable unit of queued response-generation work.
// Routing keys, Messages and Parameters are immutable after creation;
// everything else is mutated only through the queue service.
type Job struct {
	ID             string
	Status         JobStatus
	TenantID       string
	WorkspaceID    string
	ConversationID string
	AgentID        string
	Messages       []Message
	Parameters     JobParameters
	RetryCount     int
	LastError      string
	MessagesSaved  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// NewJob validates inputs and builds a pending job. The last message must be
// the user turn the enqueue endpoint just persisted.
func NewJob(tenantID, workspaceID, conversationID, agentID string, messages []Message, params JobParameters) (*Job, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(workspaceID) == "" || strings.TrimSpace(conversationID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len(messages) == 0 || messages[len(messages)-1].Role != RoleUser {
		return nil, domain.ErrInvalidArgument
	}
	for _, m := range messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return nil, domain.ErrInvalidArgument
		}
	}
	if params.Personality < PersonalityMin || params.Personality > PersonalityMax {
		return nil, domain.ErrInvalidArgument
	}

	now := time.Now()
	return &Job{
		ID:             ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Status:         JobStatusPending,
		TenantID:       tenantID,
		WorkspaceID:    workspaceID,
		ConversationID: conversationID,
		AgentID:        agentID,
		Messages:       messages,
		Parameters:     params,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanTransition reports whether moving from the job's current status to the
// target status is legal. failed -> pending is the single backward edge and
// is additionally bounded by RetryCount.
func (j *Job) CanTransition(to JobStatus) bool {
	switch j.Status {
	case JobStatusPending:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusFailed:
		return to == JobStatusPending && j.RetryCount < MaxRetries
	default:
		return false
	}
}

func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

func (j *Job) RetriesLeft() int {
	left := MaxRetries - j.RetryCount
	if left < 0 {
		return 0
	}
	return left
}
