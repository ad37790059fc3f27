package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"ai-response-queue/internal/domain"
)

type UpdateKind string

const (
	UpdateContentDelta     UpdateKind = "content_delta"
	UpdateToolCallStarted  UpdateKind = "tool_call_started"
	UpdateToolCallFinished UpdateKind = "tool_call_finished"
	UpdateMessageSaved     UpdateKind = "message_saved"
	UpdateError            UpdateKind = "error"
)

// UpdatePayload is the tagged-union side of a streaming update. Each kind has
// exactly one payload shape; the marker method keeps foreign types out.
type UpdatePayload interface {
	Kind() UpdateKind
	Empty() bool
}

// ContentDelta carries one incremental chunk of assistant text.
type ContentDelta struct {
	Text string `json:"text"`
}

func (ContentDelta) Kind() UpdateKind { return UpdateContentDelta }
func (p ContentDelta) Empty() bool    { return p.Text == "" }

// ToolCallStarted signals the generator began executing a named tool.
type ToolCallStarted struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments,omitempty"`
}

func (ToolCallStarted) Kind() UpdateKind { return UpdateToolCallStarted }
func (p ToolCallStarted) Empty() bool    { return p.Tool == "" }

// ToolCallFinished carries the tool's result summary.
type ToolCallFinished struct {
	Tool   string `json:"tool"`
	Result string `json:"result,omitempty"`
}

func (ToolCallFinished) Kind() UpdateKind { return UpdateToolCallFinished }
func (p ToolCallFinished) Empty() bool    { return p.Tool == "" }

// MessageSaved signals the generator durably persisted an assistant message.
type MessageSaved struct {
	MessageID string `json:"message_id"`
}

func (MessageSaved) Kind() UpdateKind { return UpdateMessageSaved }
func (p MessageSaved) Empty() bool    { return p.MessageID == "" }

// UpdateFailure carries a generator-side error notice.
type UpdateFailure struct {
	Message string `json:"message"`
}

func (UpdateFailure) Kind() UpdateKind { return UpdateError }
func (p UpdateFailure) Empty() bool    { return p.Message == "" }

// JobUpdate is one entry of a job's append-only progress log. Entries are
// never mutated or deleted; Timestamp is for display ordering only.
type JobUpdate struct {
	ID        string
	JobID     string
	Kind      UpdateKind
	Data      json.RawMessage
	Timestamp time.Time
}

// NewJobUpdate serializes a payload into a log entry. Returns ok=false when
// the payload is nil or empty; such updates are dropped, not recorded.
func NewJobUpdate(jobID string, payload UpdatePayload) (*JobUpdate, bool) {
	if payload == nil || payload.Empty() {
		return nil, false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return &JobUpdate{
		ID:        uuid.NewString(),
		JobID:     jobID,
		Kind:      payload.Kind(),
		Data:      data,
		Timestamp: time.Now(),
	}, true
}

// DecodePayload rebuilds the typed payload from a stored entry.
func (u *JobUpdate) DecodePayload() (UpdatePayload, error) {
	var (
		p   UpdatePayload
		err error
	)
	switch u.Kind {
	case UpdateContentDelta:
		var v ContentDelta
		err = json.Unmarshal(u.Data, &v)
		p = v
	case UpdateToolCallStarted:
		var v ToolCallStarted
		err = json.Unmarshal(u.Data, &v)
		p = v
	case UpdateToolCallFinished:
		var v ToolCallFinished
		err = json.Unmarshal(u.Data, &v)
		p = v
	case UpdateMessageSaved:
		var v MessageSaved
		err = json.Unmarshal(u.Data, &v)
		p = v
	case UpdateError:
		var v UpdateFailure
		err = json.Unmarshal(u.Data, &v)
		p = v
	default:
		return nil, domain.ErrInvalidArgument
	}
	return p, err
}
