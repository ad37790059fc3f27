package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-response-queue/internal/domain"
	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/infra/redis"
	"ai-response-queue/internal/usecase"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

type enqueueRequest struct {
	TenantID    string          `json:"tenant_id"`
	WorkspaceID string          `json:"workspace_id"`
	AgentID     string          `json:"agent_id,omitempty"`
	Message     string          `json:"message"`
	Personality *int            `json:"personality,omitempty"`
	Features    map[string]bool `json:"features,omitempty"`
	History     []model.Message `json:"history,omitempty"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	job, err := s.enqueueUC.Enqueue(r.Context(), usecase.EnqueueInput{
		TenantID:       req.TenantID,
		WorkspaceID:    req.WorkspaceID,
		ConversationID: chi.URLParam(r, "conversationID"),
		AgentID:        req.AgentID,
		Text:           req.Message,
		Personality:    req.Personality,
		Features:       req.Features,
		History:        req.History,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid_request", "message, tenant_id, workspace_id and conversation id are required")
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many messages for this conversation")
		default:
			s.log.Error().Err(err).Msg("enqueue failed")
			writeError(w, http.StatusInternalServerError, "internal", "could not enqueue the message")
		}
		return
	}

	// Best-effort wake-up. The periodic sweep guarantees the job runs even if
	// this hint never arrives.
	s.dispatcher.Dispatch(job)

	writeJSON(w, http.StatusAccepted, struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}{JobID: job.ID, Status: "queued"})
}

type workerHint struct {
	JobID       string `json:"job_id"`
	TenantID    string `json:"tenant_id"`
	WorkspaceID string `json:"workspace_id"`
}

func (s *Server) handleWorkerRun(w http.ResponseWriter, r *http.Request) {
	var hint workerHint
	// An empty or absent body means a scheduler-style sweep.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&hint)
	}

	// Execution must outlive the hint request. The dispatcher's client gives
	// up after a few seconds, and a generation routinely runs longer than
	// that; a disconnecting caller must not abort a claimed job.
	ctx := context.WithoutCancel(r.Context())

	if hint.JobID != "" {
		writeJSON(w, http.StatusOK, s.executor.RunHinted(ctx, hint.TenantID, hint.WorkspaceID, hint.JobID))
		return
	}
	writeJSON(w, http.StatusOK, s.executor.RunSweep(ctx, s.sweepLimit))
}

type jobResponse struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	ConversationID string     `json:"conversation_id"`
	AgentID        string     `json:"agent_id,omitempty"`
	RetryCount     int        `json:"retry_count"`
	RetriesLeft    int        `json:"retries_left"`
	Error          string     `json:"error,omitempty"`
	MessagesSaved  int        `json:"messages_saved,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	workspaceID := r.URL.Query().Get("workspace_id")
	if tenantID == "" || workspaceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tenant_id and workspace_id query parameters are required")
		return
	}

	job, err := s.queue.Get(r.Context(), tenantID, workspaceID, chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such job")
			return
		}
		s.log.Error().Err(err).Msg("job read failed")
		writeError(w, http.StatusInternalServerError, "internal", "could not read the job")
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		ID:             job.ID,
		Status:         string(job.Status),
		ConversationID: job.ConversationID,
		AgentID:        job.AgentID,
		RetryCount:     job.RetryCount,
		RetriesLeft:    job.RetriesLeft(),
		Error:          job.LastError,
		MessagesSaved:  job.MessagesSaved,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	})
}

type updateResponse struct {
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func (s *Server) handleListUpdates(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	workspaceID := r.URL.Query().Get("workspace_id")
	if tenantID == "" || workspaceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tenant_id and workspace_id query parameters are required")
		return
	}
	jobID := chi.URLParam(r, "jobID")

	// The log is only addressable through the job's own partition keys.
	if _, err := s.queue.Get(r.Context(), tenantID, workspaceID, jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such job")
			return
		}
		s.log.Error().Err(err).Str("job_id", jobID).Msg("job read failed")
		writeError(w, http.StatusInternalServerError, "internal", "could not read the job")
		return
	}

	updates, err := s.queue.ListUpdates(r.Context(), jobID)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("update log read failed")
		writeError(w, http.StatusInternalServerError, "internal", "could not read the update log")
		return
	}

	out := make([]updateResponse, 0, len(updates))
	for _, u := range updates {
		out = append(out, updateResponse{Kind: string(u.Kind), Data: u.Data, Timestamp: u.Timestamp})
	}

	writeJSON(w, http.StatusOK, struct {
		JobID   string           `json:"job_id"`
		Channel string           `json:"live_channel"`
		Updates []updateResponse `json:"updates"`
	}{JobID: jobID, Channel: redis.ChannelFor(jobID), Updates: out})
}

type cleanupRequest struct {
	OlderThan string `json:"older_than"` // Go duration, e.g. "720h"
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	olderThan, err := time.ParseDuration(req.OlderThan)
	if err != nil || olderThan <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "older_than must be a positive duration")
		return
	}

	count, err := s.queue.CleanupTerminal(r.Context(), olderThan)
	if err != nil {
		s.log.Error().Err(err).Msg("cleanup failed")
		writeError(w, http.StatusInternalServerError, "internal", "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Deleted int `json:"deleted"`
	}{Deleted: count})
}
