//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-response-queue/internal/domain"
	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/repository"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// memJobRepo is a small in-memory implementation used by unit tests.
// Its ClaimPending mirrors the store's conditional-update semantics.
type memJobRepo struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	updates   map[string][]*model.JobUpdate
	saveErr   error // used by tests to simulate save failures
	appendErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*model.Job{}, updates: map[string][]*model.JobUpdate{}}
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, workspaceID, jobID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.TenantID != tenantID || j.WorkspaceID != workspaceID {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ListPending(ctx context.Context, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if j.Status == model.JobStatusPending {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobRepo) ClaimPending(ctx context.Context, jobID string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != model.JobStatusPending {
		return domain.ErrJobConflict
	}
	j.Status = model.JobStatusProcessing
	j.StartedAt = &startedAt
	j.UpdatedAt = startedAt
	return nil
}

func (m *memJobRepo) AppendUpdate(ctx context.Context, tx repository.Tx, update *model.JobUpdate) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[update.JobID] = append(m.updates[update.JobID], update)
	return nil
}

func (m *memJobRepo) ListUpdates(ctx context.Context, tx repository.Tx, jobID string) ([]*model.JobUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.JobUpdate(nil), m.updates[jobID]...), nil
}

func (m *memJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, j := range m.jobs {
		if j.IsTerminal() && j.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			count++
		}
	}
	return count, nil
}

// memMessageRepo records the order of writes so tests can assert the user
// message is durable before the job exists.
type memMessageRepo struct {
	mu      sync.Mutex
	saved   []*model.ConversationMessage
	saveErr error
	listErr error
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{}
}

func (m *memMessageRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.ConversationMessage) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.saved = append(m.saved, &cp)
	return nil
}

func (m *memMessageRepo) ListRecent(ctx context.Context, tx repository.Tx, tenantID, workspaceID, conversationID string, limit int) ([]*model.ConversationMessage, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ConversationMessage
	for _, msg := range m.saved {
		if msg.TenantID == tenantID && msg.WorkspaceID == workspaceID && msg.ConversationID == conversationID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// mockTxManager runs the callback without a real transaction. Tests that need
// to fail or observe the transactional section assign WithTxFunc.
type mockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	calls      int
}

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// recordingSink captures fan-out publishes.
type recordingSink struct {
	mu        sync.Mutex
	published []*model.JobUpdate
}

func (s *recordingSink) Publish(ctx context.Context, update *model.JobUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, update)
}

// stubLimiter answers Allow with a fixed verdict.
type stubLimiter struct {
	allow bool
	err   error
	calls int
}

func (l *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.calls++
	return l.allow, l.err
}
