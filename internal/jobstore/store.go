// Package jobstore holds implementation job records for later status queries.
//
// The orchestrator depends only on the Store interface; Memory is the
// process-lifetime implementation and db.JobStore is the durable one.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/types"
)

// ErrNotFound is returned by Get when no job has the requested id.
var ErrNotFound = errors.New("implementation job not found")

// TransitionError is returned by Put when the update would move a job backwards
// or out of a terminal state.
type TransitionError struct {
	JobID uuid.UUID
	From  types.JobStatus
	To    types.JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: invalid status transition %s -> %s", e.JobID, e.From, e.To)
}

// Store persists implementation jobs.
type Store interface {
	// Put inserts or replaces a job. Replacements must respect the status lifecycle.
	Put(ctx context.Context, job *types.ImplementationJob) error
	// Get returns the job with the given id or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*types.ImplementationJob, error)
	// ListByRepo returns all jobs for a repository, most recent first.
	ListByRepo(ctx context.Context, repoURL string) ([]*types.ImplementationJob, error)
}

// NormalizeRepoURL returns the key under which jobs for a repository are grouped.
// Trailing slashes, a ".git" suffix and letter case are ignored.
func NormalizeRepoURL(repoURL string) string {
	key := strings.TrimSpace(repoURL)
	key = strings.TrimRight(key, "/")
	key = strings.TrimSuffix(key, ".git")
	return strings.ToLower(key)
}

// SortMostRecentFirst orders jobs by creation time descending. Jobs created in
// the same instant (one batch) keep reverse input order.
func SortMostRecentFirst(jobs []*types.ImplementationJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.BatchID == b.BatchID {
			return a.Sequence > b.Sequence
		}
		return a.ID.String() > b.ID.String()
	})
}

// CheckTransition validates replacing prev with next.
func CheckTransition(prev, next *types.ImplementationJob) error {
	if prev == nil || prev.Status == next.Status && !prev.Status.IsTerminal() {
		return nil
	}
	if !prev.Status.CanTransition(next.Status) {
		return &TransitionError{JobID: next.ID, From: prev.Status, To: next.Status}
	}
	return nil
}

// InterruptedMessage is recorded on jobs left unfinished by a previous process.
const InterruptedMessage = "interrupted: the server stopped before the job finished"

// FailInterrupted marks a job that can no longer make progress as a failed
// timeout. It reports false for jobs already in a terminal state.
func FailInterrupted(job *types.ImplementationJob, now time.Time) bool {
	if job.Status.IsTerminal() {
		return false
	}
	job.Fail(types.JobErrorTimeout, InterruptedMessage, now)
	return true
}

// Memory is an in-memory Store safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*types.ImplementationJob
	byRepo map[string][]uuid.UUID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:   make(map[uuid.UUID]*types.ImplementationJob),
		byRepo: make(map[string][]uuid.UUID),
	}
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, job *types.ImplementationJob) error {
	if job == nil || job.ID == uuid.Nil {
		return errors.New("job must have an id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, exists := m.jobs[job.ID]
	if err := CheckTransition(prev, job); err != nil {
		return err
	}

	m.jobs[job.ID] = clone(job)
	if !exists {
		key := NormalizeRepoURL(job.RepoURL)
		m.byRepo[key] = append(m.byRepo[key], job.ID)
	}
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (*types.ImplementationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(job), nil
}

// ListByRepo implements Store.
func (m *Memory) ListByRepo(_ context.Context, repoURL string) ([]*types.ImplementationJob, error) {
	m.mu.RLock()
	ids := m.byRepo[NormalizeRepoURL(repoURL)]
	jobs := make([]*types.ImplementationJob, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, clone(m.jobs[id]))
	}
	m.mu.RUnlock()

	SortMostRecentFirst(jobs)
	return jobs, nil
}

// clone returns a copy that shares no mutable state with job.
func clone(job *types.ImplementationJob) *types.ImplementationJob {
	c := *job
	c.TechStack = append([]string(nil), job.TechStack...)
	c.FilesChanged = append([]string(nil), job.FilesChanged...)
	if job.Error != nil {
		e := *job.Error
		c.Error = &e
	}
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
