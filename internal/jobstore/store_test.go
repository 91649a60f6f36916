package jobstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(repo string, createdAt time.Time) *types.ImplementationJob {
	return &types.ImplementationJob{
		ID:        uuid.New(),
		BatchID:   uuid.New(),
		RepoURL:   repo,
		Title:     "Add input validation",
		Status:    types.JobStatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	job := newJob("https://github.com/a/b", time.Now())
	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, types.JobStatusPending, got.Status)

	// Returned copies must not alias the stored record.
	got.Status = types.JobStatusSucceeded
	again, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusPending, again.Status)
}

func TestMemory_GetNotFound(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemory_PutRequiresID(t *testing.T) {
	store := NewMemory()
	assert.Error(t, store.Put(context.Background(), &types.ImplementationJob{}))
	assert.Error(t, store.Put(context.Background(), nil))
}

func TestMemory_StatusIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	job := newJob("https://github.com/a/b", time.Now())
	require.NoError(t, store.Put(ctx, job))

	job.Status = types.JobStatusRunning
	require.NoError(t, store.Put(ctx, job))

	job.Status = types.JobStatusSucceeded
	require.NoError(t, store.Put(ctx, job))

	job.Status = types.JobStatusFailed
	err := store.Put(ctx, job)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, types.JobStatusSucceeded, transitionErr.From)
	assert.Equal(t, types.JobStatusFailed, transitionErr.To)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusSucceeded, got.Status)
}

func TestMemory_ListByRepo_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	base := time.Now()

	oldest := newJob("https://github.com/a/b", base.Add(-2*time.Hour))
	middle := newJob("https://github.com/a/b.git", base.Add(-time.Hour))
	newest := newJob("https://github.com/A/B/", base)
	other := newJob("https://github.com/c/d", base)

	for _, j := range []*types.ImplementationJob{middle, other, oldest, newest} {
		require.NoError(t, store.Put(ctx, j))
	}

	jobs, err := store.ListByRepo(ctx, "https://github.com/a/b")
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, newest.ID, jobs[0].ID)
	assert.Equal(t, middle.ID, jobs[1].ID)
	assert.Equal(t, oldest.ID, jobs[2].ID)

	none, err := store.ListByRepo(ctx, "https://github.com/x/y")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSortMostRecentFirst_SameBatch(t *testing.T) {
	now := time.Now()
	batch := uuid.New()
	jobs := []*types.ImplementationJob{
		{ID: uuid.New(), BatchID: batch, Sequence: 0, CreatedAt: now},
		{ID: uuid.New(), BatchID: batch, Sequence: 1, CreatedAt: now},
		{ID: uuid.New(), BatchID: batch, Sequence: 2, CreatedAt: now},
	}
	SortMostRecentFirst(jobs)
	assert.Equal(t, 2, jobs[0].Sequence)
	assert.Equal(t, 1, jobs[1].Sequence)
	assert.Equal(t, 0, jobs[2].Sequence)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			job := newJob("https://github.com/a/b", time.Now())
			assert.NoError(t, store.Put(ctx, job))
			job.Status = types.JobStatusRunning
			assert.NoError(t, store.Put(ctx, job))
		}()
		go func() {
			defer wg.Done()
			_, err := store.ListByRepo(ctx, "https://github.com/a/b")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	jobs, err := store.ListByRepo(ctx, "https://github.com/a/b")
	require.NoError(t, err)
	assert.Len(t, jobs, 50)
}

func TestNormalizeRepoURL(t *testing.T) {
	assert.Equal(t, "https://github.com/a/b", NormalizeRepoURL(" https://github.com/A/b.git/ "))
	assert.Equal(t, "https://github.com/a/b", NormalizeRepoURL("https://github.com/a/b"))
}

func TestFailInterrupted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range []types.JobStatus{types.JobStatusPending, types.JobStatusRunning} {
		job := newJob("https://github.com/a/b", now.Add(-time.Hour))
		job.Status = status
		require.True(t, FailInterrupted(job, now), status)
		assert.Equal(t, types.JobStatusFailed, job.Status)
		require.NotNil(t, job.Error)
		assert.Equal(t, types.JobErrorTimeout, job.Error.Kind)
		assert.Equal(t, InterruptedMessage, job.Error.Message)
		assert.Equal(t, now, job.UpdatedAt)
	}

	done := newJob("https://github.com/a/b", now.Add(-time.Hour))
	done.Status = types.JobStatusSucceeded
	assert.False(t, FailInterrupted(done, now))
	assert.Equal(t, types.JobStatusSucceeded, done.Status)
	assert.Nil(t, done.Error)
}
