package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/codecraft/internal/jobstore"
	"github.com/jonathan/codecraft/internal/types"
)

// JobStore is a jobstore.Store backed by the implementation_jobs table. The
// full job is kept as JSONB; the indexed columns exist for lookups and ordering.
type JobStore struct {
	db *DB
}

var _ jobstore.Store = (*JobStore)(nil)

// NewJobStore creates a JobStore on db.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// Put implements jobstore.Store. The previous row is locked while the status
// transition is checked.
func (s *JobStore) Put(ctx context.Context, job *types.ImplementationJob) error {
	if job == nil || job.ID == uuid.Nil {
		return errors.New("job must have an id")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return s.db.inTx(ctx, func(tx pgx.Tx) error {
		var prevStatus string
		err := tx.QueryRow(ctx, `SELECT status FROM implementation_jobs WHERE id = $1 FOR UPDATE`, job.ID).Scan(&prevStatus)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to load job %s: %w", job.ID, err)
		default:
			prev := &types.ImplementationJob{ID: job.ID, Status: types.JobStatus(prevStatus)}
			if err := jobstore.CheckTransition(prev, job); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO implementation_jobs (id, batch_id, sequence, repo_key, status, payload, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET status = $5, payload = $6, updated_at = $8`,
			job.ID, job.BatchID, job.Sequence, jobstore.NormalizeRepoURL(job.RepoURL), string(job.Status),
			payload, job.CreatedAt, job.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save job %s: %w", job.ID, err)
		}
		return nil
	})
}

// Get implements jobstore.Store.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*types.ImplementationJob, error) {
	var payload []byte
	err := s.db.pool.QueryRow(ctx, `SELECT payload FROM implementation_jobs WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jobstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return decodeJob(payload)
}

// ListByRepo implements jobstore.Store.
func (s *JobStore) ListByRepo(ctx context.Context, repoURL string) ([]*types.ImplementationJob, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT payload FROM implementation_jobs WHERE repo_key = $1 ORDER BY created_at DESC, sequence DESC`,
		jobstore.NormalizeRepoURL(repoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*types.ImplementationJob{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job, err := decodeJob(payload)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobstore.SortMostRecentFirst(jobs)
	return jobs, nil
}

// FailInterrupted fails every pending or running job. Jobs run in-process, so
// at startup any such row belongs to a process that is gone.
func (s *JobStore) FailInterrupted(ctx context.Context, now time.Time) (int, error) {
	failed := 0
	err := s.db.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT payload FROM implementation_jobs WHERE status IN ($1, $2) FOR UPDATE`,
			string(types.JobStatusPending), string(types.JobStatusRunning))
		if err != nil {
			return fmt.Errorf("failed to find interrupted jobs: %w", err)
		}
		var jobs []*types.ImplementationJob
		for rows.Next() {
			var payload []byte
			if err := rows.Scan(&payload); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan job: %w", err)
			}
			job, err := decodeJob(payload)
			if err != nil {
				rows.Close()
				return err
			}
			jobs = append(jobs, job)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to find interrupted jobs: %w", err)
		}

		for _, job := range jobs {
			if !jobstore.FailInterrupted(job, now) {
				continue
			}
			payload, err := json.Marshal(job)
			if err != nil {
				return fmt.Errorf("failed to marshal job: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`UPDATE implementation_jobs SET status = $2, payload = $3, updated_at = $4 WHERE id = $1`,
				job.ID, string(job.Status), payload, job.UpdatedAt,
			); err != nil {
				return fmt.Errorf("failed to fail job %s: %w", job.ID, err)
			}
			failed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return failed, nil
}

func decodeJob(payload []byte) (*types.ImplementationJob, error) {
	var job types.ImplementationJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}
