// Package types provides type definitions for structured data used throughout the codecraft service.
package types

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an ImplementationJob.
type JobStatus string

// Job status constants. A job only ever moves forward through these states.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case "", JobStatusPending:
		return next == JobStatusPending || next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusRunning || next.IsTerminal()
	default:
		return false
	}
}

// ImplementationDetails describes what a recommendation changes and where.
type ImplementationDetails struct {
	Summary string   `json:"summary,omitempty"`
	Steps   []string `json:"steps,omitempty"`
	Files   []string `json:"files,omitempty"`
	Changes []string `json:"changes,omitempty"`
	Code    string   `json:"code,omitempty"`
}

// IsEmpty reports whether no implementation detail was supplied.
func (d ImplementationDetails) IsEmpty() bool {
	return d.Summary == "" && len(d.Steps) == 0 && len(d.Files) == 0 && len(d.Changes) == 0 && d.Code == ""
}

// Recommendation is an AI-suggested improvement for a repository.
type Recommendation struct {
	Title          string                `json:"title" validate:"required"`
	Description    string                `json:"description,omitempty"`
	Category       string                `json:"category,omitempty"`
	Difficulty     string                `json:"difficulty,omitempty"`
	Priority       string                `json:"priority,omitempty"`
	Impact         string                `json:"impact,omitempty"`
	TechStack      []string              `json:"techStack,omitempty"`
	Implementation ImplementationDetails `json:"implementation"`
}

// AnalysisData is the optional AI analysis context passed along with a request.
// It enriches the generator instructions and never changes control flow.
type AnalysisData struct {
	Summary         string           `json:"summary,omitempty"`
	Scores          map[string]int   `json:"scores,omitempty"`
	Strengths       []string         `json:"strengths,omitempty"`
	Weaknesses      []string         `json:"weaknesses,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// UnmarshalJSON rounds scores to integers in [0, 100] and skips scores that
// are not numbers.
func (a *AnalysisData) UnmarshalJSON(data []byte) error {
	type plain AnalysisData
	var aux struct {
		plain
		Scores map[string]any `json:"scores,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = AnalysisData(aux.plain)
	a.Scores = nil
	for key, v := range aux.Scores {
		n, ok := v.(float64)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			continue
		}
		if a.Scores == nil {
			a.Scores = make(map[string]int, len(aux.Scores))
		}
		a.Scores[key] = int(math.Round(math.Max(0, math.Min(100, n))))
	}
	return nil
}

// JobErrorKind classifies why a job failed.
type JobErrorKind string

// Job error kinds.
const (
	JobErrorValidation JobErrorKind = "validation"
	JobErrorUpstream   JobErrorKind = "upstream"
	JobErrorTimeout    JobErrorKind = "timeout"
)

// JobError is the failure detail recorded on a failed job.
type JobError struct {
	Kind    JobErrorKind `json:"kind"`
	Message string       `json:"message"`
}

// ImplementationJob is one execution attempt of a single recommendation against one repository.
type ImplementationJob struct {
	ID                uuid.UUID  `json:"id"`
	BatchID           uuid.UUID  `json:"batchId"`
	Sequence          int        `json:"sequence"`
	RepoURL           string     `json:"repoUrl"`
	ProjectName       string     `json:"projectName"`
	TechStack         []string   `json:"techStack,omitempty"`
	Difficulty        string     `json:"difficulty,omitempty"`
	Category          string     `json:"category,omitempty"`
	Title             string     `json:"title"`
	Status            JobStatus  `json:"status"`
	Branch            string     `json:"branch,omitempty"`
	PullRequestURL    string     `json:"pullRequestUrl,omitempty"`
	PullRequestNumber int        `json:"pullRequestNumber,omitempty"`
	CommitSHA         string     `json:"commitSha,omitempty"`
	FilesChanged      []string   `json:"filesChanged,omitempty"`
	Error             *JobError  `json:"error,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	StartedAt         *time.Time `json:"startedAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// Fail moves the job to failed with the given reason.
func (j *ImplementationJob) Fail(kind JobErrorKind, message string, now time.Time) {
	j.Status = JobStatusFailed
	j.Error = &JobError{Kind: kind, Message: message}
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// BatchRun is an ordered group of jobs sharing one repository and project context.
type BatchRun struct {
	ID                uuid.UUID            `json:"id"`
	RepoURL           string               `json:"repoUrl"`
	ProjectName       string               `json:"projectName"`
	CreateSeparatePRs bool                 `json:"createSeparatePRs"`
	Branch            string               `json:"branch,omitempty"`
	PullRequestURL    string               `json:"pullRequestUrl,omitempty"`
	Jobs              []*ImplementationJob `json:"jobs"`
	Total             int                  `json:"total"`
	Succeeded         int                  `json:"succeeded"`
	Failed            int                  `json:"failed"`
	CreatedAt         time.Time            `json:"createdAt"`
}

// Tally recomputes the summary counts from the batch's jobs.
func (b *BatchRun) Tally() {
	b.Total = len(b.Jobs)
	b.Succeeded, b.Failed = 0, 0
	for _, j := range b.Jobs {
		switch j.Status {
		case JobStatusSucceeded:
			b.Succeeded++
		case JobStatusFailed:
			b.Failed++
		}
	}
}

// Feasibility is the plan-mode assessment of a recommendation.
type Feasibility string

// Feasibility values.
const (
	FeasibilityReady       Feasibility = "ready"
	FeasibilityNeedsReview Feasibility = "needs-review"
	FeasibilityBlocked     Feasibility = "blocked"
)

// Plan describes what executing a recommendation would do, without doing it.
type Plan struct {
	Sequence    int         `json:"sequence"`
	Title       string      `json:"title"`
	Category    string      `json:"category,omitempty"`
	Difficulty  string      `json:"difficulty,omitempty"`
	Branch      string      `json:"branch,omitempty"`
	Files       []string    `json:"files"`
	Changes     []string    `json:"changes"`
	Feasibility Feasibility `json:"feasibility"`
	Notes       []string    `json:"notes,omitempty"`
	Valid       bool        `json:"valid"`
	Error       string      `json:"error,omitempty"`
}

// UnmarshalJSON accepts either a details object or a bare string, which is
// treated as the summary.
func (d *ImplementationDetails) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*d = ImplementationDetails{Summary: text}
		return nil
	}
	type plain ImplementationDetails
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = ImplementationDetails(p)
	return nil
}
