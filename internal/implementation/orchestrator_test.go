package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonathan/codecraft/internal/gemini"
	"github.com/jonathan/codecraft/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repoURL = "https://github.com/a/b"

func rec(title string) types.Recommendation {
	return types.Recommendation{Title: title, Category: "security", Difficulty: "easy"}
}

func boolPtr(b bool) *bool { return &b }

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}

func TestGenerate_Succeeds(t *testing.T) {
	h := newHarness(t, Options{})
	r := rec("Add input validation")
	r.Implementation = types.ImplementationDetails{Summary: "Validate request bodies", Files: []string{"handlers.go"}}

	job, err := h.orch.Generate(context.Background(), GenerateRequest{
		RepoURL:        repoURL,
		ProjectName:    "b",
		TechStack:      []string{"Go"},
		Implementation: &r,
		AnalysisData:   &types.AnalysisData{Summary: "decent"},
	})
	require.NoError(t, err)

	assert.Equal(t, types.JobStatusSucceeded, job.Status)
	assert.Equal(t, "ai/b/add-input-validation", job.Branch)
	assert.Equal(t, "https://github.com/a/b/pull/1", job.PullRequestURL)
	assert.Equal(t, 1, job.PullRequestNumber)
	assert.NotEmpty(t, job.CommitSHA)
	assert.NotEmpty(t, job.FilesChanged)
	assert.Equal(t, []string{"Go"}, job.TechStack)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	assert.Nil(t, job.Error)

	require.Len(t, h.prs.created, 1)
	pr := h.prs.created[0]
	assert.Equal(t, "[AI] Add input validation", pr.Title)
	assert.Equal(t, "main", pr.Base)
	assert.Equal(t, []string{"ai-implementation", "category:security"}, pr.Labels)
	assert.Contains(t, pr.Body, "**Category:** security")
	assert.Contains(t, pr.Body, "**Difficulty:** easy")
	assert.Contains(t, pr.Body, "Validate request bodies")

	require.Len(t, h.bootstrap.calls, 1)
	assert.Equal(t, "b", h.bootstrap.calls[0].ProjectName)
	assert.Equal(t, "decent", h.bootstrap.calls[0].Analysis.Summary)

	stored, err := h.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusSucceeded, stored.Status)
	assert.Equal(t, job.PullRequestURL, stored.PullRequestURL)
}

func TestGenerate_ValidationErrors(t *testing.T) {
	valid := rec("Add tests")
	empty := rec("   ")

	tests := []struct {
		name  string
		req   GenerateRequest
		field string
	}{
		{"missing repo", GenerateRequest{ProjectName: "b", Implementation: &valid}, "repoUrl"},
		{"bad repo", GenerateRequest{RepoURL: "not a repo", ProjectName: "b", Implementation: &valid}, "repoUrl"},
		{"missing project", GenerateRequest{RepoURL: repoURL, Implementation: &valid}, "projectName"},
		{"missing implementation", GenerateRequest{RepoURL: repoURL, ProjectName: "b"}, "implementation"},
		{"blank title", GenerateRequest{RepoURL: repoURL, ProjectName: "b", Implementation: &empty}, "implementation.title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			job, err := h.orch.Generate(context.Background(), tt.req)
			assert.Nil(t, job)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Zero(t, h.runner.calls)

			jobs, err := h.store.ListByRepo(context.Background(), repoURL)
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestGenerate_FailuresAreReportedOnJob(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		kind    types.JobErrorKind
		message string
	}{
		{
			name:  "timeout",
			setup: func(h *harness) { h.runner.errFor["Improvement: Add tests"] = gemini.ErrTimeout },
			kind:  types.JobErrorTimeout,
		},
		{
			name: "nonzero exit",
			setup: func(h *harness) {
				h.runner.errFor["Improvement: Add tests"] = &gemini.ExecutionError{ExitCode: 2, Stderr: "boom"}
			},
			kind:    types.JobErrorUpstream,
			message: "gemini execution failed (exit 2): boom",
		},
		{
			name:    "no changes",
			setup:   func(h *harness) { h.runner.noChange["Improvement: Add tests"] = true },
			kind:    types.JobErrorUpstream,
			message: "no changes produced",
		},
		{
			name:  "clone failure",
			setup: func(h *harness) { h.workspace.leaseErr = errors.New("authentication required") },
			kind:  types.JobErrorUpstream,
		},
		{
			name:  "pull request failure",
			setup: func(h *harness) { h.prs.createErr = errors.New("403 forbidden") },
			kind:  types.JobErrorUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			tt.setup(h)
			r := rec("Add tests")

			job, err := h.orch.Generate(context.Background(), GenerateRequest{RepoURL: repoURL, ProjectName: "b", Implementation: &r})
			require.NoError(t, err)
			require.NotNil(t, job)

			assert.Equal(t, types.JobStatusFailed, job.Status)
			require.NotNil(t, job.Error)
			assert.Equal(t, tt.kind, job.Error.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, job.Error.Message)
			}
			assert.Empty(t, job.PullRequestURL)
			assert.NotNil(t, job.CompletedAt)

			stored, err := h.store.Get(context.Background(), job.ID)
			require.NoError(t, err)
			assert.Equal(t, types.JobStatusFailed, stored.Status)
		})
	}
}

func TestGenerate_ReusesOpenPullRequest(t *testing.T) {
	h := newHarness(t, Options{})
	r := rec("Add tests")
	req := GenerateRequest{RepoURL: repoURL, ProjectName: "b", Implementation: &r}

	first, err := h.orch.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := h.orch.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.JobStatusSucceeded, second.Status)
	assert.Equal(t, first.PullRequestURL, second.PullRequestURL)
	assert.Len(t, h.prs.created, 1)
	assert.Equal(t, []int{1}, h.prs.updated)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestBatch_PartialValidationFailure(t *testing.T) {
	h := newHarness(t, Options{MaxConcurrency: 2})

	batch, err := h.orch.Batch(context.Background(), BatchRequest{
		RepoURL:     repoURL,
		ProjectName: "b",
		Category:    "quality",
		Implementations: []types.Recommendation{
			{Title: "Add tests"},
			{Title: ""},
			{Title: "Add tests"},
			{Title: "Add CI", Category: "devops"},
		},
	})
	require.NoError(t, err)
	require.Len(t, batch.Jobs, 4)

	for i, job := range batch.Jobs {
		assert.Equal(t, i, job.Sequence)
		assert.Equal(t, batch.ID, job.BatchID)
	}

	assert.Equal(t, types.JobStatusFailed, batch.Jobs[1].Status)
	require.NotNil(t, batch.Jobs[1].Error)
	assert.Equal(t, types.JobErrorValidation, batch.Jobs[1].Error.Kind)
	assert.Nil(t, batch.Jobs[1].StartedAt)

	for _, i := range []int{0, 2, 3} {
		assert.Equal(t, types.JobStatusSucceeded, batch.Jobs[i].Status, "job %d", i)
	}

	assert.Equal(t, "ai/b/add-tests", batch.Jobs[0].Branch)
	assert.Equal(t, "ai/b/add-tests-2", batch.Jobs[2].Branch)
	assert.Equal(t, "ai/b/add-ci", batch.Jobs[3].Branch)
	assert.Equal(t, "quality", batch.Jobs[0].Category)
	assert.Equal(t, "devops", batch.Jobs[3].Category)

	assert.Equal(t, 4, batch.Total)
	assert.Equal(t, 3, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 3, h.runner.calls)
	assert.Len(t, h.prs.created, 3)

	jobs, err := h.store.ListByRepo(context.Background(), repoURL)
	require.NoError(t, err)
	assert.Len(t, jobs, 4)
}

func TestBatch_MalformedElementFailsOnlyItsJob(t *testing.T) {
	h := newHarness(t, Options{})

	var req BatchRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"repoUrl": "https://github.com/a/b",
		"projectName": "b",
		"implementations": ["just a string", {"title": "Typed", "techStack": "Go"}, {"title": "Add tests"}],
		"analysisData": {"summary": "ok", "strengths": "not a list"}
	}`), &req))
	assert.Nil(t, req.AnalysisData)

	batch, err := h.orch.Batch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, batch.Jobs, 3)

	for _, i := range []int{0, 1} {
		job := batch.Jobs[i]
		assert.Equal(t, types.JobStatusFailed, job.Status, "job %d", i)
		require.NotNil(t, job.Error)
		assert.Equal(t, types.JobErrorValidation, job.Error.Kind)
	}
	assert.Contains(t, batch.Jobs[0].Error.Message, "must be an object")
	assert.Contains(t, batch.Jobs[1].Error.Message, "techStack")
	assert.Equal(t, types.JobStatusSucceeded, batch.Jobs[2].Status)
	assert.Equal(t, 1, h.runner.calls)
	assert.Equal(t, 2, batch.Failed)
}

func TestGenerate_FractionalScoresKeepAnalysis(t *testing.T) {
	var req GenerateRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"repoUrl": "https://github.com/a/b",
		"projectName": "b",
		"implementation": {"title": "Add tests"},
		"analysisData": {"summary": "solid", "scores": {"overall": 72.5}}
	}`), &req))
	require.NotNil(t, req.AnalysisData)
	assert.Equal(t, 73, req.AnalysisData.Scores["overall"])

	h := newHarness(t, Options{})
	job, err := h.orch.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusSucceeded, job.Status)
	assert.Contains(t, h.runner.lastPrompt(), "overall=73")
}

func TestBatch_EmptyImplementations(t *testing.T) {
	h := newHarness(t, Options{})

	batch, err := h.orch.Batch(context.Background(), BatchRequest{RepoURL: repoURL, ProjectName: "b"})
	assert.Nil(t, batch)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "implementations", ve.Field)

	jobs, err := h.store.ListByRepo(context.Background(), repoURL)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestBatch_TooManyImplementations(t *testing.T) {
	h := newHarness(t, Options{MaxBatchSize: 2})

	req := BatchRequest{RepoURL: repoURL, ProjectName: "b", Implementations: []types.Recommendation{
		{Title: "one"}, {Title: "two"}, {Title: "three"},
	}}
	batch, err := h.orch.Batch(context.Background(), req)
	assert.Nil(t, batch)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "implementations", ve.Field)
	assert.Contains(t, ve.Message, "at most 2")
	assert.Zero(t, h.runner.calls)
}

func TestBatch_SiblingFailureIsolated(t *testing.T) {
	h := newHarness(t, Options{})
	h.runner.errFor["Improvement: Broken"] = &gemini.ExecutionError{ExitCode: 1}

	batch, err := h.orch.Batch(context.Background(), BatchRequest{
		RepoURL:         repoURL,
		ProjectName:     "b",
		Implementations: []types.Recommendation{rec("Works"), rec("Broken"), rec("Also works")},
	})
	require.NoError(t, err)

	assert.Equal(t, types.JobStatusSucceeded, batch.Jobs[0].Status)
	assert.Equal(t, types.JobStatusFailed, batch.Jobs[1].Status)
	assert.Equal(t, types.JobErrorUpstream, batch.Jobs[1].Error.Kind)
	assert.Equal(t, types.JobStatusSucceeded, batch.Jobs[2].Status)
}

func TestBatch_BoundedConcurrency(t *testing.T) {
	h := newHarness(t, Options{MaxConcurrency: 2})
	h.runner.delay = 20 * time.Millisecond

	recs := make([]types.Recommendation, 6)
	for i := range recs {
		recs[i] = rec("Change")
	}
	batch, err := h.orch.Batch(context.Background(), BatchRequest{RepoURL: repoURL, ProjectName: "b", Implementations: recs})
	require.NoError(t, err)

	assert.Equal(t, 6, batch.Succeeded)
	assert.LessOrEqual(t, h.runner.maxActive, 2)

	branches := map[string]bool{}
	for _, job := range batch.Jobs {
		branches[job.Branch] = true
	}
	assert.Len(t, branches, 6)
}

func TestBatch_SharedBranch(t *testing.T) {
	h := newHarness(t, Options{})
	h.runner.noChange["Improvement: Nothing to do"] = true

	batch, err := h.orch.Batch(context.Background(), BatchRequest{
		RepoURL:           repoURL,
		ProjectName:       "My Project",
		CreateSeparatePRs: boolPtr(false),
		Implementations:   []types.Recommendation{rec("First"), rec("Nothing to do"), rec("Third")},
	})
	require.NoError(t, err)

	assert.False(t, batch.CreateSeparatePRs)
	assert.Regexp(t, `^ai/my-project/batch-[0-9a-f]{8}$`, batch.Branch)
	for _, job := range batch.Jobs {
		assert.Equal(t, batch.Branch, job.Branch)
	}

	assert.Equal(t, types.JobStatusSucceeded, batch.Jobs[0].Status)
	assert.Equal(t, types.JobStatusFailed, batch.Jobs[1].Status)
	assert.Equal(t, types.JobStatusSucceeded, batch.Jobs[2].Status)

	require.Len(t, h.prs.created, 1)
	assert.Equal(t, "[AI] My Project: 2 improvements", h.prs.created[0].Title)
	assert.Equal(t, batch.Branch, h.prs.created[0].Head)
	assert.Equal(t, batch.PullRequestURL, batch.Jobs[0].PullRequestURL)
	assert.Equal(t, batch.PullRequestURL, batch.Jobs[2].PullRequestURL)

	assert.Len(t, h.workspace.pushed[batch.Branch], 2)
	assert.Equal(t, 1, h.workspace.maxSame)
}

func TestBatch_SharedBranchPullRequestFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.prs.createErr = errors.New("validation failed")

	batch, err := h.orch.Batch(context.Background(), BatchRequest{
		RepoURL:           repoURL,
		ProjectName:       "b",
		CreateSeparatePRs: boolPtr(false),
		Implementations:   []types.Recommendation{rec("First"), rec("Second")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Failed)
	for _, job := range batch.Jobs {
		assert.Equal(t, types.JobErrorUpstream, job.Error.Kind)
		assert.NotEmpty(t, job.CommitSHA)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	clock := base
	h.orch.now = func() time.Time { return clock }

	r1, r2 := rec("Older"), rec("Newer")
	older, err := h.orch.Generate(ctx, GenerateRequest{RepoURL: repoURL, ProjectName: "b", Implementation: &r1})
	require.NoError(t, err)
	clock = base.Add(time.Hour)
	newer, err := h.orch.Generate(ctx, GenerateRequest{RepoURL: repoURL + ".git", ProjectName: "b", Implementation: &r2})
	require.NoError(t, err)

	res, err := h.orch.Status(ctx, repoURL, "")
	require.NoError(t, err)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, newer.ID, res.Jobs[0].ID)
	assert.Equal(t, older.ID, res.Jobs[1].ID)

	res, err = h.orch.Status(ctx, repoURL, older.ID.String())
	require.NoError(t, err)
	require.NotNil(t, res.Job)
	assert.Equal(t, older.ID, res.Job.ID)

	var nf *NotFoundError
	_, err = h.orch.Status(ctx, repoURL, "3f1d5c2e-0000-4000-8000-000000000000")
	assert.ErrorAs(t, err, &nf)

	_, err = h.orch.Status(ctx, repoURL, "not-a-uuid")
	assert.ErrorAs(t, err, &nf)

	_, err = h.orch.Status(ctx, "https://github.com/other/repo", older.ID.String())
	assert.ErrorAs(t, err, &nf)

	_, err = h.orch.Status(ctx, "https://github.com/other/repo", "")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "repository", nf.Resource)

	var ve *ValidationError
	_, err = h.orch.Status(ctx, "", "")
	assert.ErrorAs(t, err, &ve)
}

func TestStatus_BatchOrderMostRecentFirst(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	batch, err := h.orch.Batch(ctx, BatchRequest{
		RepoURL:         repoURL,
		ProjectName:     "b",
		Implementations: []types.Recommendation{rec("One"), rec("Two"), rec("Three")},
	})
	require.NoError(t, err)

	res, err := h.orch.Status(ctx, repoURL, "")
	require.NoError(t, err)
	require.Len(t, res.Jobs, 3)
	assert.Equal(t, batch.Jobs[2].ID, res.Jobs[0].ID)
	assert.Equal(t, batch.Jobs[0].ID, res.Jobs[2].ID)
}
