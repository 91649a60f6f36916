// Package implementation turns AI recommendations into pull requests by running
// the Gemini CLI against a fresh clone of the target repository.
package implementation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/gemini"
	"github.com/jonathan/codecraft/internal/github"
	"github.com/jonathan/codecraft/internal/gitops"
	"github.com/jonathan/codecraft/internal/jobstore"
	"github.com/jonathan/codecraft/internal/metrics"
	"github.com/jonathan/codecraft/internal/types"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds concurrent jobs within one batch.
const DefaultMaxConcurrency = 4

// DefaultMaxBatchSize bounds the recommendations accepted by one batch.
const DefaultMaxBatchSize = 10

// Bootstrapper writes the Gemini CLI configuration into a working tree.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, dir string, tc gemini.TemplateContext) (*gemini.BootstrapResult, error)
}

// Lease is a working tree dedicated to one job.
type Lease interface {
	Dir() string
	BaseBranch() string
	Checkout(ctx context.Context, branch string) error
	Commit(ctx context.Context, message string) (string, []string, error)
	Push(ctx context.Context) error
	Release() error
}

// Workspace hands out leases on fresh clones.
type Workspace interface {
	Lease(ctx context.Context, remote, baseBranch string) (Lease, error)
}

// PullRequests is the subset of the GitHub adapter the orchestrator uses.
type PullRequests interface {
	CreatePullRequest(ctx context.Context, repo github.RepoRef, req github.NewPullRequest) (*github.PullRequest, error)
	FindOpenPullRequest(ctx context.Context, repo github.RepoRef, branch string) (*github.PullRequest, error)
	UpdatePullRequest(ctx context.Context, repo github.RepoRef, number int, upd github.PullRequestUpdate) (*github.PullRequest, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store        jobstore.Store
	Runner       gemini.Runner
	Bootstrapper Bootstrapper
	Workspace    Workspace
	PullRequests PullRequests
	Locks        *gitops.Locks
}

// Options tunes job execution.
type Options struct {
	MaxConcurrency int
	MaxBatchSize   int
	Timeout        time.Duration
	Model          string
}

// Orchestrator runs implementation jobs and answers status queries.
type Orchestrator struct {
	store     jobstore.Store
	runner    gemini.Runner
	bootstrap Bootstrapper
	workspace Workspace
	prs       PullRequests
	locks     *gitops.Locks
	opts      Options
	now       func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("job store is required")
	case deps.Runner == nil:
		return nil, errors.New("gemini runner is required")
	case deps.Bootstrapper == nil:
		return nil, errors.New("bootstrapper is required")
	case deps.Workspace == nil:
		return nil, errors.New("git workspace is required")
	case deps.PullRequests == nil:
		return nil, errors.New("pull request client is required")
	}
	if deps.Locks == nil {
		deps.Locks = gitops.NewLocks()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Orchestrator{
		store:     deps.Store,
		runner:    deps.Runner,
		bootstrap: deps.Bootstrapper,
		workspace: deps.Workspace,
		prs:       deps.PullRequests,
		locks:     deps.Locks,
		opts:      opts,
		now:       time.Now,
	}, nil
}

// Generate implements a single recommendation synchronously. Request errors are
// returned as *ValidationError and create no job; execution failures are
// reported on the returned job, which is always terminal.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (*types.ImplementationJob, error) {
	ref, err := validateTarget(req.RepoURL, req.ProjectName)
	if err != nil {
		return nil, err
	}
	if err := validateRecommendation("implementation", req.Implementation); err != nil {
		return nil, err
	}

	batchID := uuid.New()
	t := o.newTask(batchID, 0, &BatchRequest{
		RepoURL:      req.RepoURL,
		ProjectName:  req.ProjectName,
		TechStack:    req.TechStack,
		Difficulty:   req.Difficulty,
		Category:     req.Category,
		AnalysisData: req.AnalysisData,
	}, *req.Implementation, o.now().UTC())
	t.job.Branch = newBranchNamer().next(req.ProjectName, t.rec.Title)

	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("batch", batchID.String()))
	if req.analysisDropped {
		clog.FromContext(ctx).Warn("Ignoring analysisData that could not be decoded")
	}
	o.save(ctx, t.job)
	o.runSeparate(ctx, ref, t)
	return t.job, nil
}

// Batch implements every recommendation of req. The returned batch always has
// one job per input element, in input order.
func (o *Orchestrator) Batch(ctx context.Context, req BatchRequest) (*types.BatchRun, error) {
	ref, err := validateBatch(&req)
	if err != nil {
		return nil, err
	}
	if n := len(req.Implementations); n > o.opts.MaxBatchSize {
		return nil, &ValidationError{
			Field:   "implementations",
			Message: fmt.Sprintf("must contain at most %d recommendations, got %d", o.opts.MaxBatchSize, n),
		}
	}

	now := o.now().UTC()
	batch := &types.BatchRun{
		ID:                uuid.New(),
		RepoURL:           req.RepoURL,
		ProjectName:       req.ProjectName,
		CreateSeparatePRs: req.separatePRs(),
		CreatedAt:         now,
	}
	if !batch.CreateSeparatePRs {
		batch.Branch = SharedBranchName(req.ProjectName, batch.ID)
	}

	log := clog.FromContext(ctx).With("batch", batch.ID.String())
	ctx = clog.WithLogger(ctx, log)
	log.Infof("Starting batch of %d implementation(s) for %s", len(req.Implementations), ref.FullName())
	if req.analysisDropped {
		log.Warn("Ignoring analysisData that could not be decoded")
	}

	namer := newBranchNamer()
	var runnable []*task
	for i, rec := range req.Implementations {
		t := o.newTask(batch.ID, i, &req, rec, now)
		batch.Jobs = append(batch.Jobs, t.job)

		if err := req.validateElement(i); err != nil {
			t.job.Fail(types.JobErrorValidation, err.Error(), now)
			o.save(ctx, t.job)
			o.record(t.job)
			continue
		}
		if batch.CreateSeparatePRs {
			t.job.Branch = namer.next(req.ProjectName, t.rec.Title)
		} else {
			t.job.Branch = batch.Branch
		}
		o.save(ctx, t.job)
		runnable = append(runnable, t)
	}

	if batch.CreateSeparatePRs {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.opts.MaxConcurrency)
		for _, t := range runnable {
			g.Go(func() error {
				o.runSeparate(gctx, ref, t)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		o.runShared(ctx, ref, batch, runnable)
	}

	batch.Tally()
	log.Infof("Batch finished: %d succeeded, %d failed", batch.Succeeded, batch.Failed)
	return batch, nil
}

// StatusResult is either one job (when an id was given) or every job of a repository.
type StatusResult struct {
	Job  *types.ImplementationJob
	Jobs []*types.ImplementationJob
}

// Status reads job history. With an id it returns that job, which must belong
// to repoURL; otherwise it lists the repository's jobs most recent first.
func (o *Orchestrator) Status(ctx context.Context, repoURL, implementationID string) (*StatusResult, error) {
	if strings.TrimSpace(repoURL) == "" {
		return nil, &ValidationError{Field: "repoUrl", Message: "is required"}
	}

	if implementationID != "" {
		id, err := uuid.Parse(implementationID)
		if err != nil {
			return nil, &NotFoundError{Resource: "implementation", ID: implementationID}
		}
		job, err := o.store.Get(ctx, id)
		if errors.Is(err, jobstore.ErrNotFound) {
			return nil, &NotFoundError{Resource: "implementation", ID: implementationID}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load job: %w", err)
		}
		if jobstore.NormalizeRepoURL(job.RepoURL) != jobstore.NormalizeRepoURL(repoURL) {
			return nil, &NotFoundError{Resource: "implementation", ID: implementationID}
		}
		return &StatusResult{Job: job}, nil
	}

	jobs, err := o.store.ListByRepo(ctx, repoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, &NotFoundError{Resource: "repository", ID: repoURL}
	}
	return &StatusResult{Jobs: jobs}, nil
}

func (o *Orchestrator) newTask(batchID uuid.UUID, seq int, req *BatchRequest, rec types.Recommendation, now time.Time) *task {
	rec.Title = strings.TrimSpace(rec.Title)
	techStack := rec.TechStack
	if len(techStack) == 0 {
		techStack = req.TechStack
	}
	job := &types.ImplementationJob{
		ID:          uuid.New(),
		BatchID:     batchID,
		Sequence:    seq,
		RepoURL:     req.RepoURL,
		ProjectName: req.ProjectName,
		TechStack:   append([]string(nil), techStack...),
		Difficulty:  firstNonEmpty(rec.Difficulty, req.Difficulty),
		Category:    firstNonEmpty(rec.Category, req.Category),
		Title:       rec.Title,
		Status:      types.JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return &task{job: job, rec: rec, analysis: req.AnalysisData}
}

// runSeparate executes t on its own branch and opens its own pull request.
func (o *Orchestrator) runSeparate(ctx context.Context, ref github.RepoRef, t *task) {
	base, ok := o.execute(ctx, ref, t)
	if !ok {
		return
	}

	pr, err := o.openPullRequest(ctx, ref, t.job.Branch, base, pullRequestTitle(t.rec.Title), pullRequestBody(t), pullRequestLabels(t.job.Category))
	if pr == nil {
		o.fail(ctx, t.job, types.JobErrorUpstream, err.Error())
		return
	}
	if err != nil {
		clog.FromContext(ctx).Warnf("Pull request #%d opened with errors: %v", pr.Number, err)
	}
	o.succeed(ctx, t.job, pr)
}

// runShared executes tasks in input order on the batch branch, then opens (or
// updates) one pull request covering every job that produced a commit.
func (o *Orchestrator) runShared(ctx context.Context, ref github.RepoRef, batch *types.BatchRun, tasks []*task) {
	var committed []*task
	var base string
	for _, t := range tasks {
		b, ok := o.execute(ctx, ref, t)
		if ok {
			base = b
			committed = append(committed, t)
		}
	}
	if len(committed) == 0 {
		return
	}

	title := pullRequestTitle(fmt.Sprintf("%s: %d improvements", batch.ProjectName, len(committed)))
	if len(committed) == 1 {
		title = pullRequestTitle(committed[0].rec.Title)
	}
	categories := make([]string, 0, len(committed))
	for _, t := range committed {
		categories = append(categories, t.job.Category)
	}

	pr, err := o.openPullRequest(ctx, ref, batch.Branch, base, title, sharedPullRequestBody(batch.ProjectName, committed), pullRequestLabels(categories...))
	if pr == nil {
		for _, t := range committed {
			o.fail(ctx, t.job, types.JobErrorUpstream, err.Error())
		}
		return
	}
	if err != nil {
		clog.FromContext(ctx).Warnf("Pull request #%d opened with errors: %v", pr.Number, err)
	}
	batch.PullRequestURL = pr.HTMLURL
	for _, t := range committed {
		o.succeed(ctx, t.job, pr)
	}
}

// execute runs the job protocol up to the push. It returns the base branch the
// work was cloned from and whether a commit was pushed; on false the job has
// already been marked failed.
func (o *Orchestrator) execute(ctx context.Context, ref github.RepoRef, t *task) (string, bool) {
	job := t.job
	log := clog.FromContext(ctx).With("job", job.ID.String(), "branch", job.Branch)
	ctx = clog.WithLogger(ctx, log)

	started := o.now().UTC()
	job.Status = types.JobStatusRunning
	job.StartedAt = &started
	job.UpdatedAt = started
	o.save(ctx, job)

	unlock := o.locks.Lock(gitops.Key(jobstore.NormalizeRepoURL(job.RepoURL), job.Branch))
	defer unlock()

	lease, err := o.workspace.Lease(ctx, ref.CloneURL(), "")
	if err != nil {
		o.fail(ctx, job, types.JobErrorUpstream, fmt.Sprintf("clone failed: %v", err))
		return "", false
	}
	defer func() {
		if err := lease.Release(); err != nil {
			log.Warnf("Failed to remove clone %s: %v", lease.Dir(), err)
		}
	}()

	if err := lease.Checkout(ctx, job.Branch); err != nil {
		o.fail(ctx, job, types.JobErrorUpstream, fmt.Sprintf("checkout failed: %v", err))
		return "", false
	}

	if _, err := o.bootstrap.Bootstrap(ctx, lease.Dir(), gemini.TemplateContext{
		ProjectName: job.ProjectName,
		Category:    job.Category,
		Difficulty:  job.Difficulty,
		TechStack:   job.TechStack,
		Analysis:    t.analysis,
	}); err != nil {
		o.fail(ctx, job, types.JobErrorUpstream, fmt.Sprintf("gemini configuration failed: %v", err))
		return "", false
	}

	prompt, err := buildPrompt(t)
	if err != nil {
		o.fail(ctx, job, types.JobErrorUpstream, err.Error())
		return "", false
	}

	if _, err := o.runner.Execute(ctx, gemini.ExecuteOptions{
		Prompt:  prompt,
		WorkDir: lease.Dir(),
		Model:   o.opts.Model,
		Timeout: o.opts.Timeout,
	}); err != nil {
		if errors.Is(err, gemini.ErrTimeout) {
			o.fail(ctx, job, types.JobErrorTimeout, err.Error())
		} else {
			o.fail(ctx, job, types.JobErrorUpstream, err.Error())
		}
		return "", false
	}

	sha, files, err := lease.Commit(ctx, commitMessage(t))
	if errors.Is(err, gitops.ErrNoChanges) {
		o.fail(ctx, job, types.JobErrorUpstream, "no changes produced")
		return "", false
	}
	if err != nil {
		o.fail(ctx, job, types.JobErrorUpstream, fmt.Sprintf("commit failed: %v", err))
		return "", false
	}
	if err := lease.Push(ctx); err != nil {
		o.fail(ctx, job, types.JobErrorUpstream, fmt.Sprintf("push failed: %v", err))
		return "", false
	}

	job.CommitSHA = sha
	job.FilesChanged = files
	job.UpdatedAt = o.now().UTC()
	o.save(ctx, job)
	return lease.BaseBranch(), true
}

// openPullRequest reuses an open pull request for branch or creates one. A
// non-nil pull request may be returned together with a labeling error.
func (o *Orchestrator) openPullRequest(ctx context.Context, ref github.RepoRef, branch, base, title, body string, labels []string) (*github.PullRequest, error) {
	existing, err := o.prs.FindOpenPullRequest(ctx, ref, branch)
	if err != nil {
		return nil, fmt.Errorf("pull request lookup failed: %w", err)
	}
	if existing != nil {
		clog.FromContext(ctx).Infof("Updating existing pull request #%d", existing.Number)
		updated, err := o.prs.UpdatePullRequest(ctx, ref, existing.Number, github.PullRequestUpdate{Title: &title, Body: &body})
		if err != nil {
			return existing, err
		}
		return updated, nil
	}

	pr, err := o.prs.CreatePullRequest(ctx, ref, github.NewPullRequest{
		Title:  title,
		Body:   body,
		Head:   branch,
		Base:   base,
		Labels: labels,
	})
	if err != nil && pr == nil {
		return nil, fmt.Errorf("pull request creation failed: %w", err)
	}
	return pr, err
}

func (o *Orchestrator) succeed(ctx context.Context, job *types.ImplementationJob, pr *github.PullRequest) {
	now := o.now().UTC()
	job.Status = types.JobStatusSucceeded
	job.PullRequestURL = pr.HTMLURL
	job.PullRequestNumber = pr.Number
	job.UpdatedAt = now
	job.CompletedAt = &now
	o.save(ctx, job)
	o.record(job)
	clog.FromContext(ctx).Infof("Job %s succeeded: %s", job.ID, pr.HTMLURL)
}

func (o *Orchestrator) fail(ctx context.Context, job *types.ImplementationJob, kind types.JobErrorKind, msg string) {
	job.Fail(kind, msg, o.now().UTC())
	o.save(ctx, job)
	o.record(job)
	clog.FromContext(ctx).Warnf("Job %s failed (%s): %s", job.ID, kind, msg)
}

// save persists job. Store failures are logged; the caller still gets the job.
func (o *Orchestrator) save(ctx context.Context, job *types.ImplementationJob) {
	if err := o.store.Put(ctx, job); err != nil {
		clog.FromContext(ctx).Errorf("Failed to store job %s: %v", job.ID, err)
	}
}

func (o *Orchestrator) record(job *types.ImplementationJob) {
	metrics.Jobs.WithLabelValues(string(job.Status)).Inc()
	if job.StartedAt != nil && job.CompletedAt != nil {
		metrics.JobDuration.Observe(job.CompletedAt.Sub(*job.StartedAt).Seconds())
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
