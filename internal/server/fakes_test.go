package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/analysis"
	"github.com/jonathan/codecraft/internal/config"
	"github.com/jonathan/codecraft/internal/db"
	"github.com/jonathan/codecraft/internal/deploy"
	"github.com/jonathan/codecraft/internal/github"
	"github.com/jonathan/codecraft/internal/implementation"
	"github.com/jonathan/codecraft/internal/types"
	"github.com/stretchr/testify/require"
)

// fakeImplementer records requests and returns canned results.
type fakeImplementer struct {
	generate func(implementation.GenerateRequest) (*types.ImplementationJob, error)
	batch    func(implementation.BatchRequest) (*types.BatchRun, error)
	status   func(repoURL, id string) (*implementation.StatusResult, error)
	plan     func(implementation.PlanRequest) ([]types.Plan, error)
}

func (f *fakeImplementer) Generate(_ context.Context, req implementation.GenerateRequest) (*types.ImplementationJob, error) {
	if f.generate == nil {
		return nil, errors.New("unexpected generate")
	}
	return f.generate(req)
}

func (f *fakeImplementer) Batch(_ context.Context, req implementation.BatchRequest) (*types.BatchRun, error) {
	if f.batch == nil {
		return nil, errors.New("unexpected batch")
	}
	return f.batch(req)
}

func (f *fakeImplementer) Status(_ context.Context, repoURL, id string) (*implementation.StatusResult, error) {
	if f.status == nil {
		return nil, errors.New("unexpected status")
	}
	return f.status(repoURL, id)
}

func (f *fakeImplementer) Plan(_ context.Context, req implementation.PlanRequest) ([]types.Plan, error) {
	if f.plan == nil {
		return implementation.PlanBatch(req)
	}
	return f.plan(req)
}

// fakeGitHub serves a single in-memory repository.
type fakeGitHub struct {
	repo    *github.Repository
	prs     []*github.PullRequest
	issues  []*github.Issue
	err     error
	merged  []string
	lastOpt github.ListOptions
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		repo: &github.Repository{
			ID:            42,
			Owner:         "acme",
			Name:          "widgets",
			FullName:      "acme/widgets",
			DefaultBranch: "main",
			HTMLURL:       "https://github.com/acme/widgets",
		},
	}
}

func (f *fakeGitHub) check(repo github.RepoRef) error {
	if f.err != nil {
		return f.err
	}
	if repo.Owner != f.repo.Owner || repo.Name != f.repo.Name {
		return &github.UpstreamError{Service: "github", Operation: "get", StatusCode: http.StatusNotFound, Message: "Not Found"}
	}
	return nil
}

func (f *fakeGitHub) GetRepository(_ context.Context, repo github.RepoRef) (*github.Repository, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	return f.repo, nil
}

func (f *fakeGitHub) ListLanguages(_ context.Context, repo github.RepoRef) ([]github.Language, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	return []github.Language{{Name: "Go", Bytes: 1000}}, nil
}

func (f *fakeGitHub) GetReadme(_ context.Context, repo github.RepoRef) (string, error) {
	if err := f.check(repo); err != nil {
		return "", err
	}
	return "# widgets", nil
}

func (f *fakeGitHub) GetFile(_ context.Context, repo github.RepoRef, _, _ string) (string, error) {
	if err := f.check(repo); err != nil {
		return "", err
	}
	return "package main", nil
}

func (f *fakeGitHub) ListRepositories(_ context.Context, opts github.ListOptions) ([]*github.Repository, error) {
	f.lastOpt = opts
	if f.err != nil {
		return nil, f.err
	}
	return []*github.Repository{f.repo}, nil
}

func (f *fakeGitHub) ListBranches(_ context.Context, repo github.RepoRef, _ github.ListOptions) ([]*github.Branch, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	return []*github.Branch{{Name: "main", SHA: "abc"}}, nil
}

func (f *fakeGitHub) ListCommits(_ context.Context, repo github.RepoRef, _ string, _ github.ListOptions) ([]*github.Commit, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeGitHub) ListPullRequests(_ context.Context, repo github.RepoRef, opts github.ListOptions) ([]*github.PullRequest, error) {
	f.lastOpt = opts
	if err := f.check(repo); err != nil {
		return nil, err
	}
	return f.prs, nil
}

func (f *fakeGitHub) CreatePullRequest(_ context.Context, repo github.RepoRef, req github.NewPullRequest) (*github.PullRequest, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	pr := &github.PullRequest{Number: len(f.prs) + 1, Title: req.Title, Head: req.Head, Base: req.Base, State: "open", Labels: req.Labels}
	f.prs = append(f.prs, pr)
	return pr, nil
}

func (f *fakeGitHub) pull(number int) (*github.PullRequest, error) {
	for _, pr := range f.prs {
		if pr.Number == number {
			return pr, nil
		}
	}
	return nil, &github.UpstreamError{Service: "github", Operation: "get pull request", StatusCode: http.StatusNotFound, Message: "Not Found"}
}

func (f *fakeGitHub) UpdatePullRequest(_ context.Context, repo github.RepoRef, number int, upd github.PullRequestUpdate) (*github.PullRequest, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	pr, err := f.pull(number)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		pr.Title = *upd.Title
	}
	if upd.State != nil {
		pr.State = *upd.State
	}
	return pr, nil
}

func (f *fakeGitHub) MergePullRequest(_ context.Context, repo github.RepoRef, number int, message, method string) (*github.MergeResult, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	pr, err := f.pull(number)
	if err != nil {
		return nil, err
	}
	pr.Merged = true
	f.merged = append(f.merged, message+"|"+method)
	return &github.MergeResult{SHA: "merged", Merged: true, Message: "Pull Request successfully merged"}, nil
}

func (f *fakeGitHub) ClosePullRequest(_ context.Context, repo github.RepoRef, number int) (*github.PullRequest, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	pr, err := f.pull(number)
	if err != nil {
		return nil, err
	}
	pr.State = "closed"
	return pr, nil
}

func (f *fakeGitHub) ListIssues(_ context.Context, repo github.RepoRef, _ github.ListOptions) ([]*github.Issue, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	return f.issues, nil
}

func (f *fakeGitHub) CreateIssue(_ context.Context, repo github.RepoRef, req github.IssueRequest) (*github.Issue, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	issue := &github.Issue{Number: len(f.issues) + 1, Title: *req.Title, State: "open"}
	f.issues = append(f.issues, issue)
	return issue, nil
}

func (f *fakeGitHub) UpdateIssue(_ context.Context, repo github.RepoRef, number int, req github.IssueRequest) (*github.Issue, error) {
	if err := f.check(repo); err != nil {
		return nil, err
	}
	for _, issue := range f.issues {
		if issue.Number == number {
			if req.Title != nil {
				issue.Title = *req.Title
			}
			if req.State != nil {
				issue.State = *req.State
			}
			return issue, nil
		}
	}
	return nil, &github.UpstreamError{Service: "github", Operation: "update issue", StatusCode: http.StatusNotFound, Message: "Not Found"}
}

func (f *fakeGitHub) CloseIssue(ctx context.Context, repo github.RepoRef, number int) (*github.Issue, error) {
	closed := "closed"
	return f.UpdateIssue(ctx, repo, number, github.IssueRequest{State: &closed})
}

type fakeAnalyzer struct {
	report *analysis.Report
	err    error
	got    analysis.Repository
}

func (f *fakeAnalyzer) Analyze(_ context.Context, repo analysis.Repository) (*analysis.Report, error) {
	f.got = repo
	return f.report, f.err
}

type fakeDeployer struct {
	got deploy.DeployRequest
	err error
}

func (f *fakeDeployer) Deploy(_ context.Context, req deploy.DeployRequest) (*deploy.Deployment, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &deploy.Deployment{ID: "dpl_1", URL: "https://widgets.vercel.app", ReadyState: "QUEUED", Project: req.Project}, nil
}

func (f *fakeDeployer) GetDeployment(_ context.Context, id string) (*deploy.Deployment, error) {
	if id != "dpl_1" {
		return nil, &deploy.UpstreamError{Service: "vercel", StatusCode: http.StatusNotFound, Message: "deployment not found"}
	}
	return &deploy.Deployment{ID: id, URL: "https://widgets.vercel.app", ReadyState: "READY"}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

// memoryStore implements the user, project and mentor stores.
type memoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]db.User
	projects map[uuid.UUID]db.Project
	mentors  map[uuid.UUID]db.Mentor
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[uuid.UUID]db.User),
		projects: make(map[uuid.UUID]db.Project),
		mentors:  make(map[uuid.UUID]db.Mentor),
	}
}

func stamp(id *uuid.UUID, created, updated *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func (m *memoryStore) CreateUser(_ context.Context, u *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	m.users[u.ID] = *u
	return nil
}

func (m *memoryStore) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memoryStore) GetUserByLogin(_ context.Context, login string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.GitHubLogin == login {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ListUsers(context.Context) ([]db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryStore) UpdateUser(_ context.Context, u *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.ID]
	if !ok {
		return db.ErrNotFound
	}
	u.CreatedAt = old.CreatedAt
	stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	m.users[u.ID] = *u
	return nil
}

func (m *memoryStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryStore) CreateProject(_ context.Context, p *db.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	m.projects[p.ID] = *p
	return nil
}

func (m *memoryStore) GetProject(_ context.Context, id uuid.UUID) (*db.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memoryStore) ListProjects(context.Context) ([]db.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Project
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryStore) ListProjectsByOwner(_ context.Context, ownerID uuid.UUID) ([]db.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Project
	for _, p := range m.projects {
		if p.OwnerID != nil && *p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateProject(_ context.Context, p *db.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.projects[p.ID]
	if !ok {
		return db.ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	m.projects[p.ID] = *p
	return nil
}

func (m *memoryStore) SetDeploymentURL(_ context.Context, id uuid.UUID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return db.ErrNotFound
	}
	p.DeploymentURL = url
	m.projects[id] = p
	return nil
}

func (m *memoryStore) DeleteProject(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *memoryStore) CreateMentor(_ context.Context, mentor *db.Mentor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mentor.Email = db.NormalizeEmail(mentor.Email)
	for _, existing := range m.mentors {
		if existing.Email == mentor.Email {
			return db.ErrEmailTaken
		}
	}
	stamp(&mentor.ID, &mentor.CreatedAt, &mentor.UpdatedAt)
	m.mentors[mentor.ID] = *mentor
	return nil
}

func (m *memoryStore) GetMentor(_ context.Context, id uuid.UUID) (*db.Mentor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mentor, ok := m.mentors[id]
	if !ok {
		return nil, nil
	}
	return &mentor, nil
}

func (m *memoryStore) GetMentorByEmail(_ context.Context, email string) (*db.Mentor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = db.NormalizeEmail(email)
	for _, mentor := range m.mentors {
		if mentor.Email == email {
			return &mentor, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ListMentors(context.Context) ([]db.Mentor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Mentor
	for _, mentor := range m.mentors {
		out = append(out, mentor)
	}
	return out, nil
}

func (m *memoryStore) UpdateMentor(_ context.Context, mentor *db.Mentor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.mentors[mentor.ID]
	if !ok {
		return db.ErrNotFound
	}
	mentor.Email = db.NormalizeEmail(mentor.Email)
	mentor.PasswordHash = old.PasswordHash
	mentor.CreatedAt = old.CreatedAt
	stamp(&mentor.ID, &mentor.CreatedAt, &mentor.UpdatedAt)
	m.mentors[mentor.ID] = *mentor
	return nil
}

func (m *memoryStore) DeleteMentor(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mentors[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.mentors, id)
	return nil
}

// newTestServer fills in required collaborators that the test left empty.
func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Implementer == nil {
		deps.Implementer = &fakeImplementer{}
	}
	if deps.GitHub == nil {
		deps.GitHub = newFakeGitHub()
	}
	s, err := New(deps, 0)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

// withAuth configures mentor routes with a memory store, JWT and cheap bcrypt.
func withAuth(deps Deps, store *memoryStore) Deps {
	deps.Mentors = store
	deps.JWT = newTestJWTService(24)
	deps.Passwords = &config.PasswordConfig{BcryptCost: 4}
	return deps
}

// do serves one request through the full middleware chain.
func do(s *Server, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}
