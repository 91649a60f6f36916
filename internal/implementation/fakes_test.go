package implementation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/codecraft/internal/gemini"
	"github.com/jonathan/codecraft/internal/github"
	"github.com/jonathan/codecraft/internal/gitops"
	"github.com/jonathan/codecraft/internal/jobstore"
	"github.com/stretchr/testify/require"
)

// fakeRunner writes a file named after the job into the working tree unless
// the prompt matches one of the configured failure markers.
type fakeRunner struct {
	mu        sync.Mutex
	calls     int
	active    int
	maxActive int
	delay     time.Duration
	errFor    map[string]error
	noChange  map[string]bool
	prompts   []string
}

func (f *fakeRunner) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeRunner) Execute(_ context.Context, opts gemini.ExecuteOptions) (*gemini.ExecuteResult, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, opts.Prompt)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	for marker, err := range f.errFor {
		if strings.Contains(opts.Prompt, marker) {
			return &gemini.ExecuteResult{ExitCode: 1}, err
		}
	}
	for marker := range f.noChange {
		if strings.Contains(opts.Prompt, marker) {
			return &gemini.ExecuteResult{}, nil
		}
	}

	name := fmt.Sprintf("change-%d.txt", time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(opts.WorkDir, name), []byte(opts.Prompt), 0o644); err != nil {
		return nil, err
	}
	return &gemini.ExecuteResult{}, nil
}

type fakeBootstrapper struct {
	mu    sync.Mutex
	calls []gemini.TemplateContext
}

func (f *fakeBootstrapper) Bootstrap(_ context.Context, dir string, tc gemini.TemplateContext) (*gemini.BootstrapResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tc)
	f.mu.Unlock()
	return &gemini.BootstrapResult{ConfigPath: filepath.Join(dir, gemini.ConfigFile)}, nil
}

// fakeWorkspace records pushed commits per branch and the peak number of
// leases writing the same branch at once.
type fakeWorkspace struct {
	t        *testing.T
	mu       sync.Mutex
	pushed   map[string][]string
	active   map[string]int
	maxSame  int
	leaseErr error
}

func newFakeWorkspace(t *testing.T) *fakeWorkspace {
	return &fakeWorkspace{t: t, pushed: map[string][]string{}, active: map[string]int{}}
}

func (f *fakeWorkspace) Lease(_ context.Context, remote, _ string) (Lease, error) {
	if f.leaseErr != nil {
		return nil, f.leaseErr
	}
	if !strings.HasPrefix(remote, "https://github.com/") {
		return nil, fmt.Errorf("unexpected remote %q", remote)
	}
	return &fakeLease{ws: f, dir: f.t.TempDir()}, nil
}

type fakeLease struct {
	ws     *fakeWorkspace
	dir    string
	branch string
	sha    string
}

func (l *fakeLease) Dir() string        { return l.dir }
func (l *fakeLease) BaseBranch() string { return "main" }

func (l *fakeLease) Checkout(_ context.Context, branch string) error {
	l.branch = branch
	l.ws.mu.Lock()
	l.ws.active[branch]++
	if n := l.ws.active[branch]; n > l.ws.maxSame {
		l.ws.maxSame = n
	}
	l.ws.mu.Unlock()
	return nil
}

func (l *fakeLease) Commit(_ context.Context, message string) (string, []string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return "", nil, err
	}
	var files []string
	for _, e := range entries {
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return "", nil, gitops.ErrNoChanges
	}
	sort.Strings(files)
	l.sha = fmt.Sprintf("%x", len(message)+len(files[0]))
	return l.sha, files, nil
}

func (l *fakeLease) Push(context.Context) error {
	l.ws.mu.Lock()
	defer l.ws.mu.Unlock()
	l.ws.pushed[l.branch] = append(l.ws.pushed[l.branch], l.sha)
	return nil
}

func (l *fakeLease) Release() error {
	if l.branch == "" {
		return nil
	}
	l.ws.mu.Lock()
	l.ws.active[l.branch]--
	l.ws.mu.Unlock()
	return nil
}

type fakePRs struct {
	mu        sync.Mutex
	next      int
	created   []github.NewPullRequest
	updated   []int
	open      map[string]*github.PullRequest
	createErr error
}

func newFakePRs() *fakePRs {
	return &fakePRs{next: 1, open: map[string]*github.PullRequest{}}
}

func (f *fakePRs) CreatePullRequest(_ context.Context, repo github.RepoRef, req github.NewPullRequest) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	pr := &github.PullRequest{
		Number:  f.next,
		Title:   req.Title,
		Head:    req.Head,
		Base:    req.Base,
		HTMLURL: fmt.Sprintf("https://github.com/%s/pull/%d", repo.FullName(), f.next),
		Labels:  req.Labels,
	}
	f.next++
	f.created = append(f.created, req)
	f.open[req.Head] = pr
	return pr, nil
}

func (f *fakePRs) FindOpenPullRequest(_ context.Context, _ github.RepoRef, branch string) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open[branch], nil
}

func (f *fakePRs) UpdatePullRequest(_ context.Context, _ github.RepoRef, number int, upd github.PullRequestUpdate) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, number)
	for _, pr := range f.open {
		if pr.Number == number {
			if upd.Title != nil {
				pr.Title = *upd.Title
			}
			return pr, nil
		}
	}
	return nil, fmt.Errorf("pull request %d not found", number)
}

type harness struct {
	orch      *Orchestrator
	store     *jobstore.Memory
	runner    *fakeRunner
	bootstrap *fakeBootstrapper
	workspace *fakeWorkspace
	prs       *fakePRs
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		store:     jobstore.NewMemory(),
		runner:    &fakeRunner{errFor: map[string]error{}, noChange: map[string]bool{}},
		bootstrap: &fakeBootstrapper{},
		workspace: newFakeWorkspace(t),
		prs:       newFakePRs(),
	}
	orch, err := New(Deps{
		Store:        h.store,
		Runner:       h.runner,
		Bootstrapper: h.bootstrap,
		Workspace:    h.workspace,
		PullRequests: h.prs,
	}, opts)
	require.NoError(t, err)
	h.orch = orch
	return h
}
