// Package gitops manages short-lived git clones used to commit and push
// generated changes.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

const cloneDirPrefix = "codecraft-clone-"

// ErrNoChanges is returned by Commit when the working tree has nothing to commit.
var ErrNoChanges = errors.New("no changes produced")

// excludedPaths are generated files that are never committed.
var excludedPaths = []string{".gemini/", ".geminiignore"}

// Identity is the commit author.
type Identity struct {
	Name  string
	Email string
}

// Workspace creates leases on fresh clones under a root directory.
type Workspace struct {
	root     string
	token    string
	identity Identity
}

// New creates a Workspace. An empty root uses the system temp directory. The
// token authenticates https clones and pushes; it may be empty for local remotes.
func New(root, token string, identity Identity) (*Workspace, error) {
	identity.Name = strings.TrimSpace(identity.Name)
	identity.Email = strings.TrimSpace(identity.Email)
	if identity.Name == "" {
		return nil, errors.New("identity name cannot be empty")
	}
	if identity.Email == "" {
		identity.Email = identity.Name + "@users.noreply.github.com"
	}
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace root: %w", err)
		}
	}
	return &Workspace{root: root, token: token, identity: identity}, nil
}

func (w *Workspace) auth() transport.AuthMethod {
	if w.token == "" {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: w.token,
	}
}

// Lease is a clone dedicated to one job. Callers must Release it.
type Lease struct {
	ws         *Workspace
	dir        string
	repo       *git.Repository
	baseBranch string
	baseSHA    string
	branch     string
}

// Lease clones remote at baseBranch, or at the remote's default branch when
// baseBranch is empty.
func (w *Workspace) Lease(ctx context.Context, remote, baseBranch string) (*Lease, error) {
	if remote == "" {
		return nil, errors.New("remote cannot be empty")
	}

	dir, err := os.MkdirTemp(w.root, cloneDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating clone dir: %w", err)
	}

	clog.FromContext(ctx).Infof("Cloning repository %s into %s", remote, dir)

	opts := &git.CloneOptions{
		URL:          remote,
		SingleBranch: true,
		Auth:         w.auth(),
	}
	if baseBranch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(baseBranch)
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	return &Lease{
		ws:         w,
		dir:        dir,
		repo:       repo,
		baseBranch: head.Name().Short(),
		baseSHA:    head.Hash().String(),
	}, nil
}

// Dir returns the working tree path.
func (l *Lease) Dir() string { return l.dir }

// BaseBranch returns the branch that was cloned.
func (l *Lease) BaseBranch() string { return l.baseBranch }

// BaseSHA returns the commit the clone started at.
func (l *Lease) BaseSHA() string { return l.baseSHA }

// Branch returns the branch checked out by Checkout.
func (l *Lease) Branch() string { return l.branch }

// Checkout switches to branch. When the branch already exists on the remote
// its head is fetched and checked out so that new commits stack on top of it;
// otherwise the branch is created at the base commit.
func (l *Lease) Checkout(ctx context.Context, branch string) error {
	if branch == "" {
		return errors.New("branch name cannot be empty")
	}

	refName := plumbing.NewBranchReferenceName(branch)
	start := plumbing.NewHash(l.baseSHA)

	exists, err := l.remoteHasBranch(ctx, refName)
	if err != nil {
		return err
	}
	if exists {
		spec := gitconfig.RefSpec(fmt.Sprintf("+%s:refs/remotes/origin/%s", refName, branch))
		err := l.repo.FetchContext(ctx, &git.FetchOptions{
			RefSpecs: []gitconfig.RefSpec{spec},
			Auth:     l.ws.auth(),
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("fetching branch %s: %w", branch, err)
		}
		remoteRef, err := l.repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
		if err != nil {
			return fmt.Errorf("resolving remote branch %s: %w", branch, err)
		}
		start = remoteRef.Hash()
		clog.FromContext(ctx).Infof("Continuing existing branch %s at %s", branch, start)
	}

	if err := l.repo.Storer.SetReference(plumbing.NewHashReference(refName, start)); err != nil {
		return fmt.Errorf("setting branch reference: %w", err)
	}

	wt, err := l.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: refName, Force: true}); err != nil {
		return fmt.Errorf("checking out branch: %w", err)
	}

	l.branch = branch
	return nil
}

func (l *Lease) remoteHasBranch(ctx context.Context, refName plumbing.ReferenceName) (bool, error) {
	remote, err := l.repo.Remote("origin")
	if err != nil {
		return false, fmt.Errorf("getting remote: %w", err)
	}
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: l.ws.auth()})
	if err != nil {
		return false, fmt.Errorf("listing remote refs: %w", err)
	}
	for _, ref := range refs {
		if ref.Name() == refName {
			return true, nil
		}
	}
	return false, nil
}

// Commit stages every change except generated files and commits it. It returns
// the new commit SHA and the sorted list of changed paths, or ErrNoChanges.
func (l *Lease) Commit(ctx context.Context, message string) (string, []string, error) {
	if message == "" {
		return "", nil, errors.New("commit message cannot be empty")
	}

	wt, err := l.repo.Worktree()
	if err != nil {
		return "", nil, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", nil, fmt.Errorf("getting worktree status: %w", err)
	}

	var files []string
	for file, st := range status {
		if isExcluded(file) {
			continue
		}
		switch {
		case st.Worktree == git.Unmodified && st.Staging == git.Unmodified:
			continue
		case st.Worktree == git.Deleted:
			if _, err := wt.Remove(file); err != nil {
				return "", nil, fmt.Errorf("staging removal of %s: %w", file, err)
			}
		default:
			if _, err := wt.Add(file); err != nil {
				return "", nil, fmt.Errorf("staging %s: %w", file, err)
			}
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return "", nil, ErrNoChanges
	}
	sort.Strings(files)

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  l.ws.identity.Name,
			Email: l.ws.identity.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("committing: %w", err)
	}

	clog.FromContext(ctx).Infof("Committed %d file(s) as %s", len(files), hash)
	return hash.String(), files, nil
}

// Push pushes the checked-out branch to origin.
func (l *Lease) Push(ctx context.Context) error {
	if l.branch == "" {
		return errors.New("no branch checked out")
	}
	ref := plumbing.NewBranchReferenceName(l.branch)
	spec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))

	clog.FromContext(ctx).Infof("Pushing %s", spec)
	err := l.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       l.ws.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing branch %s: %w", l.branch, err)
	}
	return nil
}

// Release deletes the clone.
func (l *Lease) Release() error {
	if l.dir == "" {
		return nil
	}
	err := os.RemoveAll(l.dir)
	l.dir = ""
	l.repo = nil
	return err
}

func isExcluded(file string) bool {
	file = path.Clean(strings.ReplaceAll(file, "\\", "/"))
	for _, p := range excludedPaths {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(file+"/", p) {
				return true
			}
			continue
		}
		if file == p {
			return true
		}
	}
	return false
}
