package github

import (
	"context"
	"sort"
	"strings"

	gh "github.com/google/go-github/v84/github"
)

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, repo RepoRef) (*Repository, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, wrap("get repository", resp, err)
	}
	return toRepository(r), nil
}

// ListRepositories lists repositories of the authenticated user, most
// recently updated first.
func (c *Client) ListRepositories(ctx context.Context, opts ListOptions) ([]*Repository, error) {
	repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: listOptions(opts.Page, opts.PerPage),
	})
	if err != nil {
		return nil, wrap("list repositories", resp, err)
	}
	out := make([]*Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, toRepository(r))
	}
	return out, nil
}

// ListBranches lists branches of a repository.
func (c *Client) ListBranches(ctx context.Context, repo RepoRef, opts ListOptions) ([]*Branch, error) {
	branches, resp, err := c.gh.Repositories.ListBranches(ctx, repo.Owner, repo.Name, &gh.BranchListOptions{
		ListOptions: listOptions(opts.Page, opts.PerPage),
	})
	if err != nil {
		return nil, wrap("list branches", resp, err)
	}
	out := make([]*Branch, 0, len(branches))
	for _, b := range branches {
		out = append(out, &Branch{
			Name:      b.GetName(),
			SHA:       b.GetCommit().GetSHA(),
			Protected: b.GetProtected(),
		})
	}
	return out, nil
}

// ListCommits lists commits on branch, or on the default branch when empty.
func (c *Client) ListCommits(ctx context.Context, repo RepoRef, branch string, opts ListOptions) ([]*Commit, error) {
	commits, resp, err := c.gh.Repositories.ListCommits(ctx, repo.Owner, repo.Name, &gh.CommitsListOptions{
		SHA:         branch,
		ListOptions: listOptions(opts.Page, opts.PerPage),
	})
	if err != nil {
		return nil, wrap("list commits", resp, err)
	}
	out := make([]*Commit, 0, len(commits))
	for _, rc := range commits {
		commit := rc.GetCommit()
		author := rc.GetAuthor().GetLogin()
		if author == "" {
			author = commit.GetAuthor().GetName()
		}
		out = append(out, &Commit{
			SHA:     rc.GetSHA(),
			Message: commit.GetMessage(),
			Author:  author,
			Date:    commit.GetAuthor().GetDate().Time,
			HTMLURL: rc.GetHTMLURL(),
		})
	}
	return out, nil
}

// GetReadme returns the decoded README, or "" when the repository has none.
func (c *Client) GetReadme(ctx context.Context, repo RepoRef) (string, error) {
	content, resp, err := c.gh.Repositories.GetReadme(ctx, repo.Owner, repo.Name, nil)
	if err != nil {
		werr := wrap("get readme", resp, err)
		if IsNotFound(werr) {
			return "", nil
		}
		return "", werr
	}
	text, err := content.GetContent()
	if err != nil {
		return "", wrap("decode readme", resp, err)
	}
	return text, nil
}

// Language is a repository language with its share of bytes.
type Language struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

// ListLanguages returns the repository's languages, largest first.
func (c *Client) ListLanguages(ctx context.Context, repo RepoRef) ([]Language, error) {
	langs, resp, err := c.gh.Repositories.ListLanguages(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, wrap("list languages", resp, err)
	}
	out := make([]Language, 0, len(langs))
	for name, n := range langs {
		out = append(out, Language{Name: name, Bytes: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return strings.Compare(out[i].Name, out[j].Name) < 0
	})
	return out, nil
}

// GetFile returns the decoded content of a file at ref, or "" when it does not exist.
func (c *Client) GetFile(ctx context.Context, repo RepoRef, path, ref string) (string, error) {
	var opts *gh.RepositoryContentGetOptions
	if ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: ref}
	}
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, opts)
	if err != nil {
		werr := wrap("get file", resp, err)
		if IsNotFound(werr) {
			return "", nil
		}
		return "", werr
	}
	if file == nil {
		return "", nil
	}
	text, err := file.GetContent()
	if err != nil {
		return "", wrap("decode file", resp, err)
	}
	return text, nil
}
