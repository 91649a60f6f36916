package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v84/github"
)

// CreatePullRequest opens a pull request and applies its labels. A labeling
// failure is returned alongside the created pull request.
func (c *Client) CreatePullRequest(ctx context.Context, repo RepoRef, req NewPullRequest) (*PullRequest, error) {
	pr, resp, err := c.gh.PullRequests.Create(ctx, repo.Owner, repo.Name, &gh.NewPullRequest{
		Title: gh.Ptr(req.Title),
		Body:  gh.Ptr(req.Body),
		Head:  gh.Ptr(req.Head),
		Base:  gh.Ptr(req.Base),
		Draft: gh.Ptr(req.Draft),
	})
	if err != nil {
		return nil, wrap("create pull request", resp, err)
	}
	out := toPullRequest(pr)

	if len(req.Labels) > 0 {
		labels, resp, err := c.gh.Issues.AddLabelsToIssue(ctx, repo.Owner, repo.Name, pr.GetNumber(), req.Labels)
		if err != nil {
			return out, wrap("label pull request", resp, err)
		}
		out.Labels = out.Labels[:0]
		for _, l := range labels {
			out.Labels = append(out.Labels, l.GetName())
		}
	}
	return out, nil
}

// UpdatePullRequest edits the title, body, state or base of a pull request.
func (c *Client) UpdatePullRequest(ctx context.Context, repo RepoRef, number int, upd PullRequestUpdate) (*PullRequest, error) {
	edit := &gh.PullRequest{Title: upd.Title, Body: upd.Body, State: upd.State}
	if upd.Base != nil {
		edit.Base = &gh.PullRequestBranch{Ref: upd.Base}
	}
	pr, resp, err := c.gh.PullRequests.Edit(ctx, repo.Owner, repo.Name, number, edit)
	if err != nil {
		return nil, wrap("update pull request", resp, err)
	}
	return toPullRequest(pr), nil
}

// ClosePullRequest closes a pull request without merging it.
func (c *Client) ClosePullRequest(ctx context.Context, repo RepoRef, number int) (*PullRequest, error) {
	return c.UpdatePullRequest(ctx, repo, number, PullRequestUpdate{State: gh.Ptr("closed")})
}

// MergePullRequest merges a pull request with the given method
// ("merge", "squash" or "rebase"; empty uses the repository default).
func (c *Client) MergePullRequest(ctx context.Context, repo RepoRef, number int, message, method string) (*MergeResult, error) {
	var opts *gh.PullRequestOptions
	if method != "" {
		opts = &gh.PullRequestOptions{MergeMethod: method}
	}
	res, resp, err := c.gh.PullRequests.Merge(ctx, repo.Owner, repo.Name, number, message, opts)
	if err != nil {
		return nil, wrap("merge pull request", resp, err)
	}
	return &MergeResult{SHA: res.GetSHA(), Merged: res.GetMerged(), Message: res.GetMessage()}, nil
}

// ListPullRequests lists pull requests in the given state (default "open").
func (c *Client) ListPullRequests(ctx context.Context, repo RepoRef, opts ListOptions) ([]*PullRequest, error) {
	state := opts.State
	if state == "" {
		state = "open"
	}
	prs, resp, err := c.gh.PullRequests.List(ctx, repo.Owner, repo.Name, &gh.PullRequestListOptions{
		State:       state,
		ListOptions: listOptions(opts.Page, opts.PerPage),
	})
	if err != nil {
		return nil, wrap("list pull requests", resp, err)
	}
	out := make([]*PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, toPullRequest(pr))
	}
	return out, nil
}

// FindOpenPullRequest returns the open pull request whose head is branch, or
// nil when there is none.
func (c *Client) FindOpenPullRequest(ctx context.Context, repo RepoRef, branch string) (*PullRequest, error) {
	prs, resp, err := c.gh.PullRequests.List(ctx, repo.Owner, repo.Name, &gh.PullRequestListOptions{
		State:       "open",
		Head:        fmt.Sprintf("%s:%s", repo.Owner, branch),
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, wrap("find pull request", resp, err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return toPullRequest(prs[0]), nil
}
