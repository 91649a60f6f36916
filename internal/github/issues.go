package github

import (
	"context"

	gh "github.com/google/go-github/v84/github"
)

// ListIssues lists issues in the given state (default "open"). GitHub returns
// pull requests from this endpoint too; they are filtered out.
func (c *Client) ListIssues(ctx context.Context, repo RepoRef, opts ListOptions) ([]*Issue, error) {
	state := opts.State
	if state == "" {
		state = "open"
	}
	issues, resp, err := c.gh.Issues.ListByRepo(ctx, repo.Owner, repo.Name, &gh.IssueListByRepoOptions{
		State:       state,
		ListOptions: listOptions(opts.Page, opts.PerPage),
	})
	if err != nil {
		return nil, wrap("list issues", resp, err)
	}
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		if i.IsPullRequest() {
			continue
		}
		out = append(out, toIssue(i))
	}
	return out, nil
}

// CreateIssue opens an issue.
func (c *Client) CreateIssue(ctx context.Context, repo RepoRef, req IssueRequest) (*Issue, error) {
	issue, resp, err := c.gh.Issues.Create(ctx, repo.Owner, repo.Name, toIssueRequest(req))
	if err != nil {
		return nil, wrap("create issue", resp, err)
	}
	return toIssue(issue), nil
}

// UpdateIssue edits an issue.
func (c *Client) UpdateIssue(ctx context.Context, repo RepoRef, number int, req IssueRequest) (*Issue, error) {
	issue, resp, err := c.gh.Issues.Edit(ctx, repo.Owner, repo.Name, number, toIssueRequest(req))
	if err != nil {
		return nil, wrap("update issue", resp, err)
	}
	return toIssue(issue), nil
}

// CloseIssue closes an issue.
func (c *Client) CloseIssue(ctx context.Context, repo RepoRef, number int) (*Issue, error) {
	return c.UpdateIssue(ctx, repo, number, IssueRequest{State: gh.Ptr("closed")})
}

func toIssueRequest(req IssueRequest) *gh.IssueRequest {
	return &gh.IssueRequest{
		Title:  req.Title,
		Body:   req.Body,
		State:  req.State,
		Labels: req.Labels,
	}
}
