package github

import (
	"time"

	gh "github.com/google/go-github/v84/github"
)

// Repository is the subset of repository metadata the service uses.
type Repository struct {
	ID            int64     `json:"id"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"fullName"`
	Description   string    `json:"description,omitempty"`
	HTMLURL       string    `json:"htmlUrl"`
	CloneURL      string    `json:"cloneUrl"`
	DefaultBranch string    `json:"defaultBranch"`
	Language      string    `json:"language,omitempty"`
	Private       bool      `json:"private"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	OpenIssues    int       `json:"openIssues"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// Branch is a repository branch head.
type Branch struct {
	Name      string `json:"name"`
	SHA       string `json:"sha"`
	Protected bool   `json:"protected"`
}

// Commit is a commit summary.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date,omitempty"`
	HTMLURL string    `json:"htmlUrl"`
}

// PullRequest is a pull request summary.
type PullRequest struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Body    string   `json:"body,omitempty"`
	State   string   `json:"state"`
	Head    string   `json:"head"`
	Base    string   `json:"base"`
	HTMLURL string   `json:"htmlUrl"`
	Merged  bool     `json:"merged"`
	Labels  []string `json:"labels,omitempty"`
}

// Issue is an issue summary.
type Issue struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Body    string   `json:"body,omitempty"`
	State   string   `json:"state"`
	HTMLURL string   `json:"htmlUrl"`
	Labels  []string `json:"labels,omitempty"`
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Title  string   `json:"title" validate:"required"`
	Body   string   `json:"body"`
	Head   string   `json:"head" validate:"required"`
	Base   string   `json:"base" validate:"required"`
	Draft  bool     `json:"draft"`
	Labels []string `json:"labels,omitempty"`
}

// PullRequestUpdate holds the fields to change on a pull request. Nil fields
// are left untouched.
type PullRequestUpdate struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
	State *string `json:"state,omitempty" validate:"omitempty,oneof=open closed"`
	Base  *string `json:"base,omitempty"`
}

// IssueRequest describes an issue to create or the fields to change on one.
type IssueRequest struct {
	Title  *string   `json:"title,omitempty"`
	Body   *string   `json:"body,omitempty"`
	State  *string   `json:"state,omitempty" validate:"omitempty,oneof=open closed"`
	Labels *[]string `json:"labels,omitempty"`
}

// MergeResult reports the outcome of a merge.
type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

// ListOptions pages through list endpoints.
type ListOptions struct {
	Page    int
	PerPage int
	State   string
}

func toRepository(r *gh.Repository) *Repository {
	if r == nil {
		return nil
	}
	return &Repository{
		ID:            r.GetID(),
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		HTMLURL:       r.GetHTMLURL(),
		CloneURL:      r.GetCloneURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Language:      r.GetLanguage(),
		Private:       r.GetPrivate(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		UpdatedAt:     r.GetUpdatedAt().Time,
	}
}

func toPullRequest(pr *gh.PullRequest) *PullRequest {
	if pr == nil {
		return nil
	}
	out := &PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		State:   pr.GetState(),
		Head:    pr.GetHead().GetRef(),
		Base:    pr.GetBase().GetRef(),
		HTMLURL: pr.GetHTMLURL(),
		Merged:  pr.GetMerged(),
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out
}

func toIssue(i *gh.Issue) *Issue {
	if i == nil {
		return nil
	}
	out := &Issue{
		Number:  i.GetNumber(),
		Title:   i.GetTitle(),
		Body:    i.GetBody(),
		State:   i.GetState(),
		HTMLURL: i.GetHTMLURL(),
	}
	for _, l := range i.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out
}
