// Package deploy triggers and inspects Vercel deployments of GitHub repositories.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Vercel REST API root.
const DefaultBaseURL = "https://api.vercel.com"

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// UpstreamError represents a failed Vercel API call.
type UpstreamError struct {
	Service    string
	StatusCode int
	Code       string
	Message    string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Service, e.Message, e.Cause)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Service, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// DeployRequest describes a deployment of a GitHub repository branch.
type DeployRequest struct {
	Project string `json:"project" validate:"required"`
	RepoID  int64  `json:"repoId" validate:"required"`
	Branch  string `json:"branch,omitempty"`
	Target  string `json:"target,omitempty" validate:"omitempty,oneof=production preview"`
}

// Deployment is the state of a Vercel deployment.
type Deployment struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	ReadyState string    `json:"readyState"`
	Project    string    `json:"project,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Options configures the client.
type Options struct {
	BaseURL string
	TeamID  string
	Timeout time.Duration
}

// Client calls the Vercel deployments API.
type Client struct {
	http    *http.Client
	baseURL string
	teamID  string
}

// NewClient creates a client authenticated with a bearer token.
func NewClient(ctx context.Context, token string, opts Options) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("vercel token is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	httpClient.Timeout = opts.Timeout

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		teamID:  opts.TeamID,
	}, nil
}

type apiDeployment struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ReadyState string `json:"readyState"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"createdAt"`
}

func (d apiDeployment) toDeployment() *Deployment {
	out := &Deployment{
		ID:         d.ID,
		URL:        d.URL,
		ReadyState: d.ReadyState,
		Project:    d.Name,
	}
	if out.URL != "" && !strings.HasPrefix(out.URL, "http://") && !strings.HasPrefix(out.URL, "https://") {
		out.URL = "https://" + out.URL
	}
	if d.CreatedAt > 0 {
		out.CreatedAt = time.UnixMilli(d.CreatedAt).UTC()
	}
	return out
}

// Deploy starts a deployment of the given branch (default "main").
func (c *Client) Deploy(ctx context.Context, req DeployRequest) (*Deployment, error) {
	if req.Project == "" {
		return nil, fmt.Errorf("project is required")
	}
	if req.RepoID == 0 {
		return nil, fmt.Errorf("repository id is required")
	}
	branch := req.Branch
	if branch == "" {
		branch = "main"
	}

	body := map[string]any{
		"name": req.Project,
		"gitSource": map[string]any{
			"type":   "github",
			"repoId": req.RepoID,
			"ref":    branch,
		},
	}
	if req.Target != "" {
		body["target"] = req.Target
	}

	var out apiDeployment
	if err := c.do(ctx, http.MethodPost, "/v13/deployments", body, &out); err != nil {
		return nil, err
	}
	clog.FromContext(ctx).Infof("Started Vercel deployment %s for %s@%s", out.ID, req.Project, branch)
	return out.toDeployment(), nil
}

// GetDeployment fetches a deployment by id or URL.
func (c *Client) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	if id == "" {
		return nil, fmt.Errorf("deployment id is required")
	}
	var out apiDeployment
	if err := c.do(ctx, http.MethodGet, "/v13/deployments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.toDeployment(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	endpoint := c.baseURL + path
	if c.teamID != "" {
		endpoint += "?teamId=" + url.QueryEscape(c.teamID)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &UpstreamError{Service: "vercel", Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Service: "vercel", Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Service: "vercel", StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return &UpstreamError{Service: "vercel", StatusCode: resp.StatusCode, Code: apiErr.Error.Code, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &UpstreamError{Service: "vercel", StatusCode: resp.StatusCode, Message: "malformed response", Cause: err}
	}
	return nil
}
