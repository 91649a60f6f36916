// Package github adapts the GitHub REST API to the shapes the codecraft
// service exposes and consumes.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// UpstreamError wraps a failed GitHub API call.
type UpstreamError struct {
	Service    string
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %s", e.Service, e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Service, e.Operation, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound
}

// Client is a token-authenticated GitHub API client.
type Client struct {
	gh *gh.Client
}

// Option configures a Client.
type Option func(*gh.Client) error

// WithBaseURL points the client at a different API root, such as GitHub
// Enterprise or a test server.
func WithBaseURL(rawURL string) Option {
	return func(c *gh.Client) error {
		if !strings.HasSuffix(rawURL, "/") {
			rawURL += "/"
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		c.BaseURL = u
		return nil
	}
}

// NewClient creates a client authenticating with token. An empty token yields
// an anonymous client, which GitHub rate limits heavily.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	c := gh.NewClient(httpClient)
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return &Client{gh: c}, nil
}

// wrap converts a go-github error into an *UpstreamError.
func wrap(op string, resp *gh.Response, err error) error {
	if err == nil {
		return nil
	}
	ue := &UpstreamError{Service: "github", Operation: op, Message: err.Error(), Err: err}
	var er *gh.ErrorResponse
	if errors.As(err, &er) {
		ue.Message = er.Message
		if er.Response != nil {
			ue.StatusCode = er.Response.StatusCode
		}
	} else if resp != nil && resp.Response != nil {
		ue.StatusCode = resp.StatusCode
	}
	return ue
}

func listOptions(page, perPage int) gh.ListOptions {
	if perPage <= 0 || perPage > 100 {
		perPage = 30
	}
	if page <= 0 {
		page = 1
	}
	return gh.ListOptions{Page: page, PerPage: perPage}
}
