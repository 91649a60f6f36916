package github

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// CloneURL returns the https clone URL on github.com.
func (r RepoRef) CloneURL() string {
	return "https://github.com/" + r.FullName() + ".git"
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseRepoURL accepts https URLs, scp-style ssh remotes (git@host:owner/repo)
// and bare "owner/repo" shorthand.
func ParseRepoURL(raw string) (RepoRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RepoRef{}, fmt.Errorf("repository URL is empty")
	}

	var path string
	switch {
	case strings.HasPrefix(s, "git@"):
		_, rest, ok := strings.Cut(s, ":")
		if !ok {
			return RepoRef{}, fmt.Errorf("invalid ssh repository URL %q", raw)
		}
		path = rest
	case strings.Contains(s, "://"):
		u, err := url.Parse(s)
		if err != nil {
			return RepoRef{}, fmt.Errorf("invalid repository URL %q: %w", raw, err)
		}
		if u.Host == "" {
			return RepoRef{}, fmt.Errorf("invalid repository URL %q: missing host", raw)
		}
		path = u.Path
	default:
		path = s
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || !segmentPattern.MatchString(parts[0]) || !segmentPattern.MatchString(parts[1]) {
		return RepoRef{}, fmt.Errorf("invalid repository URL %q: expected owner/repo", raw)
	}
	return RepoRef{Owner: parts[0], Name: parts[1]}, nil
}
