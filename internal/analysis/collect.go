package analysis

import (
	"context"
	"fmt"

	"github.com/jonathan/codecraft/internal/github"
)

// sampleFiles are the manifests and entry points fetched as code samples when present.
var sampleFiles = []string{
	"go.mod",
	"package.json",
	"requirements.txt",
	"pyproject.toml",
	"Cargo.toml",
	"pom.xml",
	"Dockerfile",
	"main.go",
	"src/index.ts",
	"src/index.js",
	"app.py",
}

const (
	maxSamples     = 5
	maxSampleChars = 4000
)

// RepoSource is the subset of the GitHub adapter used to gather analysis input.
type RepoSource interface {
	GetRepository(ctx context.Context, repo github.RepoRef) (*github.Repository, error)
	ListLanguages(ctx context.Context, repo github.RepoRef) ([]github.Language, error)
	GetReadme(ctx context.Context, repo github.RepoRef) (string, error)
	GetFile(ctx context.Context, repo github.RepoRef, path, ref string) (string, error)
}

// Collect gathers repository metadata, languages, README and a handful of code
// samples from GitHub.
func Collect(ctx context.Context, src RepoSource, ref github.RepoRef) (Repository, error) {
	meta, err := src.GetRepository(ctx, ref)
	if err != nil {
		return Repository{}, err
	}
	langs, err := src.ListLanguages(ctx, ref)
	if err != nil {
		return Repository{}, err
	}
	readme, err := src.GetReadme(ctx, ref)
	if err != nil {
		return Repository{}, err
	}

	repo := Repository{
		FullName:      meta.FullName,
		Description:   meta.Description,
		DefaultBranch: meta.DefaultBranch,
		Languages:     langs,
		Stars:         meta.Stars,
		OpenIssues:    meta.OpenIssues,
		Readme:        readme,
	}
	if repo.FullName == "" {
		repo.FullName = ref.FullName()
	}

	for _, path := range sampleFiles {
		if len(repo.CodeSamples) >= maxSamples {
			break
		}
		content, err := src.GetFile(ctx, ref, path, meta.DefaultBranch)
		if err != nil {
			return Repository{}, fmt.Errorf("fetching %s: %w", path, err)
		}
		if content == "" {
			continue
		}
		if len(content) > maxSampleChars {
			content = content[:maxSampleChars]
		}
		repo.CodeSamples = append(repo.CodeSamples, CodeSample{Path: path, Content: content})
	}
	return repo, nil
}
