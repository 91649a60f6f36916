// Package analysis produces AI code-quality reports for GitHub repositories.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/jonathan/codecraft/internal/github"
	"github.com/jonathan/codecraft/internal/llm"
	"github.com/jonathan/codecraft/internal/prompts"
	"github.com/jonathan/codecraft/internal/schemas"
	"github.com/jonathan/codecraft/internal/types"
)

// DefaultMaxRecommendations caps the recommendations requested from the model.
const DefaultMaxRecommendations = 8

const maxReadmeChars = 12000

// ScoreKeys are the score categories every report carries.
var ScoreKeys = []string{"overall", "codeQuality", "security", "maintainability", "documentation", "testing"}

// CodeSample is a file excerpt included in the analysis prompt.
type CodeSample struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Repository is the input to an analysis.
type Repository struct {
	FullName      string            `json:"fullName"`
	Description   string            `json:"description,omitempty"`
	DefaultBranch string            `json:"defaultBranch,omitempty"`
	Languages     []github.Language `json:"languages,omitempty"`
	Stars         int               `json:"stars"`
	OpenIssues    int               `json:"openIssues"`
	Readme        string            `json:"-"`
	CodeSamples   []CodeSample      `json:"-"`
}

// Report is the result of an analysis.
type Report struct {
	Repository string `json:"repository"`
	types.AnalysisData
	GeneratedAt time.Time `json:"generatedAt"`
}

// ReportError indicates the model returned a report that could not be used.
type ReportError struct {
	Message string
	Cause   error
}

func (e *ReportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid analysis report: %s: %v", e.Message, e.Cause)
	}
	return "invalid analysis report: " + e.Message
}

func (e *ReportError) Unwrap() error {
	return e.Cause
}

// Service runs analyses with an LLM client.
type Service struct {
	client             llm.Client
	tier               llm.ModelTier
	maxRecommendations int
	now                func() time.Time
}

// NewService creates an analysis service.
func NewService(client llm.Client) *Service {
	return &Service{
		client:             client,
		tier:               llm.TierAdvanced,
		maxRecommendations: DefaultMaxRecommendations,
		now:                time.Now,
	}
}

// Analyze asks the model for a report on repo and validates the result.
func (s *Service) Analyze(ctx context.Context, repo Repository) (*Report, error) {
	if strings.TrimSpace(repo.FullName) == "" {
		return nil, fmt.Errorf("repository name is required")
	}

	prompt, err := s.buildPrompt(repo)
	if err != nil {
		return nil, err
	}

	log := clog.FromContext(ctx).With("repository", repo.FullName)
	log.Infof("Requesting analysis (%d code samples)", len(repo.CodeSamples))

	raw, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}

	data, err := ParseReport(raw)
	if err != nil {
		log.Warnf("Discarding analysis report: %v", err)
		return nil, err
	}
	if len(data.Recommendations) > s.maxRecommendations {
		data.Recommendations = data.Recommendations[:s.maxRecommendations]
	}

	return &Report{
		Repository:   repo.FullName,
		AnalysisData: *data,
		GeneratedAt:  s.now().UTC(),
	}, nil
}

func (s *Service) buildPrompt(repo Repository) (string, error) {
	template, err := prompts.Get("analysis.json", "analyze-repository")
	if err != nil {
		return "", fmt.Errorf("failed to load analysis prompt: %w", err)
	}

	langs := make([]string, 0, len(repo.Languages))
	for _, l := range repo.Languages {
		langs = append(langs, l.Name)
	}

	readme := repo.Readme
	if len(readme) > maxReadmeChars {
		readme = readme[:maxReadmeChars]
	}

	var samples strings.Builder
	for _, cs := range repo.CodeSamples {
		fmt.Fprintf(&samples, "--- %s ---\n%s\n", cs.Path, cs.Content)
	}

	return prompts.FormatWithDefault(template, map[string]string{
		"MaxRecommendations": strconv.Itoa(s.maxRecommendations),
		"FullName":           repo.FullName,
		"Description":        repo.Description,
		"DefaultBranch":      repo.DefaultBranch,
		"Languages":          strings.Join(langs, ", "),
		"Stars":              strconv.Itoa(repo.Stars),
		"OpenIssues":         strconv.Itoa(repo.OpenIssues),
		"Readme":             readme,
		"CodeSamples":        samples.String(),
	}, "(none)"), nil
}

// ParseReport decodes and validates a model response. Scores are rounded and
// clamped to [0, 100]; missing score categories are reported as 0.
func ParseReport(raw string) (*types.AnalysisData, error) {
	doc := llm.ExtractJSONObject(llm.CleanJSONBlock(raw))

	if err := schemas.Validate(schemas.AnalysisReport, doc); err != nil {
		return nil, &ReportError{Message: "schema validation failed", Cause: err}
	}

	var parsed struct {
		Summary         string                 `json:"summary"`
		Scores          map[string]float64     `json:"scores"`
		Strengths       []string               `json:"strengths"`
		Weaknesses      []string               `json:"weaknesses"`
		Recommendations []types.Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, &ReportError{Message: "malformed JSON", Cause: err}
	}

	scores := make(map[string]int, len(ScoreKeys))
	for _, key := range ScoreKeys {
		scores[key] = 0
	}
	for key, v := range parsed.Scores {
		scores[key] = clampScore(v)
	}

	return &types.AnalysisData{
		Summary:         strings.TrimSpace(parsed.Summary),
		Scores:          scores,
		Strengths:       parsed.Strengths,
		Weaknesses:      parsed.Weaknesses,
		Recommendations: parsed.Recommendations,
	}, nil
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
