package implementation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/codecraft/internal/github"
	"github.com/jonathan/codecraft/internal/types"
)

var validate = validator.New()

// GenerateRequest asks for one recommendation to be implemented.
type GenerateRequest struct {
	RepoURL        string                `json:"repoUrl"`
	ProjectName    string                `json:"projectName"`
	TechStack      []string              `json:"techStack,omitempty"`
	Difficulty     string                `json:"difficulty,omitempty"`
	Category       string                `json:"category,omitempty"`
	Implementation *types.Recommendation `json:"implementation"`
	AnalysisData   *types.AnalysisData   `json:"analysisData,omitempty"`

	analysisDropped bool
}

// BatchRequest asks for several recommendations to be implemented against one
// repository. CreateSeparatePRs defaults to true.
type BatchRequest struct {
	RepoURL           string                 `json:"repoUrl"`
	ProjectName       string                 `json:"projectName"`
	TechStack         []string               `json:"techStack,omitempty"`
	Difficulty        string                 `json:"difficulty,omitempty"`
	Category          string                 `json:"category,omitempty"`
	Implementations   []types.Recommendation `json:"implementations"`
	AnalysisData      *types.AnalysisData    `json:"analysisData,omitempty"`
	CreateSeparatePRs *bool                  `json:"createSeparatePRs,omitempty"`

	elementErrs     map[int]string // implementations that could not be decoded
	analysisDropped bool
}

// UnmarshalJSON decodes implementations one element at a time so a malformed
// element only fails its own job. Analysis context that does not decode is
// dropped.
func (r *BatchRequest) UnmarshalJSON(data []byte) error {
	type plain BatchRequest
	var aux struct {
		plain
		Implementations []json.RawMessage `json:"implementations"`
		AnalysisData    json.RawMessage   `json:"analysisData,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = BatchRequest(aux.plain)

	r.Implementations = nil
	if aux.Implementations != nil {
		r.Implementations = make([]types.Recommendation, len(aux.Implementations))
	}
	for i, raw := range aux.Implementations {
		// A partially decoded element keeps its title for the job record.
		if err := json.Unmarshal(raw, &r.Implementations[i]); err != nil {
			if r.elementErrs == nil {
				r.elementErrs = make(map[int]string)
			}
			r.elementErrs[i] = describeDecodeError(err)
		}
	}
	r.AnalysisData, r.analysisDropped = decodeAnalysis(aux.AnalysisData)
	return nil
}

// UnmarshalJSON drops analysis context that does not decode.
func (r *GenerateRequest) UnmarshalJSON(data []byte) error {
	type plain GenerateRequest
	var aux struct {
		plain
		AnalysisData json.RawMessage `json:"analysisData,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = GenerateRequest(aux.plain)
	r.AnalysisData, r.analysisDropped = decodeAnalysis(aux.AnalysisData)
	return nil
}

// decodeAnalysis reports whether a non-empty payload had to be discarded.
func decodeAnalysis(raw json.RawMessage) (*types.AnalysisData, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var a types.AnalysisData
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, true
	}
	return &a, false
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return fmt.Sprintf("must be an object, got %s", typeErr.Value)
		}
		return fmt.Sprintf("%s has the wrong type, got %s", typeErr.Field, typeErr.Value)
	}
	return "could not be decoded"
}

// PlanRequest has the shape of a BatchRequest; planning never has side effects.
type PlanRequest = BatchRequest

func (r *BatchRequest) separatePRs() bool {
	return r.CreateSeparatePRs == nil || *r.CreateSeparatePRs
}

// validateTarget checks the fields shared by every request and resolves the repository.
func validateTarget(repoURL, projectName string) (github.RepoRef, error) {
	if strings.TrimSpace(repoURL) == "" {
		return github.RepoRef{}, &ValidationError{Field: "repoUrl", Message: "is required"}
	}
	ref, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return github.RepoRef{}, &ValidationError{Field: "repoUrl", Message: err.Error()}
	}
	if strings.TrimSpace(projectName) == "" {
		return github.RepoRef{}, &ValidationError{Field: "projectName", Message: "is required"}
	}
	return ref, nil
}

// validateRecommendation checks one recommendation; field is used in the error.
func validateRecommendation(field string, rec *types.Recommendation) error {
	if rec == nil {
		return &ValidationError{Field: field, Message: "is required"}
	}
	trimmed := *rec
	trimmed.Title = strings.TrimSpace(rec.Title)
	if err := validate.Struct(trimmed); err != nil {
		return &ValidationError{Field: field + ".title", Message: "is required"}
	}
	return nil
}

// validateElement checks element i of the batch, including whether it decoded.
func (r *BatchRequest) validateElement(i int) error {
	field := fmt.Sprintf("implementations[%d]", i)
	if msg, ok := r.elementErrs[i]; ok {
		return &ValidationError{Field: field, Message: msg}
	}
	return validateRecommendation(field, &r.Implementations[i])
}

func validateBatch(req *BatchRequest) (github.RepoRef, error) {
	ref, err := validateTarget(req.RepoURL, req.ProjectName)
	if err != nil {
		return ref, err
	}
	if len(req.Implementations) == 0 {
		return ref, &ValidationError{Field: "implementations", Message: "must contain at least one recommendation"}
	}
	return ref, nil
}
