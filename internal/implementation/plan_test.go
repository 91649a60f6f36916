package implementation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jonathan/codecraft/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_HasNoSideEffects(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	plans, err := h.orch.Plan(ctx, PlanRequest{
		RepoURL:     repoURL,
		ProjectName: "b",
		Implementations: []types.Recommendation{
			{Title: "Add tests", Implementation: types.ImplementationDetails{Files: []string{"a_test.go"}, Steps: []string{"write tests"}}},
			{Title: "Add tests"},
			{Title: ""},
		},
	})
	require.NoError(t, err)
	require.Len(t, plans, 3)

	assert.Zero(t, h.runner.calls)
	assert.Empty(t, h.bootstrap.calls)
	assert.Empty(t, h.prs.created)
	_, err = h.orch.Status(ctx, repoURL, "")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	assert.Equal(t, "ai/b/add-tests", plans[0].Branch)
	assert.Equal(t, types.FeasibilityReady, plans[0].Feasibility)
	assert.Equal(t, []string{"a_test.go"}, plans[0].Files)
	assert.Equal(t, []string{"write tests"}, plans[0].Changes)
	assert.True(t, plans[0].Valid)

	assert.Equal(t, "ai/b/add-tests-2", plans[1].Branch)
	assert.Equal(t, types.FeasibilityNeedsReview, plans[1].Feasibility)
	assert.NotEmpty(t, plans[1].Notes)

	assert.False(t, plans[2].Valid)
	assert.Equal(t, types.FeasibilityBlocked, plans[2].Feasibility)
	assert.Empty(t, plans[2].Branch)
	assert.Contains(t, plans[2].Error, "implementations[2].title")
}

func TestPlan_SharedBranch(t *testing.T) {
	plans, err := PlanBatch(PlanRequest{
		RepoURL:           repoURL,
		ProjectName:       "b",
		CreateSeparatePRs: boolPtr(false),
		Implementations: []types.Recommendation{
			{Title: "One", Difficulty: "hard", Description: "d", Implementation: types.ImplementationDetails{Files: []string{"x"}}},
			{Title: "Two"},
		},
	})
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, plans[0].Branch, plans[1].Branch)
	assert.Equal(t, "ai/b/batch-<batch-id>", plans[0].Branch)
	assert.Contains(t, plans[1].Notes[0], "batch id")
	assert.Equal(t, types.FeasibilityNeedsReview, plans[0].Feasibility)
}

func TestPlan_Validation(t *testing.T) {
	_, err := PlanBatch(PlanRequest{RepoURL: repoURL, ProjectName: "b"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "implementations", ve.Field)

	_, err = PlanBatch(PlanRequest{ProjectName: "b", Implementations: []types.Recommendation{{Title: "x"}}})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "repoUrl", ve.Field)
}

func TestImpliedChanges(t *testing.T) {
	assert.Equal(t, []string{"c"}, impliedChanges(types.ImplementationDetails{Changes: []string{"c"}, Steps: []string{"s"}}))
	assert.Equal(t, []string{"s"}, impliedChanges(types.ImplementationDetails{Steps: []string{"s"}}))
	assert.Equal(t, []string{"sum"}, impliedChanges(types.ImplementationDetails{Summary: "sum"}))
	assert.Equal(t, []string{}, impliedChanges(types.ImplementationDetails{}))
}

func TestPlan_MalformedElementIsBlocked(t *testing.T) {
	var req PlanRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"repoUrl": "https://github.com/a/b",
		"projectName": "b",
		"implementations": ["just a string", {"title": "Add tests"}, {"title": "Typed", "techStack": "Go"}]
	}`), &req))

	plans, err := PlanBatch(req)
	require.NoError(t, err)
	require.Len(t, plans, 3)

	assert.Equal(t, types.FeasibilityBlocked, plans[0].Feasibility)
	assert.Contains(t, plans[0].Error, "implementations[0]")
	assert.Contains(t, plans[0].Error, "must be an object")
	assert.True(t, plans[1].Valid)
	assert.Equal(t, types.FeasibilityBlocked, plans[2].Feasibility)
	assert.Contains(t, plans[2].Error, "techStack")
	assert.Equal(t, "Typed", plans[2].Title)
}
