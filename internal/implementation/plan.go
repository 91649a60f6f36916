package implementation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/codecraft/internal/types"
)

// hardDifficulties mark recommendations that need a human look before running.
var hardDifficulties = map[string]bool{"hard": true, "advanced": true, "expert": true}

// Plan describes what Batch would do for req without running the CLI,
// touching git or GitHub, or storing jobs.
func (o *Orchestrator) Plan(ctx context.Context, req PlanRequest) ([]types.Plan, error) {
	return PlanBatch(req)
}

// PlanBatch is Plan without an Orchestrator.
func PlanBatch(req PlanRequest) ([]types.Plan, error) {
	if _, err := validateBatch(&req); err != nil {
		return nil, err
	}

	shared := ""
	if !req.separatePRs() {
		shared = PlannedSharedBranchName(req.ProjectName)
	}

	namer := newBranchNamer()
	plans := make([]types.Plan, 0, len(req.Implementations))
	for i := range req.Implementations {
		rec := req.Implementations[i]
		p := types.Plan{
			Sequence:   i,
			Title:      strings.TrimSpace(rec.Title),
			Category:   firstNonEmpty(rec.Category, req.Category),
			Difficulty: firstNonEmpty(rec.Difficulty, req.Difficulty),
			Files:      append([]string{}, rec.Implementation.Files...),
			Changes:    impliedChanges(rec.Implementation),
		}

		if err := req.validateElement(i); err != nil {
			p.Feasibility = types.FeasibilityBlocked
			p.Error = err.Error()
			plans = append(plans, p)
			continue
		}

		p.Valid = true
		if shared != "" {
			p.Branch = shared
			p.Notes = append(p.Notes, "commits to the shared batch branch, named with the batch id when the batch runs; one pull request covers the batch")
		} else {
			p.Branch = namer.next(req.ProjectName, p.Title)
		}
		p.Feasibility, p.Notes = assess(rec, p, p.Notes)
		plans = append(plans, p)
	}
	return plans, nil
}

// impliedChanges lists the explicit changes, falling back to the steps and then
// to the summary.
func impliedChanges(d types.ImplementationDetails) []string {
	switch {
	case len(d.Changes) > 0:
		return append([]string{}, d.Changes...)
	case len(d.Steps) > 0:
		return append([]string{}, d.Steps...)
	case d.Summary != "":
		return []string{d.Summary}
	default:
		return []string{}
	}
}

func assess(rec types.Recommendation, p types.Plan, notes []string) (types.Feasibility, []string) {
	feasibility := types.FeasibilityReady
	if len(p.Files) == 0 {
		notes = append(notes, "no target files listed; the generator will choose where to edit")
		feasibility = types.FeasibilityNeedsReview
	}
	if len(p.Changes) == 0 && rec.Description == "" {
		notes = append(notes, "no description or implementation details; the result may not match intent")
		feasibility = types.FeasibilityNeedsReview
	}
	if hardDifficulties[strings.ToLower(p.Difficulty)] {
		notes = append(notes, fmt.Sprintf("difficulty %q; review the pull request carefully", p.Difficulty))
		feasibility = types.FeasibilityNeedsReview
	}
	return feasibility, notes
}
