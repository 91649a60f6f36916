package implementation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/codecraft/internal/prompts"
	"github.com/jonathan/codecraft/internal/types"
)

const notProvided = "not provided"

// task is one job together with the inputs needed to execute it.
type task struct {
	job      *types.ImplementationJob
	rec      types.Recommendation
	analysis *types.AnalysisData
}

func buildPrompt(t *task) (string, error) {
	template, err := prompts.Get("implementation.json", "generate-implementation")
	if err != nil {
		return "", fmt.Errorf("failed to load implementation prompt: %w", err)
	}
	return prompts.FormatWithDefault(template, map[string]string{
		"ProjectName":     t.job.ProjectName,
		"RepoURL":         t.job.RepoURL,
		"Branch":          t.job.Branch,
		"TechStack":       strings.Join(t.job.TechStack, ", "),
		"Category":        t.job.Category,
		"Difficulty":      t.job.Difficulty,
		"Title":           t.rec.Title,
		"Description":     t.rec.Description,
		"Details":         formatDetails(t.rec.Implementation),
		"AnalysisContext": formatAnalysis(t.analysis),
	}, notProvided), nil
}

func formatDetails(d types.ImplementationDetails) string {
	var b strings.Builder
	if d.Summary != "" {
		b.WriteString(d.Summary)
		b.WriteString("\n")
	}
	writeList(&b, "Steps", d.Steps)
	writeList(&b, "Files", d.Files)
	writeList(&b, "Changes", d.Changes)
	if d.Code != "" {
		b.WriteString("Example code:\n```\n")
		b.WriteString(strings.TrimRight(d.Code, "\n"))
		b.WriteString("\n```\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAnalysis(a *types.AnalysisData) string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	if a.Summary != "" {
		b.WriteString(a.Summary)
		b.WriteString("\n")
	}
	if len(a.Scores) > 0 {
		keys := make([]string, 0, len(a.Scores))
		for k := range a.Scores {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, a.Scores[k]))
		}
		b.WriteString("Scores: ")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	writeList(&b, "Strengths", a.Strengths)
	writeList(&b, "Weaknesses", a.Weaknesses)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func commitMessage(t *task) string {
	var b strings.Builder
	b.WriteString(t.rec.Title)
	if t.rec.Implementation.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(t.rec.Implementation.Summary)
	}
	fmt.Fprintf(&b, "\n\nGenerated by codecraft (category: %s, difficulty: %s)", orDefault(t.job.Category), orDefault(t.job.Difficulty))
	return b.String()
}

func pullRequestTitle(title string) string {
	return "[AI] " + title
}

func pullRequestBody(t *task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", t.rec.Title)
	if t.rec.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", t.rec.Description)
	}
	fmt.Fprintf(&b, "**Category:** %s\n", orDefault(t.job.Category))
	fmt.Fprintf(&b, "**Difficulty:** %s\n", orDefault(t.job.Difficulty))
	if len(t.job.TechStack) > 0 {
		fmt.Fprintf(&b, "**Tech stack:** %s\n", strings.Join(t.job.TechStack, ", "))
	}
	if t.rec.Implementation.Summary != "" {
		fmt.Fprintf(&b, "\n### Summary\n\n%s\n", t.rec.Implementation.Summary)
	}
	if len(t.job.FilesChanged) > 0 {
		b.WriteString("\n### Files changed\n\n")
		for _, f := range t.job.FilesChanged {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}
	b.WriteString("\n_Generated by codecraft with the Gemini CLI._\n")
	return b.String()
}

func sharedPullRequestBody(projectName string, tasks []*task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s: AI implementations\n\n", projectName)
	for _, t := range tasks {
		fmt.Fprintf(&b, "- **%s** (category: %s, difficulty: %s)", t.rec.Title, orDefault(t.job.Category), orDefault(t.job.Difficulty))
		if t.rec.Implementation.Summary != "" {
			fmt.Fprintf(&b, ": %s", t.rec.Implementation.Summary)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n_Generated by codecraft with the Gemini CLI._\n")
	return b.String()
}

func pullRequestLabels(categories ...string) []string {
	labels := []string{"ai-implementation"}
	seen := map[string]bool{}
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		labels = append(labels, "category:"+c)
	}
	return labels
}

func orDefault(s string) string {
	if s == "" {
		return notProvided
	}
	return s
}
