// Package observability provides human-readable CLI output for plans and
// bootstrap results.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/codecraft/internal/gemini"
	"github.com/jonathan/codecraft/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer writes boxed summaries for terminal output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to a terminal; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	p.printRow(title, inner)
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		p.printRow(line, inner)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// printRow pads by runes; %-*s counts bytes and misaligns bullets.
//
//nolint:errcheck // writing to a terminal
func (p *Printer) printRow(text string, width int) {
	text = truncate(text, width)
	fmt.Fprintf(p.out, "│ %s%s │\n", text, strings.Repeat(" ", width-utf8.RuneCountInString(text)))
}

// writeList appends up to maxItemsToShow items under heading.
func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
}

// PrintPlans outputs one box per plan followed by a feasibility summary.
func (p *Printer) PrintPlans(plans []types.Plan) {
	if len(plans) == 0 {
		return
	}

	counts := map[types.Feasibility]int{}
	for _, plan := range plans {
		counts[plan.Feasibility]++

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Feasibility: %s\n", plan.Feasibility))
		if plan.Branch != "" {
			sb.WriteString(fmt.Sprintf("Branch:      %s\n", plan.Branch))
		}
		if plan.Category != "" || plan.Difficulty != "" {
			sb.WriteString(fmt.Sprintf("Category:    %s / %s\n", orDash(plan.Category), orDash(plan.Difficulty)))
		}
		if plan.Error != "" {
			sb.WriteString(fmt.Sprintf("Error:       %s\n", plan.Error))
		}
		writeList(&sb, "Files", plan.Files)
		writeList(&sb, "Changes", plan.Changes)
		writeList(&sb, "Notes", plan.Notes)

		p.printBox(fmt.Sprintf("#%d  %s", plan.Sequence+1, orDash(plan.Title)), strings.TrimSuffix(sb.String(), "\n"))
	}

	//nolint:errcheck // writing to a terminal
	fmt.Fprintf(p.out, "%d planned: %d ready, %d need review, %d blocked\n", len(plans),
		counts[types.FeasibilityReady], counts[types.FeasibilityNeedsReview], counts[types.FeasibilityBlocked])
}

// PrintBootstrap outputs the files written by a bootstrap run.
func (p *Printer) PrintBootstrap(result *gemini.BootstrapResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config:  %s\n", result.ConfigPath))
	if result.BackupPath != "" {
		sb.WriteString(fmt.Sprintf("Backup:  %s\n", result.BackupPath))
	}
	if result.IgnorePath != "" {
		sb.WriteString(fmt.Sprintf("Ignore:  %s\n", result.IgnorePath))
	}
	if result.NotePath != "" {
		sb.WriteString(fmt.Sprintf("Note:    %s\n", result.NotePath))
	}

	p.printBox("GEMINI CONFIGURATION WRITTEN", strings.TrimSuffix(sb.String(), "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
