package implementation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	branchPrefix = "ai"
	maxSlugLen   = 40
	emptySlug    = "change"
)

// Slugify lowercases s and reduces it to [a-z0-9-], collapsing every run of
// other characters into a single dash. The result is at most 40 characters and
// never empty.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return emptySlug
	}
	return slug
}

// BranchName returns the branch for one recommendation of a project.
func BranchName(projectName, title string) string {
	return fmt.Sprintf("%s/%s/%s", branchPrefix, Slugify(projectName), Slugify(title))
}

// SharedBranchName returns the branch all jobs of a batch commit to when they
// share one pull request.
func SharedBranchName(projectName string, batchID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/batch-%s", branchPrefix, Slugify(projectName), batchID.String()[:8])
}

// batchIDPlaceholder stands in for the batch id in planned shared branches.
const batchIDPlaceholder = "<batch-id>"

// PlannedSharedBranchName is SharedBranchName before a batch id exists.
func PlannedSharedBranchName(projectName string) string {
	return fmt.Sprintf("%s/%s/batch-%s", branchPrefix, Slugify(projectName), batchIDPlaceholder)
}

// branchNamer hands out branch names that are unique within one batch.
type branchNamer struct {
	used    map[string]bool
	counter map[string]int
}

func newBranchNamer() *branchNamer {
	return &branchNamer{used: make(map[string]bool), counter: make(map[string]int)}
}

// next returns BranchName(project, title), suffixed with -2, -3, ... when the
// name was already handed out.
func (n *branchNamer) next(projectName, title string) string {
	base := BranchName(projectName, title)
	for i := n.counter[base]; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s-%d", base, i+1)
		}
		if !n.used[name] {
			n.used[name] = true
			n.counter[base] = i + 1
			return name
		}
	}
}
