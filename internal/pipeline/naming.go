package pipeline

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/autopr/internal/repohost"
	"github.com/fyrsmithlabs/autopr/internal/sanitize"
	"github.com/fyrsmithlabs/autopr/internal/tracker"
	"github.com/fyrsmithlabs/autopr/internal/validate"
)

// BranchNameFor derives the work branch for a ticket key. The derivation
// is pure: the same key always yields the same branch, so re-runs land on
// the branch the first run created.
func BranchNameFor(key string) string {
	slug := sanitize.Slug(key)
	if slug == "" {
		slug = "ticket-branch"
	}
	return "feature/" + slug
}

// CommitMessage renders the commit message for a ticket's generated change.
func CommitMessage(t *tracker.Ticket) string {
	return fmt.Sprintf("%s: %s\n\nGenerated code to fulfill acceptance criteria.", t.Key, t.Summary)
}

// pullRequestSpec assembles the PR from the ticket and the verdict. The
// base branch is left empty so the sink targets its configured default.
func pullRequestSpec(t *tracker.Ticket, branch string, verdict validate.Verdict) repohost.PullRequestSpec {
	var b strings.Builder
	b.WriteString("## Ticket\n\n")
	fmt.Fprintf(&b, "[%s]", t.Key)
	if t.URL != "" {
		fmt.Fprintf(&b, "(%s)", t.URL)
	}
	fmt.Fprintf(&b, " %s\n", t.Summary)
	if t.Description != "" {
		b.WriteString("\n## Description\n\n")
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	if len(t.AcceptanceCriteria) > 0 {
		b.WriteString("\n## Acceptance Criteria\n\n")
		for _, c := range t.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	b.WriteString("\n## Validation\n\n")
	b.WriteString(verdict.Summary())
	b.WriteString("\n")

	return repohost.PullRequestSpec{
		Title: fmt.Sprintf("%s: %s", t.Key, t.Summary),
		Body:  b.String(),
		Head:  branch,
	}
}
