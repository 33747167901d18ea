package tracker

import (
	"regexp"
	"strings"
)

// ExtractAcceptanceCriteria pulls the acceptance-criteria block out of a
// ticket description. A line mentioning "acceptance" or "criteria" opens
// the block; subsequent non-blank lines belong to it; the first blank line
// after content closes it. When no block is found the whole description is
// the criteria.
func ExtractAcceptanceCriteria(description string) []string {
	if strings.TrimSpace(description) == "" {
		return nil
	}

	var criteria []string
	if strings.Contains(description, "Acceptance Criteria") || strings.Contains(description, "Acceptance") {
		inCriteria := false
		for _, line := range strings.Split(description, "\n") {
			lower := strings.ToLower(line)
			if strings.Contains(lower, "acceptance") || strings.Contains(lower, "criteria") {
				inCriteria = true
				continue
			}
			trimmed := strings.TrimSpace(line)
			switch {
			case inCriteria && trimmed != "":
				criteria = append(criteria, trimmed)
			case inCriteria && trimmed == "" && len(criteria) > 0:
				return criteria
			}
		}
	}

	if len(criteria) > 0 {
		return criteria
	}
	return []string{strings.TrimSpace(description)}
}

var repoPattern = regexp.MustCompile(`github\.com[/:]([\w-]+)/([\w-]+)`)

// LinkedRepository extracts the first owner/name repository reference from
// a ticket description. Returns empty strings when none is present.
func LinkedRepository(description string) (owner, name string) {
	m := repoPattern.FindStringSubmatch(description)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}
