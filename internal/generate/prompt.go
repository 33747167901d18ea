package generate

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/autopr/internal/repohost"
	"github.com/fyrsmithlabs/autopr/internal/tracker"
)

const systemPrompt = "You are an expert software developer. Your task is to generate code that fulfills ticket requirements."

const userPromptTemplate = `Generate code for the following ticket:

Ticket Summary: %s

Description:
%s

Acceptance Criteria:
%s

Existing Repository Structure:
%s

Please generate the necessary code files to fulfill all acceptance criteria.
Return your response as a structured format where each file is clearly marked with:
FILE: <file_path>
CONTENT:
<file_content>
END_FILE

Generate all necessary files including:
- Source code files
- Test files
- Configuration files if needed
- Documentation if required

Ensure the code is:
- Well-structured and follows best practices
- Includes proper error handling
- Has appropriate comments
- Is production-ready
- Follows the existing code style if applicable`

// userPrompt renders the ticket and repository context into the generation
// request. An empty snapshot reads as "New repository" so the model does not
// invent files to match.
func userPrompt(ticket *tracker.Ticket, snapshot repohost.RepoSnapshot) string {
	structure := "New repository"
	if paths := snapshot.Paths(); len(paths) > 0 {
		structure = strings.Join(paths, "\n")
	}
	return fmt.Sprintf(userPromptTemplate,
		ticket.Summary,
		ticket.Description,
		criteriaList(ticket),
		structure,
	)
}

func criteriaList(ticket *tracker.Ticket) string {
	if len(ticket.AcceptanceCriteria) == 0 {
		return ticket.CriteriaText()
	}
	items := make([]string, len(ticket.AcceptanceCriteria))
	for i, c := range ticket.AcceptanceCriteria {
		items[i] = "- " + c
	}
	return strings.Join(items, "\n")
}
