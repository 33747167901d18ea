package notify

import (
	"fmt"
	"html"
	"strings"
)

func subject(ev Event) string {
	return fmt.Sprintf("PR Created: %s - %s", ev.TicketKey, ev.Summary)
}

func plainBody(ev Event) string {
	var b strings.Builder
	b.WriteString("Automated code generation complete.\n\n")
	fmt.Fprintf(&b, "Ticket: %s\n", ev.TicketKey)
	fmt.Fprintf(&b, "Summary: %s\n\n", ev.Summary)
	if ev.PullRequest != "" {
		fmt.Fprintf(&b, "Pull Request: %s\n", ev.PullRequest)
	}
	fmt.Fprintf(&b, "Branch: %s\n", ev.Branch)
	if len(ev.Files) > 0 {
		fmt.Fprintf(&b, "\nFiles generated (%d):\n", len(ev.Files))
		for _, f := range ev.Files {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}
	if ev.Validation != "" {
		fmt.Fprintf(&b, "\nValidation: %s\n", ev.Validation)
	}
	if ev.TicketURL != "" {
		fmt.Fprintf(&b, "\nTicket link: %s\n", ev.TicketURL)
	}
	b.WriteString("\nGenerated by autopr.\n")
	return b.String()
}

func htmlBody(ev Event) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.box { background: #f9f9f9; padding: 12px; margin: 8px 0; border-left: 4px solid #4CAF50; }
.files { font-family: monospace; }
.footer { color: #666; font-size: 12px; }
</style>
</head>
<body>
<h2>Automated code generation complete</h2>
`)
	fmt.Fprintf(&b, `<div class="box"><strong>Ticket:</strong> %s<br><strong>Summary:</strong> %s</div>`+"\n",
		html.EscapeString(ev.TicketKey), html.EscapeString(ev.Summary))
	if ev.PullRequest != "" {
		fmt.Fprintf(&b, `<div class="box"><strong>Pull Request:</strong> <a href="%s">%s</a><br><strong>Branch:</strong> %s</div>`+"\n",
			html.EscapeString(ev.PullRequest), html.EscapeString(ev.PullRequest), html.EscapeString(ev.Branch))
	}
	if len(ev.Files) > 0 {
		fmt.Fprintf(&b, `<div class="box"><strong>Files generated (%d):</strong><br>`, len(ev.Files))
		for _, f := range ev.Files {
			fmt.Fprintf(&b, `<span class="files">%s</span><br>`, html.EscapeString(f))
		}
		b.WriteString("</div>\n")
	}
	if ev.Validation != "" {
		fmt.Fprintf(&b, `<div class="box"><strong>Validation:</strong> %s</div>`+"\n",
			html.EscapeString(ev.Validation))
	}
	if ev.TicketURL != "" {
		fmt.Fprintf(&b, `<div class="box"><strong>Ticket:</strong> <a href="%s">%s</a></div>`+"\n",
			html.EscapeString(ev.TicketURL), html.EscapeString(ev.TicketURL))
	}
	b.WriteString(`<p class="footer">Generated by autopr.</p>
</body>
</html>
`)
	return b.String()
}
