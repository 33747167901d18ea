// Package report renders finished run reports for terminals and
// machine consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/fyrsmithlabs/autopr/internal/pipeline"
)

// Render writes the human-readable report: a header block, the step
// table, and the outcome line.
func Render(w io.Writer, r *pipeline.RunReport) {
	fmt.Fprintf(w, "Ticket:  %s\n", r.TicketKey)
	fmt.Fprintf(w, "Run:     %s\n", r.RunID)
	if r.Branch != "" {
		fmt.Fprintf(w, "Branch:  %s\n", r.Branch)
	}
	if r.PullRequest != "" {
		fmt.Fprintf(w, "PR:      %s\n", r.PullRequest)
	}
	fmt.Fprintln(w)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Step", "Status", "Duration", "Detail"})
	for i, s := range r.Steps {
		tw.AppendRow(table.Row{i + 1, s.Name, string(s.Status), formatDuration(s.Duration), s.Message})
	}
	tw.Render()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Outcome: %s%s%s\n", r.Outcome, messageSuffix(r), elapsedSuffix(r))
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *pipeline.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func messageSuffix(r *pipeline.RunReport) string {
	if r.Message == "" {
		return ""
	}
	return " (" + r.Message + ")"
}

func elapsedSuffix(r *pipeline.RunReport) string {
	if r.CompletedAt.IsZero() {
		return ""
	}
	return fmt.Sprintf(" in %s", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
