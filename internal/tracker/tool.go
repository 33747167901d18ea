package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
	"github.com/fyrsmithlabs/autopr/internal/toolcall"
)

// toolSource fetches tickets through the bound ticket-fetch tool.
type toolSource struct {
	invoker  toolcall.Invoker
	registry *toolcall.Registry
}

func (s *toolSource) fetch(ctx context.Context, key string) (*Ticket, error) {
	binding, args, err := s.registry.Translate(config.CapabilityFetchTicket, map[string]any{"key": key})
	if err != nil {
		return nil, integration.NewError(integration.KindToolUnavailable, config.CapabilityFetchTicket, "mcp", err)
	}

	payload, err := s.invoker.InvokeTool(ctx, binding.Server, binding.Tool, args)
	if err != nil {
		return nil, err
	}

	ticket, err := parseToolTicket(payload)
	if err != nil {
		return nil, integration.NewError(integration.KindToolError, config.CapabilityFetchTicket, "mcp",
			fmt.Errorf("malformed tool payload: %w", err))
	}
	if ticket.Key == "" {
		ticket.Key = key
	}
	return ticket, nil
}

// toolTicketPayload tolerates the field spellings different tool servers
// use: key/issue_key, summary/title, string-or-object status and people
// fields, string-or-list acceptance criteria.
type toolTicketPayload struct {
	Key                string          `json:"key"`
	IssueKey           string          `json:"issue_key"`
	Summary            string          `json:"summary"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	AcceptanceCriteria json.RawMessage `json:"acceptance_criteria"`
	Status             json.RawMessage `json:"status"`
	IssueType          json.RawMessage `json:"issue_type"`
	Reporter           json.RawMessage `json:"reporter"`
	Assignee           json.RawMessage `json:"assignee"`
	Labels             []string        `json:"labels"`
	URL                string          `json:"url"`
	Self               string          `json:"self"`
}

func parseToolTicket(payload string) (*Ticket, error) {
	var raw toolTicketPayload
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}

	t := &Ticket{
		Key:         firstNonEmpty(raw.Key, raw.IssueKey),
		Summary:     firstNonEmpty(raw.Summary, raw.Title),
		Description: raw.Description,
		Status:      flexName(raw.Status),
		Type:        flexName(raw.IssueType),
		Reporter:    flexName(raw.Reporter),
		Assignee:    flexName(raw.Assignee),
		Labels:      raw.Labels,
		URL:         firstNonEmpty(raw.URL, raw.Self),
	}

	t.AcceptanceCriteria = flexCriteria(raw.AcceptanceCriteria)
	if len(t.AcceptanceCriteria) == 0 {
		t.AcceptanceCriteria = ExtractAcceptanceCriteria(t.Description)
	}
	return t, nil
}

// flexName decodes a value that may be a plain string or an object carrying
// a name or displayName field.
func flexName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.Name, obj.DisplayName)
	}
	return ""
}

// flexCriteria decodes acceptance criteria sent as a string or a list.
func flexCriteria(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return ExtractAcceptanceCriteria(s)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
