package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
)

// apiSource fetches tickets from the Jira REST API with basic auth
// (account email + API token).
type apiSource struct {
	client  *jira.Client
	baseURL string
	timeout time.Duration
}

func newAPISource(cfg *config.TrackerConfig) (*apiSource, error) {
	tp := jira.BasicAuthTransport{
		Username: cfg.Email,
		Password: cfg.APIToken.Value(),
	}
	client, err := jira.NewClient(tp.Client(), cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating jira client: %w", err)
	}

	return &apiSource{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout.Duration(),
	}, nil
}

func (s *apiSource) fetch(ctx context.Context, key string) (*Ticket, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	issue, resp, err := s.client.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &integration.Error{
				Kind:    integration.KindNotFound,
				Op:      config.CapabilityFetchTicket,
				Backend: "api",
				Err:     fmt.Errorf("ticket %s does not exist", key),
			}
		}
		e := &integration.Error{
			Kind:    integration.KindIntegrationError,
			Op:      config.CapabilityFetchTicket,
			Backend: "api",
			Err:     err,
		}
		if resp != nil {
			e.Detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, e
	}

	return s.ticketFromIssue(issue), nil
}

func (s *apiSource) ticketFromIssue(issue *jira.Issue) *Ticket {
	t := &Ticket{
		Key:         issue.Key,
		URL:         fmt.Sprintf("%s/browse/%s", s.baseURL, issue.Key),
		Description: issue.Fields.Description,
		Summary:     issue.Fields.Summary,
		Labels:      issue.Fields.Labels,
		Type:        issue.Fields.Type.Name,
	}
	if issue.Fields.Status != nil {
		t.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Reporter != nil {
		t.Reporter = issue.Fields.Reporter.DisplayName
	}
	if issue.Fields.Assignee != nil {
		t.Assignee = issue.Fields.Assignee.DisplayName
	}
	t.AcceptanceCriteria = ExtractAcceptanceCriteria(t.Description)
	return t
}
