package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/fyrsmithlabs/autopr/internal/config"
)

func mailerConfig() *config.NotifyConfig {
	return &config.NotifyConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		From:     "autopr@example.com",
		To:       []string{"team@example.com", "lead@example.com"},
	}
}

func sampleEvent() Event {
	return Event{
		TicketKey:   "PROJ-7",
		Summary:     "Add health endpoint",
		TicketURL:   "https://jira.example.com/browse/PROJ-7",
		Branch:      "feature/proj-7",
		PullRequest: "https://github.com/acme/widget/pull/12",
		Files:       []string{"src/health.py", "tests/test_health.py"},
		Validation:  "python build and tests passed",
	}
}

func TestNewMailer_RequiresConfig(t *testing.T) {
	_, err := NewMailer(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")
}

func TestNewMailer_RequiresHostAndAddresses(t *testing.T) {
	_, err := NewMailer(&config.NotifyConfig{From: "a@b.c", To: []string{"d@e.f"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp host")

	_, err = NewMailer(&config.NotifyConfig{SMTPHost: "smtp.example.com"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipients")
}

func TestMailer_SendComposesMultipartMessage(t *testing.T) {
	mailer, err := NewMailer(mailerConfig(), nil)
	require.NoError(t, err)

	var captured *gomail.Message
	mailer.send = func(m ...*gomail.Message) error {
		require.Len(t, m, 1)
		captured = m[0]
		return nil
	}

	require.NoError(t, mailer.Send(context.Background(), sampleEvent()))
	require.NotNil(t, captured)

	assert.Equal(t, []string{"PR Created: PROJ-7 - Add health endpoint"}, captured.GetHeader("Subject"))
	assert.Equal(t, []string{"autopr@example.com"}, captured.GetHeader("From"))
	assert.Len(t, captured.GetHeader("To"), 2)

	var buf bytes.Buffer
	_, err = captured.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "PROJ-7")
}

func TestMailer_PlainBodyListsRunDetails(t *testing.T) {
	body := plainBody(sampleEvent())

	assert.Contains(t, body, "Ticket: PROJ-7")
	assert.Contains(t, body, "Pull Request: https://github.com/acme/widget/pull/12")
	assert.Contains(t, body, "Branch: feature/proj-7")
	assert.Contains(t, body, "Files generated (2):")
	assert.Contains(t, body, "  - src/health.py")
	assert.Contains(t, body, "Validation: python build and tests passed")
	assert.Contains(t, body, "Ticket link: https://jira.example.com/browse/PROJ-7")
}

func TestMailer_HTMLBodyEscapesContent(t *testing.T) {
	ev := sampleEvent()
	ev.Summary = "Fix <script> & tags"

	body := htmlBody(ev)

	assert.Contains(t, body, "Fix &lt;script&gt; &amp; tags")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, `<a href="https://github.com/acme/widget/pull/12">`)
}

func TestMailer_SendErrorIsWrapped(t *testing.T) {
	mailer, err := NewMailer(mailerConfig(), nil)
	require.NoError(t, err)
	mailer.send = func(m ...*gomail.Message) error {
		return errors.New("connection refused")
	}

	err = mailer.Send(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending notification")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMailer_SendHonorsCanceledContext(t *testing.T) {
	mailer, err := NewMailer(mailerConfig(), nil)
	require.NoError(t, err)
	called := false
	mailer.send = func(m ...*gomail.Message) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = mailer.Send(ctx, sampleEvent())

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
