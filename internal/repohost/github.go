package repohost

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
)

// githubAPI wraps the host REST client for the calls the git backend
// cannot express locally.
type githubAPI struct {
	client *github.Client
	retry  *RetryConfig
}

func newGitHubAPI(cfg *config.RepoHostConfig) (*githubAPI, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token.Value()})
	tc := oauth2.NewClient(context.Background(), ts)
	client := github.NewClient(tc)

	if cfg.APIBaseURL != "" {
		base, err := url.Parse(cfg.APIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing repo host api_base_url: %w", err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		client.BaseURL = base
	}

	return &githubAPI{client: client, retry: DefaultRetryConfig()}, nil
}

func (g *githubAPI) createPullRequest(ctx context.Context, target Target, pr PullRequestSpec, logger *zap.Logger) (string, error) {
	newPR := &github.NewPullRequest{
		Title: github.String(pr.Title),
		Body:  github.String(pr.Body),
		Head:  github.String(pr.Head),
		Base:  github.String(pr.Base),
	}

	var created *github.PullRequest
	resp, err := retryGitHub(ctx, g.retry, logger, func() (*github.Response, error) {
		var rerr error
		var r *github.Response
		created, r, rerr = g.client.PullRequests.Create(ctx, target.Owner, target.Name, newPR)
		return r, rerr
	})
	if err != nil {
		ierr := &integration.Error{
			Kind:    integration.KindIntegrationError,
			Op:      "repo.create_pr",
			Backend: "api",
			Err:     err,
		}
		if code := statusCode(resp); code != 0 {
			ierr.Detail = fmt.Sprintf("status %d", code)
		}
		return "", ierr
	}
	return created.GetHTMLURL(), nil
}
