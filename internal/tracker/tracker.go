// Package tracker fetches tickets from the issue tracker. It exposes one
// capability, FetchTicket, served by a direct Jira REST backend or a tool
// invocation backend, combined under the per-call fallback policy.
package tracker

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
	"github.com/fyrsmithlabs/autopr/internal/toolcall"
)

// Ticket is one work item fetched from the issue tracker. Immutable once
// fetched.
type Ticket struct {
	Key                string
	Summary            string
	Description        string
	AcceptanceCriteria []string
	Status             string
	Type               string
	Reporter           string
	Assignee           string
	Labels             []string
	URL                string
}

// CriteriaText returns the acceptance criteria as one block of text,
// falling back to the description when no criteria were extracted.
func (t *Ticket) CriteriaText() string {
	if len(t.AcceptanceCriteria) > 0 {
		return strings.Join(t.AcceptanceCriteria, "\n")
	}
	return t.Description
}

// Source is the ticket-source capability contract.
type Source interface {
	FetchTicket(ctx context.Context, key string) (*Ticket, error)
}

// Dependencies holds the collaborators a Client needs.
type Dependencies struct {
	// Invoker serves the tool backend. May be nil when no tool servers are
	// configured; the client then degrades to the API backend.
	Invoker  toolcall.Invoker
	Registry *toolcall.Registry
	Logger   *zap.Logger
}

// Client serves FetchTicket under the configured transport mode.
type Client struct {
	mode   integration.Mode
	api    *apiSource
	tool   *toolSource
	logger *zap.Logger
}

var _ Source = (*Client)(nil)

// NewClient builds the tracker client. The API backend is constructed only
// when credentials are present; the tool backend only when an invoker is
// supplied. At least one backend must be available.
func NewClient(cfg *config.TrackerConfig, deps Dependencies) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mode, err := integration.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	c := &Client{
		mode:   mode,
		logger: logger.Named("tracker"),
	}

	if cfg.HasAPICredentials() {
		api, err := newAPISource(cfg)
		if err != nil {
			return nil, err
		}
		c.api = api
	}
	if deps.Invoker != nil {
		c.tool = &toolSource{invoker: deps.Invoker, registry: deps.Registry}
	}

	if c.api == nil && c.tool == nil {
		return nil, errors.New("tracker has no usable backend: configure api credentials or a tool server")
	}
	if mode == integration.ModeAPI && c.api == nil {
		return nil, errors.New("tracker api mode requires api credentials")
	}

	return c, nil
}

// FetchTicket retrieves one ticket by key.
func (c *Client) FetchTicket(ctx context.Context, key string) (*Ticket, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("ticket key is required")
	}

	var tool, api integration.Backend[*Ticket]
	if c.tool != nil {
		tool = func(ctx context.Context) (*Ticket, error) { return c.tool.fetch(ctx, key) }
	}
	if c.api != nil {
		api = func(ctx context.Context) (*Ticket, error) { return c.api.fetch(ctx, key) }
	}

	ticket, err := integration.Call(ctx, c.mode, config.CapabilityFetchTicket, tool, api)
	if err != nil {
		return nil, err
	}

	c.logger.Info("ticket fetched",
		zap.String("key", ticket.Key),
		zap.String("status", ticket.Status),
		zap.Int("criteria_lines", len(ticket.AcceptanceCriteria)))
	return ticket, nil
}
