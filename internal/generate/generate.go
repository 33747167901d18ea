// Package generate turns a ticket into a proposed file set. The pipeline
// sees one opaque boundary, Generator; the shipped implementation prompts
// an OpenAI-compatible chat model through langchaingo and parses the
// response into files. Every failure surfaces as GenerationFailed.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
	"github.com/fyrsmithlabs/autopr/internal/repohost"
	"github.com/fyrsmithlabs/autopr/internal/tracker"
)

// FileSet maps repo-relative paths to full file contents.
type FileSet map[string]string

// Generator is the change-generation boundary consumed by the pipeline.
type Generator interface {
	Generate(ctx context.Context, ticket *tracker.Ticket, snapshot repohost.RepoSnapshot) (FileSet, error)
}

// LLMGenerator generates file sets with a chat model.
type LLMGenerator struct {
	model       llms.Model
	modelName   string
	temperature float64
	maxTokens   int
	limiter     *rate.Limiter
	timeout     config.Duration
	logger      *zap.Logger
}

var _ Generator = (*LLMGenerator)(nil)

// NewLLMGenerator builds the langchaingo-backed generator. The API key is
// required; base URL, model, temperature, and the request rate limit come
// from config.
func NewLLMGenerator(cfg *config.GeneratorConfig, logger *zap.Logger) (*LLMGenerator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if !cfg.APIKey.IsSet() {
		return nil, errors.New("generator api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 20
	}

	return &LLMGenerator{
		model:       llm,
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		timeout:     cfg.Timeout,
		logger:      logger.Named("generate"),
	}, nil
}

// Generate prompts the model with the ticket and repository context and
// parses the response into a file set.
func (g *LLMGenerator) Generate(ctx context.Context, ticket *tracker.Ticket, snapshot repohost.RepoSnapshot) (FileSet, error) {
	if ticket == nil {
		return nil, errors.New("ticket is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, generationErr(fmt.Errorf("rate limit wait: %w", err))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout.Duration())
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userPrompt(ticket, snapshot)),
	}

	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, err
		}
		return nil, generationErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, generationErr(errors.New("model returned no choices"))
	}

	content := resp.Choices[0].Content
	if strings.TrimSpace(content) == "" {
		return nil, generationErr(errors.New("model returned an empty response"))
	}

	files := ParseFileSet(content)
	g.logger.Info("files generated",
		zap.String("ticket", ticket.Key),
		zap.String("model", g.modelName),
		zap.Int("files", len(files)))
	return files, nil
}

func generationErr(err error) error {
	return integration.NewError(integration.KindGenerationFailed, "generate.files", "llm", err)
}
