package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/kbot/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat completion APIs.
type Generator struct {
	llm    llms.Model
	logger *slog.Logger
}

func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		llm:    llm,
		logger: slog.Default().With("component", "openai-generator", "model", config.GenerationModel),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate returns the model's completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generating answer", "promptLength", len(prompt))

	answer, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return "", classify(nil, err)
	}
	return answer, nil
}

// token returns the configured API key, or a placeholder for local services
// that do not check it.
func token(config *ai.Config) string {
	if config.Token == "" {
		return "none"
	}
	return config.Token
}

// classify wraps err with ai.ErrRateLimited when the service reported a rate limit
// or exhausted quota, and with kind when set.
func classify(kind error, err error) error {
	if isRateLimited(err) {
		if kind != nil {
			return fmt.Errorf("%w: %w: %w", kind, ai.ErrRateLimited, err)
		}
		return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
	}
	if kind != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return err
}

// isRateLimited inspects the error text. langchaingo does not expose the HTTP status.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}
