// Package chat answers user questions with a bot's retrieved knowledge.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/retrieval"
)

// User-facing replies for conditions that are not answers.
const (
	TooManyRequestsMessage = "I'm currently receiving too many requests. Please wait a moment and try again! ⏳"
	ErrorGeneratingMessage = "Error generating response."
)

var (
	// ErrEngineRequired is returned when a retrieval engine is not provided.
	ErrEngineRequired = errors.New("retrieval engine required")

	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")
)

// ContextRetriever returns prompt context for a question. *retrieval.Engine implements it.
type ContextRetriever interface {
	Retrieve(ctx context.Context, botKey, question string) (*retrieval.Retrieval, error)
}

// Reply is the answer to one question.
type Reply struct {
	Text string
	// Outcome reports what retrieval found for the question.
	Outcome retrieval.Outcome
	// RateLimited is set when Text is TooManyRequestsMessage.
	RateLimited bool
}

// Responder builds prompts from retrieved context and asks the generator to answer.
type Responder struct {
	retriever ContextRetriever
	generator ai.Generator
	logger    *slog.Logger
}

// Option configures a Responder.
type Option func(*Responder)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// NewResponder creates a responder.
func NewResponder(retriever ContextRetriever, generator ai.Generator, opts ...Option) (*Responder, error) {
	if retriever == nil {
		return nil, ErrEngineRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	r := &Responder{
		retriever: retriever,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "chat-responder")
	return r, nil
}

// BuildPrompt renders the generation prompt for a question and its context.
func BuildPrompt(knowledge, question string) string {
	return fmt.Sprintf("Context: %s\n\nQuestion: %s\n\nAnswer based on the context.", knowledge, question)
}

// Reply answers question using botKey's knowledge. Rate limiting is reported in
// the reply rather than as an error; retrieval and other generation failures are
// returned.
func (r *Responder) Reply(ctx context.Context, botKey, question string) (*Reply, error) {
	found, err := r.retriever.Retrieve(ctx, botKey, question)
	if err != nil {
		if errors.Is(err, ai.ErrRateLimited) {
			r.logger.Warn("embedding rate limited", "bot", botKey, "err", err)
			return &Reply{Text: TooManyRequestsMessage, Outcome: retrieval.OutcomeUnknown, RateLimited: true}, nil
		}
		return nil, err
	}

	answer, err := r.generator.Generate(ctx, BuildPrompt(found.Context(), question))
	if err != nil {
		if errors.Is(err, ai.ErrRateLimited) {
			r.logger.Warn("generation rate limited", "bot", botKey, "err", err)
			return &Reply{Text: TooManyRequestsMessage, Outcome: found.Outcome, RateLimited: true}, nil
		}
		r.logger.Error("failed to generate answer", "bot", botKey, "err", err)
		return nil, err
	}

	if strings.TrimSpace(answer) == "" {
		answer = ErrorGeneratingMessage
	}
	return &Reply{Text: answer, Outcome: found.Outcome}, nil
}
