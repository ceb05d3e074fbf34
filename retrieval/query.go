package retrieval

import (
	"context"
	"strings"

	"github.com/poiesic/kbot/core"
)

// Context returned when no usable chunks exist.
const (
	// NoBackgroundMaterial means the bot has never been given any knowledge.
	NoBackgroundMaterial = "No background material is configured for this bot."
	// NoRelevantMaterial means the bot's knowledge holds nothing for the question.
	NoRelevantMaterial = "No context found."
)

// Outcome tags the result of a retrieval.
type Outcome int

const (
	// OutcomeUnknown means no retrieval completed, for example when it was rate limited.
	OutcomeUnknown Outcome = iota
	// OutcomeMatched means at least one chunk was found.
	OutcomeMatched
	// OutcomeNamespaceAbsent means the bot was never ingested.
	OutcomeNamespaceAbsent
	// OutcomeNoMatches means the namespace exists but returned no chunks.
	OutcomeNoMatches
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNamespaceAbsent:
		return "namespace-absent"
	case OutcomeNoMatches:
		return "no-matches"
	default:
		return "unknown"
	}
}

// Retrieval is the result of a question against a bot's namespace.
type Retrieval struct {
	Outcome Outcome
	// Matches are ordered nearest first. Empty unless Outcome is OutcomeMatched.
	Matches []core.Match
}

// Context renders the retrieval as prompt context: matched chunk texts in rank
// order separated by newlines, or a sentinel when nothing matched.
func (r *Retrieval) Context() string {
	if r.Outcome == OutcomeNamespaceAbsent {
		return NoBackgroundMaterial
	}
	if r.Outcome != OutcomeMatched {
		return NoRelevantMaterial
	}
	texts := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		texts[i] = m.Text
	}
	return strings.Join(texts, "\n")
}

// Retrieve returns the chunks of botKey's namespace nearest to question.
// Namespace absence and empty results are outcomes, not errors.
func (e *Engine) Retrieve(ctx context.Context, botKey, question string) (*Retrieval, error) {
	return e.RetrieveWithMonitor(ctx, botKey, question, nil)
}

// RetrieveWithMonitor is Retrieve with a monitor receiving callbacks at each stage.
func (e *Engine) RetrieveWithMonitor(ctx context.Context, botKey, question string, monitor Monitor) (*Retrieval, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(botKey, question)

	r, err := e.retrieve(ctx, botKey, question, monitor)
	if err != nil {
		return nil, err
	}
	monitor.Finish(r)
	return r, nil
}

func (e *Engine) retrieve(ctx context.Context, botKey, question string, monitor Monitor) (*Retrieval, error) {
	if err := core.ValidateNamespaceKey(botKey); err != nil {
		return nil, err
	}
	logger := e.logger.With("bot", botKey)

	// Skip the embedding call for bots without knowledge.
	exists, err := e.store.Exists(ctx, botKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Debug("namespace absent")
		return &Retrieval{Outcome: OutcomeNamespaceAbsent}, nil
	}

	vectors, err := e.embed(ctx, []string{question})
	if err != nil {
		logger.Error("failed to embed question", "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(vectors[0])

	result, err := e.store.Query(ctx, botKey, vectors[0], e.topK)
	if err != nil {
		logger.Error("failed to query namespace", "err", err)
		return nil, err
	}
	monitor.AfterQuery(result)

	switch {
	case !result.Found:
		return &Retrieval{Outcome: OutcomeNamespaceAbsent}, nil
	case len(result.Matches) == 0:
		return &Retrieval{Outcome: OutcomeNoMatches}, nil
	}
	logger.Debug("retrieved context", "matches", len(result.Matches), "nearest", result.Matches[0].Distance)
	return &Retrieval{Outcome: OutcomeMatched, Matches: result.Matches}, nil
}

// RetrieveContext returns the prompt context for question: the nearest chunk
// texts joined by newlines, or NoBackgroundMaterial / NoRelevantMaterial.
func (e *Engine) RetrieveContext(ctx context.Context, botKey, question string) (string, error) {
	r, err := e.Retrieve(ctx, botKey, question)
	if err != nil {
		return "", err
	}
	return r.Context(), nil
}
