package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/ai/mock"
	"github.com/poiesic/kbot/core"
	"github.com/poiesic/kbot/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	r   *retrieval.Retrieval
	err error
}

func (s *stubRetriever) Retrieve(ctx context.Context, botKey, question string) (*retrieval.Retrieval, error) {
	return s.r, s.err
}

func matched(texts ...string) *stubRetriever {
	r := &retrieval.Retrieval{Outcome: retrieval.OutcomeMatched}
	for i, text := range texts {
		r.Matches = append(r.Matches, core.Match{ChunkID: core.ChunkID(i), Text: text})
	}
	return &stubRetriever{r: r}
}

func TestNewResponder_Validation(t *testing.T) {
	_, err := NewResponder(nil, mock.NewMockGenerator(""))
	assert.ErrorIs(t, err, ErrEngineRequired)

	_, err = NewResponder(matched(), nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t,
		"Context: The sky is blue.\n\nQuestion: What color is the sky?\n\nAnswer based on the context.",
		BuildPrompt("The sky is blue.", "What color is the sky?"))
}

func TestReply(t *testing.T) {
	generator := mock.NewMockGenerator("Blue.")
	responder, err := NewResponder(matched("The sky is blue.", "Grass is green."), generator)
	require.NoError(t, err)

	reply, err := responder.Reply(context.Background(), "bot", "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "Blue.", reply.Text)
	assert.Equal(t, retrieval.OutcomeMatched, reply.Outcome)
	assert.False(t, reply.RateLimited)

	require.Len(t, generator.Prompts(), 1)
	assert.Equal(t,
		BuildPrompt("The sky is blue.\nGrass is green.", "What color is the sky?"),
		generator.Prompts()[0])
}

func TestReply_AbsentNamespaceUsesSentinel(t *testing.T) {
	generator := mock.NewMockGenerator("I don't know.")
	responder, err := NewResponder(&stubRetriever{r: &retrieval.Retrieval{Outcome: retrieval.OutcomeNamespaceAbsent}}, generator)
	require.NoError(t, err)

	reply, err := responder.Reply(context.Background(), "ghost", "Hi?")
	require.NoError(t, err)
	assert.Equal(t, retrieval.OutcomeNamespaceAbsent, reply.Outcome)
	assert.Contains(t, generator.Prompts()[0], retrieval.NoBackgroundMaterial)
}

func TestReply_RateLimited(t *testing.T) {
	generator := mock.NewMockGenerator("")
	generator.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", fmt.Errorf("%w: status 429", ai.ErrRateLimited)
	}
	responder, err := NewResponder(matched("text"), generator)
	require.NoError(t, err)

	reply, err := responder.Reply(context.Background(), "bot", "q")
	require.NoError(t, err)
	assert.True(t, reply.RateLimited)
	assert.Equal(t, TooManyRequestsMessage, reply.Text)
}

func TestReply_RateLimitedDuringRetrieval(t *testing.T) {
	retriever := &stubRetriever{err: fmt.Errorf("%w: %w", core.ErrEmbedding, ai.ErrRateLimited)}
	responder, err := NewResponder(retriever, mock.NewMockGenerator("unused"))
	require.NoError(t, err)

	reply, err := responder.Reply(context.Background(), "bot", "q")
	require.NoError(t, err)
	assert.True(t, reply.RateLimited)
	assert.Equal(t, TooManyRequestsMessage, reply.Text)
	assert.Equal(t, retrieval.OutcomeUnknown, reply.Outcome)
	assert.NotEqual(t, "matched", reply.Outcome.String())
}

func TestReply_EmptyGeneration(t *testing.T) {
	responder, err := NewResponder(matched("text"), mock.NewMockGenerator("  \n"))
	require.NoError(t, err)

	reply, err := responder.Reply(context.Background(), "bot", "q")
	require.NoError(t, err)
	assert.Equal(t, ErrorGeneratingMessage, reply.Text)
}

func TestReply_Errors(t *testing.T) {
	boom := errors.New("boom")

	responder, err := NewResponder(&stubRetriever{err: boom}, mock.NewMockGenerator("x"))
	require.NoError(t, err)
	_, err = responder.Reply(context.Background(), "bot", "q")
	assert.ErrorIs(t, err, boom)

	generator := mock.NewMockGenerator("")
	generator.GenerateFunc = func(ctx context.Context, prompt string) (string, error) { return "", boom }
	responder, err = NewResponder(matched("text"), generator)
	require.NoError(t, err)
	_, err = responder.Reply(context.Background(), "bot", "q")
	assert.ErrorIs(t, err, boom)
}
