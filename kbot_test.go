package kbot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/ai/mock"
	"github.com/poiesic/kbot/chat"
	"github.com/poiesic/kbot/extract"
	"github.com/poiesic/kbot/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKnowledgeBase(t *testing.T, opts ...Option) (*KnowledgeBase, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider().(*mock.MockProvider)
	kb, err := New(append([]Option{WithInMemory(), WithProvider(provider)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { kb.Close() })
	return kb, provider
}

func TestNew(t *testing.T) {
	t.Run("data directory required", func(t *testing.T) {
		kb, err := New(WithProvider(mock.NewMockProvider()))
		assert.ErrorIs(t, err, ErrDataDirRequired)
		assert.Nil(t, kb)
	})

	t.Run("invalid ai config", func(t *testing.T) {
		kb, err := New(WithInMemory(), WithAIConfig(&ai.Config{}))
		assert.Error(t, err)
		assert.Nil(t, kb)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		kb, err := New(WithDataDir(tmpFile), WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, kb)
	})

	t.Run("engine options are applied", func(t *testing.T) {
		_, err := New(WithInMemory(), WithProvider(mock.NewMockProvider()),
			WithEngineOptions(retrieval.WithTopK(0)))
		assert.Error(t, err)
	})
}

func TestKnowledgeBase_IngestAndRetrieve(t *testing.T) {
	kb, _ := newTestKnowledgeBase(t)
	ctx := context.Background()

	result, err := kb.Ingest(ctx, "sky-bot", "The sky is blue.")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Chunks)
	assert.NotEmpty(t, result.IngestID)

	knowledge, err := kb.RetrieveContext(ctx, "sky-bot", "The sky is blue.")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", knowledge)

	found, err := kb.Retrieve(ctx, "sky-bot", "What colour is the sky?")
	require.NoError(t, err)
	assert.Equal(t, retrieval.OutcomeMatched, found.Outcome)

	namespaces, err := kb.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sky-bot"}, namespaces)
}

func TestKnowledgeBase_AbsentBot(t *testing.T) {
	kb, _ := newTestKnowledgeBase(t)
	ctx := context.Background()

	knowledge, err := kb.RetrieveContext(ctx, "nobody", "anything?")
	require.NoError(t, err)
	assert.Equal(t, retrieval.NoBackgroundMaterial, knowledge)

	namespaces, err := kb.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, namespaces, "querying must not create a namespace")
}

func TestKnowledgeBase_IngestDocuments(t *testing.T) {
	kb, _ := newTestKnowledgeBase(t)
	ctx := context.Background()

	result, err := kb.Ingest(ctx, "doc-bot", "",
		extract.Document{Name: "notes.txt", ContentType: extract.ContentTypePlain, Data: []byte("Opening hours are 9 to 5.")},
		extract.Document{Name: "scan.bin", ContentType: "application/octet-stream", Data: []byte{0x00}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Chunks)
	assert.Len(t, result.Warnings, 1)
}

func TestKnowledgeBase_Reply(t *testing.T) {
	kb, provider := newTestKnowledgeBase(t)
	ctx := context.Background()
	provider.GetMockGenerator().Response = "It is blue."

	_, err := kb.Ingest(ctx, "sky-bot", "The sky is blue.")
	require.NoError(t, err)

	reply, err := kb.Reply(ctx, "sky-bot", "What colour is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "It is blue.", reply.Text)
	assert.Equal(t, retrieval.OutcomeMatched, reply.Outcome)

	prompts := provider.GetMockGenerator().Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, chat.BuildPrompt("The sky is blue.", "What colour is the sky?"), prompts[0])
}

func TestKnowledgeBase_Reembed(t *testing.T) {
	kb, provider := newTestKnowledgeBase(t)
	ctx := context.Background()

	_, err := kb.Ingest(ctx, "sky-bot", "The sky is blue.")
	require.NoError(t, err)
	before := provider.GetMockEmbedder().TextCount()

	var progress bytes.Buffer
	require.NoError(t, kb.Reembed(ctx, nil, &progress))
	assert.Equal(t, before+1, provider.GetMockEmbedder().TextCount())
	assert.Contains(t, progress.String(), "Reembedding complete")

	knowledge, err := kb.RetrieveContext(ctx, "sky-bot", "The sky is blue.")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", knowledge)
}

func TestKnowledgeBase_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	kb, err := New(WithDataDir(dir), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	_, err = kb.Ingest(ctx, "sky-bot", "The sky is blue.")
	require.NoError(t, err)
	require.NoError(t, kb.Close())

	kb, err = New(WithDataDir(dir), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer kb.Close()

	knowledge, err := kb.RetrieveContext(ctx, "sky-bot", "The sky is blue.")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", knowledge)
}

func TestKnowledgeBase_Engine(t *testing.T) {
	kb, _ := newTestKnowledgeBase(t)
	assert.NotNil(t, kb.Engine())
}
