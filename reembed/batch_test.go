package reembed

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/poiesic/kbot/ai/mock"
	"github.com/poiesic/kbot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks(texts ...string) []*core.Chunk {
	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{ID: core.ChunkID(i), Text: text, Vector: []float32{1, 0, 0, 0}}
	}
	return chunks
}

func TestBatchProcessor_Process(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimensions(4)
	processor := NewBatchProcessor(embedder, 4, 2, 3, time.Millisecond)
	chunks := testChunks("a", "b", "c", "d", "e")

	var batches []int
	err := processor.Process(context.Background(), chunks, func(n int) { batches = append(batches, n) })
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, batches)
	assert.Equal(t, 3, embedder.CallCount())
	for _, chunk := range chunks {
		assert.InDeltaSlice(t, mock.DeterministicVector(chunk.Text, 4), chunk.Vector, 1e-6)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimensions(4)
	processor := NewBatchProcessor(embedder, 4, 10, 3, time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), nil, nil))
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_Retry(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimensions(4)
	attempts := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("temporary error")
		}
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{3, 4, 0, 0}
		}
		return out, nil
	}

	processor := NewBatchProcessor(embedder, 4, 10, 3, time.Millisecond)
	chunks := testChunks("a")
	require.NoError(t, processor.Process(context.Background(), chunks, nil))

	assert.Equal(t, 3, attempts)
	assert.InDeltaSlice(t, []float32{0.6, 0.8, 0, 0}, chunks[0].Vector, 1e-6)
}

func TestBatchProcessor_EmbeddingError(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimensions(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("persistent error")
	}

	processor := NewBatchProcessor(embedder, 4, 10, 2, time.Millisecond)
	err := processor.Process(context.Background(), testChunks("a"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestBatchProcessor_DimensionMismatch(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimensions(8)
	processor := NewBatchProcessor(embedder, 4, 10, 1, time.Millisecond)

	err := processor.Process(context.Background(), testChunks("a"), nil)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestBatchProcessor_ContextCancellation(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimensions(4)
	processor := NewBatchProcessor(embedder, 4, 1, 3, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := processor.Process(ctx, testChunks("a", "b"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_VectorNormalization(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimensions(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{2, 2, 2, 2}}, nil
	}
	processor := NewBatchProcessor(embedder, 4, 10, 1, time.Millisecond)
	chunks := testChunks("a")

	require.NoError(t, processor.Process(context.Background(), chunks, nil))

	var magnitude float64
	for _, v := range chunks[0].Vector {
		magnitude += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6)
}
