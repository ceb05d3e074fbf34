package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/core"
)

// BatchProcessor regenerates chunk vectors in fixed-size batches.
type BatchProcessor struct {
	embedder       ai.Embedder
	dimension      int
	batchSize      int
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a processor producing vectors of length dimension.
func NewBatchProcessor(embedder ai.Embedder, dimension, batchSize, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchProcessor{
		embedder:       embedder,
		dimension:      dimension,
		batchSize:      batchSize,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process replaces the vector of every chunk in place. onBatch, if set, is called
// with the size of each completed batch. On error no further batches are processed
// and the chunks must not be stored.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk, onBatch func(n int)) error {
	for start := 0; start < len(chunks); start += bp.batchSize {
		end := min(start+bp.batchSize, len(chunks))
		if err := bp.processBatch(ctx, chunks[start:end]); err != nil {
			return err
		}
		if onBatch != nil {
			onBatch(end - start)
		}
	}
	return nil
}

func (bp *BatchProcessor) processBatch(ctx context.Context, chunks []*core.Chunk) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var embeddings [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrEmbedding, len(chunks), len(embeddings))
	}

	for i, chunk := range chunks {
		if len(embeddings[i]) != bp.dimension {
			return fmt.Errorf("%w: chunk %s got %d dimensions, expected %d",
				core.ErrDimensionMismatch, chunk.ID, len(embeddings[i]), bp.dimension)
		}
		chunk.Vector = core.NormalizeVector(embeddings[i])
	}
	return nil
}
