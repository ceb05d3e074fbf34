package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/chunking"
	"github.com/poiesic/kbot/core"
	"github.com/poiesic/kbot/extract"
	"github.com/poiesic/kbot/storage"
)

const (
	// DefaultTopK is the number of chunks returned by Retrieve.
	DefaultTopK = 3

	// DefaultEmbedBatchSize is the number of chunks sent to the embedder per call.
	DefaultEmbedBatchSize = 32

	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// Engine ingests bot knowledge and retrieves context for questions.
// It is safe for concurrent use.
type Engine struct {
	store          storage.CollectionStore
	embedder       ai.Embedder
	extractor      *extract.Extractor
	pool           *ants.Pool
	chunkSize      int
	topK           int
	embedBatchSize int
	maxAttempts    int
	baseDelay      time.Duration
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithPoolSize sets the worker pool size for extraction and embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithChunkSize sets the chunk length in characters.
// Default is chunking.DefaultSize.
func WithChunkSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be positive, got %d", size)
		}
		e.chunkSize = size
		return nil
	}
}

// WithTopK sets how many chunks Retrieve returns.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(e *Engine) error {
		if k < 1 {
			return fmt.Errorf("top k must be positive, got %d", k)
		}
		e.topK = k
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per call.
// Default is DefaultEmbedBatchSize.
func WithEmbedBatchSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			return fmt.Errorf("embed batch size must be positive, got %d", size)
		}
		e.embedBatchSize = size
		return nil
	}
}

// WithRetry sets the retry policy for embedding calls.
// Default is 3 attempts starting at 500ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(e *Engine) error {
		if maxAttempts < 1 {
			return ai.ErrInvalidMaxAttempts
		}
		e.maxAttempts = maxAttempts
		e.baseDelay = baseDelay
		return nil
	}
}

// WithExtractor sets the document extractor.
// Default is extract.NewExtractor with the engine's logger.
func WithExtractor(extractor *extract.Extractor) Option {
	return func(e *Engine) error {
		e.extractor = extractor
		return nil
	}
}

// NewEngine creates a retrieval engine over store using provider's embedder.
// The provider's vector length must match the store's.
func NewEngine(store storage.CollectionStore, provider ai.AIProvider, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if provider.Dimensions() != store.Dimension() {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, store holds %d",
			core.ErrDimensionMismatch, provider.Dimensions(), store.Dimension())
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:          store,
		embedder:       provider.Embedder(),
		pool:           pool,
		chunkSize:      chunking.DefaultSize,
		topK:           DefaultTopK,
		embedBatchSize: DefaultEmbedBatchSize,
		maxAttempts:    defaultMaxAttempts,
		baseDelay:      defaultBaseDelay,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(e); optErr != nil {
			e.Release()
			return nil, optErr
		}
	}

	if e.extractor == nil {
		e.extractor = extract.NewExtractor(extract.WithLogger(e.logger))
	}
	e.logger = e.logger.With("component", "retrieval-engine")
	return e, nil
}

// Release releases the worker pool. The engine should not be used afterwards.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// runTasks runs fn(0..n-1) on the pool and waits for all of them.
// Submission blocks while the pool is saturated. The first error by index wins.
func (e *Engine) runTasks(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	errs := make([]error, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			break
		}
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			errs[i] = fn(ctx, i)
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, ants.ErrPoolClosed) {
				err = ErrEngineReleased
			}
			errs[i] = err
			break
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// embed embeds texts in batches on the pool and returns unit-length vectors in input order.
func (e *Engine) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	batches := (len(texts) + e.embedBatchSize - 1) / e.embedBatchSize

	err := e.runTasks(ctx, batches, func(ctx context.Context, b int) error {
		start := b * e.embedBatchSize
		end := min(start+e.embedBatchSize, len(texts))

		var batch [][]float32
		err := ai.RetryWithBackoff(ctx, func() error {
			var err error
			batch, err = e.embedder.EmbedTexts(ctx, texts[start:end])
			return err
		}, e.maxAttempts, e.baseDelay)
		if err != nil {
			return embeddingError(err)
		}
		if len(batch) != end-start {
			return fmt.Errorf("%w: got %d vectors for %d texts", core.ErrEmbedding, len(batch), end-start)
		}

		for i, vector := range batch {
			if len(vector) != e.store.Dimension() {
				return fmt.Errorf("%w: embedder returned %d dimensions, store holds %d",
					core.ErrDimensionMismatch, len(vector), e.store.Dimension())
			}
			vectors[start+i] = core.NormalizeVector(vector)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// embeddingError makes sure backend failures satisfy errors.Is(err, core.ErrEmbedding).
func embeddingError(err error) error {
	if errors.Is(err, core.ErrEmbedding) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrEmbedding, err)
}
