// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/core"
	"github.com/poiesic/kbot/storage"
)

// maxConflictAttempts bounds how often a namespace is re-read after an ingest
// replaced it mid-run.
const maxConflictAttempts = 3

// Config controls batching, retries and progress reporting.
type Config struct {
	// BatchSize is the number of chunks embedded per call
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns the default re-embedding settings.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      32,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// snapshot is the state of a namespace that a rewrite is conditioned on.
type snapshot struct {
	collection *core.Collection
	chunks     []*core.Chunk
}

// Reembedder regenerates the vectors of every namespace in a store.
type Reembedder struct {
	store     storage.CollectionStore
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a re-embedder writing progress to progress.
func NewReembedder(store storage.CollectionStore, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:     store,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(embedder, store.Dimension(), config.BatchSize, config.MaxRetries, config.RetryDelay),
		logger:    slog.Default().With("component", "reembedder"),
	}
}

// Run re-embeds every namespace. A failing namespace stops the run; namespaces
// already processed keep their new vectors and the failing one keeps its old ones.
func (r *Reembedder) Run(ctx context.Context) error {
	namespaces, err := r.store.Namespaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list namespaces: %w", err)
	}

	snapshots := make(map[string]snapshot, len(namespaces))
	total := 0
	for _, ns := range namespaces {
		collection, chunks, err := r.store.Snapshot(ctx, ns)
		if err != nil {
			return fmt.Errorf("failed to read namespace %q: %w", ns, err)
		}
		snapshots[ns] = snapshot{collection: collection, chunks: chunks}
		total += len(chunks)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found (%d namespaces)\n", len(namespaces))
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d chunks in %d namespaces (batch size: %d)\n",
		total, len(namespaces), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	for _, ns := range namespaces {
		tracker.SetNamespace(ns)
		if err := r.reembed(ctx, ns, snapshots[ns], tracker.Increment); err != nil {
			return err
		}
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())
	return nil
}

// RunNamespace re-embeds a single namespace. An absent namespace is left absent.
func (r *Reembedder) RunNamespace(ctx context.Context, ns string) error {
	collection, chunks, err := r.store.Snapshot(ctx, ns)
	if err != nil {
		return fmt.Errorf("failed to read namespace %q: %w", ns, err)
	}
	return r.reembed(ctx, ns, snapshot{collection: collection, chunks: chunks}, nil)
}

// reembed embeds snap and rewrites ns with it unless ns was replaced since snap
// was taken. A replaced namespace is read again and re-embedded from scratch.
func (r *Reembedder) reembed(ctx context.Context, ns string, snap snapshot, onBatch func(int)) error {
	for attempt := 1; ; attempt++ {
		if snap.collection == nil {
			return nil
		}

		if err := r.processor.Process(ctx, snap.chunks, onBatch); err != nil {
			return fmt.Errorf("failed to process namespace %q: %w", ns, err)
		}

		// Same ids and texts; only the vectors change.
		err := r.store.Rewrite(ctx, ns, snap.collection.Generation, snap.chunks)
		if err == nil {
			r.logger.Debug("reembedded namespace", "namespace", ns, "chunks", len(snap.chunks))
			return nil
		}
		if !errors.Is(err, storage.ErrNamespaceChanged) || attempt >= maxConflictAttempts {
			return fmt.Errorf("failed to store namespace %q: %w", ns, err)
		}

		r.logger.Info("namespace changed during reembedding, retrying", "namespace", ns, "attempt", attempt)
		collection, chunks, err := r.store.Snapshot(ctx, ns)
		if err != nil {
			return fmt.Errorf("failed to read namespace %q: %w", ns, err)
		}
		snap = snapshot{collection: collection, chunks: chunks}
	}
}
