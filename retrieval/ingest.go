package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/kbot/chunking"
	"github.com/poiesic/kbot/core"
	"github.com/poiesic/kbot/extract"
)

// IngestResult describes a completed ingest.
type IngestResult struct {
	// IngestID identifies this ingest in the namespace metadata.
	IngestID string
	// Chunks is the number of chunks stored.
	Chunks int
	// Warnings names every document that was skipped and why.
	Warnings []string
}

// Ingest builds the knowledge namespace for botKey from manualText and docs,
// replacing whatever the namespace held before. Documents that fail extraction
// are skipped with a warning. Any embedding or storage failure aborts the ingest
// and leaves the namespace unchanged.
func (e *Engine) Ingest(ctx context.Context, botKey, manualText string, docs []extract.Document) (*IngestResult, error) {
	if err := core.ValidateNamespaceKey(botKey); err != nil {
		return nil, err
	}
	logger := e.logger.With("bot", botKey)

	texts, warnings, err := e.extractAll(ctx, docs)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn("skipped document", "warning", w)
	}

	combined := combine(manualText, texts)
	pieces := chunking.Split(combined, e.chunkSize)
	logger.Debug("chunked knowledge", "characters", len(combined), "chunks", len(pieces))

	vectors, err := e.embed(ctx, pieces)
	if err != nil {
		logger.Error("failed to embed chunks", "err", err)
		return nil, err
	}

	chunks := make([]*core.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = &core.Chunk{
			ID:     core.ChunkID(i),
			Text:   text,
			Vector: vectors[i],
		}
	}

	ingestID := uuid.NewString()
	if err := e.store.Replace(ctx, botKey, ingestID, chunks); err != nil {
		logger.Error("failed to store chunks", "err", err)
		return nil, err
	}

	logger.Info("ingested knowledge",
		"ingestID", ingestID,
		"documents", len(docs),
		"skipped", len(warnings),
		"chunks", len(chunks))

	return &IngestResult{
		IngestID: ingestID,
		Chunks:   len(chunks),
		Warnings: warnings,
	}, nil
}

// extractAll extracts docs concurrently. texts holds the successful extractions
// in input order; warnings describe the failures, also in input order.
func (e *Engine) extractAll(ctx context.Context, docs []extract.Document) (texts []string, warnings []string, err error) {
	results := make([]string, len(docs))
	failures := make([]error, len(docs))

	err = e.runTasks(ctx, len(docs), func(ctx context.Context, i int) error {
		results[i], failures[i] = e.extractor.Extract(docs[i])
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for i, doc := range docs {
		if failures[i] != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", documentName(doc, i), failures[i]))
			continue
		}
		texts = append(texts, results[i])
	}
	return texts, warnings, nil
}

func documentName(doc extract.Document, index int) string {
	if doc.Name != "" {
		return doc.Name
	}
	return fmt.Sprintf("document %d", index+1)
}

// combine joins manualText and the document texts with newlines.
// An empty manualText adds no leading separator.
func combine(manualText string, texts []string) string {
	parts := make([]string, 0, len(texts)+1)
	if manualText != "" {
		parts = append(parts, manualText)
	}
	parts = append(parts, texts...)
	return strings.Join(parts, "\n")
}
