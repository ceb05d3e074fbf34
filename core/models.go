package core

import (
	"strconv"
	"time"
)

// ChunkIDPrefix prefixes the positional chunk ids assigned during ingest.
const ChunkIDPrefix = "doc_"

// ChunkID returns the id of the chunk at 0-based position index within one ingest.
func ChunkID(index int) string {
	return ChunkIDPrefix + strconv.Itoa(index)
}

// Chunk is a bounded slice of source text paired with its embedding.
// Chunks are immutable once stored.
type Chunk struct {
	ID     string
	Text   string
	Vector []float32 // Always exactly the store's dimension
}

// Collection describes one namespace: the isolated chunk set belonging to a bot.
type Collection struct {
	Key        string    // Bot key, immutable once created
	Dimension  int       // Vector length every chunk must have
	Generation uint64    // Bumped on every full replace; 0 for a fresh namespace
	ChunkCount int       // Number of chunks in the current generation
	IngestID   string    // Ingest that produced the current generation, empty if none
	CreatedAt  time.Time // When the namespace was first created
	UpdatedAt  time.Time // When the chunk set last changed
}

// IsEmpty reports whether the namespace holds no chunks.
func (c *Collection) IsEmpty() bool {
	return c.ChunkCount == 0
}

// Match is a chunk returned by a nearest-neighbor query.
type Match struct {
	ChunkID  string
	Text     string
	Distance float32 // Cosine distance, lower is closer
}

// QueryResult is the outcome of a nearest-neighbor query against one namespace.
// Found is false when the namespace does not exist; this is not an error.
type QueryResult struct {
	Found   bool
	Matches []Match
}
