package storage

import (
	"context"

	"github.com/poiesic/kbot/core"
)

// CollectionStore persists one collection of embedded chunks per namespace.
// Implementations must be thread-safe and support concurrent access.
type CollectionStore interface {
	// Open returns the collection for ns, creating it if absent.
	// Opening an existing namespace returns the same collection.
	Open(ctx context.Context, ns string) (*core.Collection, error)

	// Upsert creates or opens ns and adds the chunks.
	// Chunks with an existing ID replace the stored chunk.
	// Every vector is checked against the store dimension before anything is written,
	// and the batch is applied atomically.
	Upsert(ctx context.Context, ns string, chunks ...*core.Chunk) error

	// Replace creates or opens ns and atomically swaps its entire chunk set for chunks.
	// Readers observe either the previous set or the new one.
	Replace(ctx context.Context, ns string, ingestID string, chunks []*core.Chunk) error

	// Query returns up to k chunks nearest to vector by cosine distance,
	// ordered by distance then chunk ID. An absent namespace yields Found=false
	// and is not created.
	Query(ctx context.Context, ns string, vector []float32, k int) (*core.QueryResult, error)

	// Exists reports whether ns has been created.
	Exists(ctx context.Context, ns string) (bool, error)

	// Chunks returns every chunk stored in ns ordered by ID.
	Chunks(ctx context.Context, ns string) ([]*core.Chunk, error)

	// Snapshot returns the head collection and every chunk of ns from one consistent
	// view. The stored dimension is not checked. An absent namespace yields a nil
	// collection and no chunks.
	Snapshot(ctx context.Context, ns string) (*core.Collection, []*core.Chunk, error)

	// Rewrite atomically swaps the chunk set of ns for chunks if its head is still at
	// generation, keeping the ingest id and adopting the store dimension. Otherwise it
	// returns ErrNamespaceChanged and writes nothing.
	Rewrite(ctx context.Context, ns string, generation uint64, chunks []*core.Chunk) error

	// Namespaces returns the keys of all namespaces, sorted.
	Namespaces(ctx context.Context) ([]string, error)

	// Dimension returns the vector length every chunk must have.
	Dimension() int

	// Close releases all namespaces.
	Close() error
}
