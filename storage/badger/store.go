package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kbot/core"
	"github.com/poiesic/kbot/storage"
)

// ctxCheckInterval is how many records are processed between context checks.
const ctxCheckInterval = 256

var (
	// ErrDimensionRequired is returned when a store is created without a positive dimension.
	ErrDimensionRequired = errors.New("vector dimension must be positive")
	// ErrRootRequired is returned when a disk-backed store has no root directory.
	ErrRootRequired = errors.New("store root directory is required")
)

// Store implements storage.CollectionStore with one BadgerDB database per namespace.
type Store struct {
	root      string
	inMemory  bool
	dimension int
	logger    *slog.Logger

	mu         sync.Mutex
	closed     bool
	namespaces map[string]*namespace // keyed by directory name
}

var _ storage.CollectionStore = (*Store)(nil)

// namespace is an open namespace database.
type namespace struct {
	dir     string
	backend *Backend
	// writeMu serializes writers; readers use snapshot transactions.
	writeMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore opens a store rooted at root. Each namespace lives in its own
// subdirectory named by core.NamespaceDirName.
func NewStore(root string, dimension int, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, ErrRootRequired
	}
	s, err := newStore(root, false, dimension, opts...)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(root); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(root string, inMemory bool, dimension int, opts ...Option) (*Store, error) {
	if dimension <= 0 {
		return nil, ErrDimensionRequired
	}
	s := &Store{
		root:       root,
		inMemory:   inMemory,
		dimension:  dimension,
		logger:     slog.Default(),
		namespaces: make(map[string]*namespace),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "collection-store")
	return s, nil
}

// Dimension returns the vector length every chunk must have.
func (s *Store) Dimension() int {
	return s.dimension
}

// Close closes every open namespace. The store is unusable afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for dir, ns := range s.namespaces {
		if err := ns.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close namespace %s: %w", dir, err))
		}
	}
	s.namespaces = nil
	return errors.Join(errs...)
}

// Open returns the collection for ns, creating it if absent.
func (s *Store) Open(ctx context.Context, ns string) (*core.Collection, error) {
	h, err := s.acquire(ns, true)
	if err != nil {
		return nil, err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	var collection *core.Collection
	err = h.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		collection, err = readMeta(tx)
		if err != nil || collection != nil {
			return err
		}
		collection = s.newCollection(ns)
		if err := writeMeta(tx, collection); err != nil {
			return err
		}
		s.logger.Info("created namespace", "namespace", ns, "dir", h.dir)
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// Exists reports whether ns has been created.
func (s *Store) Exists(ctx context.Context, ns string) (bool, error) {
	h, err := s.acquire(ns, false)
	return h != nil, err
}

// Upsert creates or opens ns and adds chunks in a single transaction.
func (s *Store) Upsert(ctx context.Context, ns string, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk, s.dimension); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h, err := s.acquire(ns, true)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	return h.backend.WithTx(func(tx *badger.Txn) error {
		collection, err := readMeta(tx)
		if err != nil {
			return err
		}
		if collection == nil {
			collection = s.newCollection(ns)
		}

		seen := make(map[string]struct{}, len(chunks))
		added := 0
		for _, chunk := range chunks {
			key := makeChunkKey(collection.Generation, chunk.ID)
			if _, dup := seen[chunk.ID]; !dup {
				seen[chunk.ID] = struct{}{}
				_, err := tx.Get(key)
				switch {
				case errors.Is(err, badger.ErrKeyNotFound):
					added++
				case err != nil:
					return err
				}
			}
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}

		collection.ChunkCount += added
		collection.UpdatedAt = time.Now().UTC()
		if err := writeMeta(tx, collection); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Replace creates or opens ns and atomically swaps its chunk set for chunks.
// The new set is staged under the next generation and becomes visible when the
// metadata head flips. Cancellation before the flip leaves ns untouched.
func (s *Store) Replace(ctx context.Context, ns string, ingestID string, chunks []*core.Chunk) error {
	return s.swap(ctx, ns, chunks, false, func(head *core.Collection) (*core.Collection, error) {
		next := s.nextCollection(ns, head)
		next.IngestID = ingestID
		return next, nil
	})
}

// Rewrite swaps the chunk set of ns for chunks only if its head is still at
// generation. The ingest id is kept and the head takes the store's dimension,
// so a namespace embedded with another model can be migrated.
func (s *Store) Rewrite(ctx context.Context, ns string, generation uint64, chunks []*core.Chunk) error {
	return s.swap(ctx, ns, chunks, true, func(head *core.Collection) (*core.Collection, error) {
		if head == nil {
			return nil, fmt.Errorf("%w: namespace %q does not exist", storage.ErrNamespaceChanged, ns)
		}
		if head.Generation != generation {
			return nil, fmt.Errorf("%w: namespace %q is at generation %d, expected %d",
				storage.ErrNamespaceChanged, ns, head.Generation, generation)
		}
		next := s.nextCollection(ns, head)
		next.IngestID = head.IngestID
		return next, nil
	})
}

// swap replaces the chunk set of ns with chunks under the head built by next.
// With rewrite set the namespace must already exist and its dimension is not checked.
func (s *Store) swap(ctx context.Context, ns string, chunks []*core.Chunk, rewrite bool,
	next func(head *core.Collection) (*core.Collection, error)) error {
	unique := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk, s.dimension); err != nil {
			return err
		}
		unique[chunk.ID] = struct{}{}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		h   *namespace
		err error
	)
	if rewrite {
		h, _, err = s.lookup(ns, false)
		if err == nil && h == nil {
			err = fmt.Errorf("%w: namespace %q does not exist", storage.ErrNamespaceChanged, ns)
		}
	} else {
		h, err = s.acquire(ns, true)
	}
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	head, err := h.meta()
	if err != nil {
		return err
	}
	collection, err := next(head)
	if err != nil {
		return err
	}
	collection.ChunkCount = len(unique)

	// Drops leftovers of interrupted replaces: staged or never deleted generations.
	var keep []byte
	if head != nil {
		keep = makeGenerationPrefix(head.Generation)
	}
	if removed, err := s.purgeGenerations(h, keep); err != nil {
		return fmt.Errorf("purge stale generations: %w", err)
	} else if removed > 0 {
		s.logger.Info("removed stale chunks", "namespace", ns, "chunks", removed)
	}

	stagePrefix := makeGenerationPrefix(collection.Generation)
	if err := s.stage(ctx, h, collection.Generation, chunks); err != nil {
		if _, purgeErr := h.backend.DeletePrefix(stagePrefix); purgeErr != nil {
			s.logger.Warn("failed to discard staged generation", "namespace", ns, "err", purgeErr)
		}
		return err
	}

	err = h.backend.WithTx(func(tx *badger.Txn) error {
		if err := writeMeta(tx, collection); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		if _, purgeErr := h.backend.DeletePrefix(stagePrefix); purgeErr != nil {
			s.logger.Warn("failed to discard staged generation", "namespace", ns, "err", purgeErr)
		}
		return err
	}

	s.logger.Debug("replaced namespace contents",
		"namespace", ns,
		"generation", collection.Generation,
		"chunks", collection.ChunkCount,
		"ingestID", collection.IngestID)

	if head != nil {
		removed, err := h.backend.DeletePrefix(makeGenerationPrefix(head.Generation))
		if err != nil {
			// Unreachable now; the next swap sweeps it.
			s.logger.Warn("failed to delete previous generation",
				"namespace", ns, "generation", head.Generation, "err", err)
		} else {
			s.logger.Debug("deleted previous generation",
				"namespace", ns, "generation", head.Generation, "chunks", removed)
		}
	}
	return nil
}

// purgeGenerations deletes every chunk key outside the generation prefix keep.
// A nil keep deletes all chunks.
func (s *Store) purgeGenerations(h *namespace, keep []byte) (int, error) {
	keys, err := h.backend.KeysWithPrefix([]byte(chunkPrefix))
	if err != nil {
		return 0, err
	}
	stale := keys[:0]
	for _, key := range keys {
		if keep == nil || !bytes.HasPrefix(key, keep) {
			stale = append(stale, key)
		}
	}
	return h.backend.DeleteKeys(stale)
}

func (s *Store) nextCollection(ns string, head *core.Collection) *core.Collection {
	next := s.newCollection(ns)
	if head != nil {
		next.Generation = head.Generation + 1
		next.CreatedAt = head.CreatedAt
	}
	return next
}

// stage writes chunks under generation without touching the head.
func (s *Store) stage(ctx context.Context, h *namespace, generation uint64, chunks []*core.Chunk) error {
	wb := h.backend.NewWriteBatch()
	for i, chunk := range chunks {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				wb.Cancel()
				return err
			}
		}
		if err := wb.Set(makeChunkKey(generation, chunk.ID), storage.MarshalChunk(chunk)); err != nil {
			wb.Cancel()
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	return ctx.Err()
}

// Query returns up to k chunks of ns nearest to vector by cosine distance.
func (s *Store) Query(ctx context.Context, ns string, vector []float32, k int) (*core.QueryResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			core.ErrDimensionMismatch, len(vector), s.dimension)
	}

	h, err := s.acquire(ns, false)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return &core.QueryResult{Found: false}, nil
	}

	result := &core.QueryResult{Found: true}
	if k <= 0 {
		return result, nil
	}

	var matches []core.Match
	err = h.backend.WithTx(func(tx *badger.Txn) error {
		collection, err := readMeta(tx)
		if err != nil {
			return err
		}
		if collection == nil {
			result.Found = false
			return nil
		}
		return scanChunks(ctx, tx, collection.Generation, func(chunk *core.Chunk) {
			matches = append(matches, core.Match{
				ChunkID:  chunk.ID,
				Text:     chunk.Text,
				Distance: core.CosineDistance(vector, chunk.Vector),
			})
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b core.Match) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return strings.Compare(a.ChunkID, b.ChunkID)
		}
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	result.Matches = matches
	return result, nil
}

// Chunks returns every chunk of ns ordered by ID. An absent namespace has none.
func (s *Store) Chunks(ctx context.Context, ns string) ([]*core.Chunk, error) {
	h, err := s.acquire(ns, false)
	if err != nil || h == nil {
		return nil, err
	}

	var chunks []*core.Chunk
	err = h.backend.WithTx(func(tx *badger.Txn) error {
		collection, err := readMeta(tx)
		if err != nil || collection == nil {
			return err
		}
		// Keys share a prefix, so iteration order is chunk ID order.
		return scanChunks(ctx, tx, collection.Generation, func(chunk *core.Chunk) {
			chunks = append(chunks, chunk)
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Snapshot returns the head and chunks of ns from one read transaction without
// checking the stored dimension. An absent namespace yields nil and no chunks.
func (s *Store) Snapshot(ctx context.Context, ns string) (*core.Collection, []*core.Chunk, error) {
	h, _, err := s.lookup(ns, false)
	if err != nil || h == nil {
		return nil, nil, err
	}

	var (
		collection *core.Collection
		chunks     []*core.Chunk
	)
	err = h.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		collection, err = readMeta(tx)
		if err != nil || collection == nil {
			return err
		}
		return scanChunks(ctx, tx, collection.Generation, func(chunk *core.Chunk) {
			chunks = append(chunks, chunk)
		})
	}, false)
	if err != nil {
		return nil, nil, err
	}
	return collection, chunks, nil
}

// Namespaces returns the keys of every created namespace, sorted.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	if !s.inMemory {
		entries, err := os.ReadDir(s.root)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() || !isNamespaceDir(entry.Name()) {
				continue
			}
			s.mu.Lock()
			_, err := s.openDirLocked(entry.Name())
			s.mu.Unlock()
			if err != nil {
				return nil, err
			}
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, storage.ErrStorageClosed
	}
	handles := make([]*namespace, 0, len(s.namespaces))
	for _, h := range s.namespaces {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	var keys []string
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		collection, err := h.meta()
		if err != nil {
			return nil, err
		}
		if collection != nil {
			keys = append(keys, collection.Key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// acquire returns the open namespace for key after checking its dimension. With
// create unset, a namespace that has never been created yields nil and nothing is
// opened or written.
func (s *Store) acquire(key string, create bool) (*namespace, error) {
	h, collection, err := s.lookup(key, create)
	if err != nil || collection == nil {
		return h, err
	}
	if collection.Dimension != s.dimension {
		return nil, fmt.Errorf("%w: namespace %q has %d dimensions, store expects %d",
			core.ErrDimensionMismatch, key, collection.Dimension, s.dimension)
	}
	return h, nil
}

// lookup is acquire without the dimension check. It also returns the head
// collection, nil when the namespace was never created.
func (s *Store) lookup(key string, create bool) (*namespace, *core.Collection, error) {
	if err := core.ValidateNamespaceKey(key); err != nil {
		return nil, nil, err
	}
	dir := core.NamespaceDirName(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, storage.ErrStorageClosed
	}

	h, open := s.namespaces[dir]
	if !open {
		if !create && !s.onDisk(dir) {
			return nil, nil, nil
		}
		var err error
		if h, err = s.openDirLocked(dir); err != nil {
			return nil, nil, err
		}
	}

	collection, err := h.meta()
	if err != nil {
		return nil, nil, err
	}
	if collection == nil {
		if create {
			return h, nil, nil
		}
		return nil, nil, nil
	}
	if collection.Key != key {
		return nil, nil, fmt.Errorf("%w: directory %s holds %q", storage.ErrNamespaceConflict, dir, collection.Key)
	}
	return h, collection, nil
}

// openDirLocked opens the namespace database in dir. Callers hold s.mu.
func (s *Store) openDirLocked(dir string) (*namespace, error) {
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	if h, ok := s.namespaces[dir]; ok {
		return h, nil
	}

	path := ""
	if !s.inMemory {
		path = filepath.Join(s.root, dir)
	}
	backend, err := OpenBackend(path, s.inMemory, s.logger.With("dir", dir))
	if err != nil {
		return nil, fmt.Errorf("open namespace %s: %w", dir, err)
	}
	h := &namespace{dir: dir, backend: backend}
	s.namespaces[dir] = h
	return h, nil
}

func (s *Store) onDisk(dir string) bool {
	if s.inMemory {
		return false
	}
	info, err := os.Stat(filepath.Join(s.root, dir))
	return err == nil && info.IsDir()
}

func (s *Store) newCollection(key string) *core.Collection {
	now := time.Now().UTC()
	return &core.Collection{
		Key:       key,
		Dimension: s.dimension,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// meta reads the namespace metadata. Returns nil, nil if the namespace was never created.
func (h *namespace) meta() (*core.Collection, error) {
	var collection *core.Collection
	err := h.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		collection, err = readMeta(tx)
		return err
	}, false)
	return collection, err
}

func readMeta(tx *badger.Txn) (*core.Collection, error) {
	item, err := tx.Get([]byte(metaKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var collection *core.Collection
	err = item.Value(func(val []byte) error {
		var err error
		collection, err = storage.UnmarshalCollection(val)
		return err
	})
	return collection, err
}

func writeMeta(tx *badger.Txn, collection *core.Collection) error {
	return tx.Set([]byte(metaKey), storage.MarshalCollection(collection))
}

// scanChunks calls fn for every chunk of generation, checking ctx periodically.
func scanChunks(ctx context.Context, tx *badger.Txn, generation uint64, fn func(*core.Chunk)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeGenerationPrefix(generation)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	n := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n++

		var chunk *core.Chunk
		err := iter.Item().Value(func(val []byte) error {
			var err error
			chunk, err = storage.UnmarshalChunk(val)
			return err
		})
		if err != nil {
			return err
		}
		fn(chunk)
	}
	return nil
}
