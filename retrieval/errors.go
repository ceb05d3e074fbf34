package retrieval

import "errors"

var (
	// ErrStoreRequired is returned when a collection store is not provided.
	ErrStoreRequired = errors.New("collection store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEngineReleased is returned when the engine's worker pool has been released.
	ErrEngineReleased = errors.New("retrieval engine released")
)
