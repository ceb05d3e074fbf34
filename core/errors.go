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


package core

import (
	"errors"
	"fmt"
)

// Domain errors shared by every layer of the retrieval core.
var (
	// ErrExtraction indicates a document could not be turned into text.
	// Extraction failures are contained per document and reported as warnings.
	ErrExtraction = errors.New("text extraction failed")

	// ErrUnsupportedDocument indicates a document type with no registered extractor.
	// It wraps ErrExtraction so callers only need to check for the latter.
	ErrUnsupportedDocument = fmt.Errorf("%w: unsupported document type", ErrExtraction)

	// ErrEmbedding indicates the embedding backend failed or is unavailable.
	// It is fatal to the ingest or query that triggered it.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// dimensionality configured for the store.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidNamespace indicates a namespace (bot) key that cannot be stored.
	ErrInvalidNamespace = errors.New("invalid namespace key")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")
)
