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
	"fmt"
	"unicode"
)

// MaxNamespaceKeyLength is the longest bot key accepted, in bytes.
const MaxNamespaceKeyLength = 512

// ValidateNamespaceKey validates a bot key before it is used as a namespace.
//
// Validation rules:
//   - Key must not be empty
//   - Key must not exceed MaxNamespaceKeyLength bytes
//   - Key must not contain control characters
func ValidateNamespaceKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidNamespace)
	}
	if len(key) > MaxNamespaceKeyLength {
		return fmt.Errorf("%w: key is %d bytes, limit is %d", ErrInvalidNamespace, len(key), MaxNamespaceKeyLength)
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains control character %U", ErrInvalidNamespace, r)
		}
	}
	return nil
}

// ValidateChunk validates a Chunk against the store's dimension.
//
// Validation rules:
//   - ID must not be empty
//   - Vector length must equal dimension (ErrDimensionMismatch otherwise)
//
// NOT validated:
//   - Text (an empty chunk text is legal, the chunker never produces one)
func ValidateChunk(chunk *Chunk, dimension int) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.ID == "" {
		return fmt.Errorf("%w: chunk id is empty", ErrInvalidChunk)
	}
	if len(chunk.Vector) != dimension {
		return fmt.Errorf("%w: chunk %s has %d dimensions, expected %d",
			ErrDimensionMismatch, chunk.ID, len(chunk.Vector), dimension)
	}
	return nil
}
