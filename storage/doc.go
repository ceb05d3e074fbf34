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


// Package storage provides the storage abstraction layer for kbot.
//
// This package defines the CollectionStore interface that decouples the retrieval
// engine from the storage implementation, along with the value encoding shared by
// backends.
//
// # Namespaces
//
// Every bot owns exactly one namespace, addressed by its bot key. A namespace holds
// one collection of chunks, each carrying its text and embedding vector. Namespaces
// are fully isolated: queries against one never observe chunks of another.
//
// # Usage
//
// Create a store rooted at a directory:
//
//	store, err := badger.NewStore("/var/lib/kbot", 768)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore(384)
//
// # Thread Safety
//
// All store implementations must be thread-safe. Writes to the same namespace are
// serialized; writes to distinct namespaces proceed in parallel.
//
// # Context Support
//
// All store methods accept context.Context for cancellation. Bulk writes check the
// context between batches and leave the namespace untouched when cancelled.
package storage
