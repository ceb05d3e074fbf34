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


// Package retrieval turns a bot's knowledge into a searchable namespace and
// answers questions with the most relevant stored chunks.
//
// # Ingest
//
// Engine.Ingest extracts every uploaded document, combines the texts with the
// bot's manual text, splits the result into fixed-size chunks, embeds them, and
// replaces the bot's namespace with the new chunk set. A document that fails to
// extract is skipped and reported as a warning; embedding and storage failures
// abort the ingest and leave the previous namespace contents in place.
//
// # Retrieve
//
// Engine.Retrieve embeds the question and returns the nearest chunks as a tagged
// Retrieval. A bot that was never ingested and a bot whose namespace holds nothing
// relevant are outcomes, not errors:
//
//	r, err := engine.Retrieve(ctx, botKey, "What color is the sky?")
//	if err != nil {
//	    return err
//	}
//	switch r.Outcome {
//	case retrieval.OutcomeNamespaceAbsent:
//	    // no knowledge configured
//	case retrieval.OutcomeNoMatches:
//	    // nothing relevant
//	}
//	prompt := r.Context()
//
// # Concurrency
//
// Extraction and embedding run on a bounded worker pool shared by all requests.
// Submitting work blocks while the pool is saturated.
package retrieval
