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


// Package kbot wires the per-bot knowledge retrieval core together: a namespace
// store, an AI provider, the retrieval engine and the answer responder.
package kbot

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/ai/openai"
	"github.com/poiesic/kbot/chat"
	"github.com/poiesic/kbot/extract"
	"github.com/poiesic/kbot/reembed"
	"github.com/poiesic/kbot/retrieval"
	"github.com/poiesic/kbot/storage/badger"
)

// ErrDataDirRequired is returned when neither a data directory nor in-memory mode is configured.
var ErrDataDirRequired = errors.New("data directory required")

// KnowledgeBase owns the store, provider, engine and responder of one deployment.
// It is safe for concurrent use. Close releases everything it owns.
type KnowledgeBase struct {
	store     *badger.Store
	provider  ai.AIProvider
	engine    *retrieval.Engine
	responder *chat.Responder
	logger    *slog.Logger
}

// Option configures a KnowledgeBase.
type Option func(*options)

type options struct {
	dataDir    string
	inMemory   bool
	aiConfig   *ai.Config
	provider   ai.AIProvider
	logger     *slog.Logger
	engineOpts []retrieval.Option
}

// WithDataDir sets the root directory holding one database per namespace.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithInMemory keeps every namespace in memory. Nothing is persisted.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithAIConfig sets the configuration of the OpenAI-compatible provider.
// Default: ai.DefaultConfig().
func WithAIConfig(config *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The knowledge base takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEngineOptions passes options through to the retrieval engine.
func WithEngineOptions(opts ...retrieval.Option) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// New builds a knowledge base. The store's vector length is taken from the provider.
func New(opts ...Option) (*KnowledgeBase, error) {
	options := &options{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if !options.inMemory && options.dataDir == "" {
		return nil, ErrDataDirRequired
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
	}

	var (
		store *badger.Store
		err   error
	)
	if options.inMemory {
		store, err = badger.NewMemoryStore(provider.Dimensions(), badger.WithLogger(options.logger))
	} else {
		store, err = badger.NewStore(options.dataDir, provider.Dimensions(), badger.WithLogger(options.logger))
	}
	if err != nil {
		provider.Close()
		return nil, err
	}

	engineOpts := append([]retrieval.Option{retrieval.WithLogger(options.logger)}, options.engineOpts...)
	engine, err := retrieval.NewEngine(store, provider, engineOpts...)
	if err != nil {
		store.Close()
		provider.Close()
		return nil, err
	}

	responder, err := chat.NewResponder(engine, provider.Generator(), chat.WithLogger(options.logger))
	if err != nil {
		engine.Release()
		store.Close()
		provider.Close()
		return nil, err
	}

	return &KnowledgeBase{
		store:     store,
		provider:  provider,
		engine:    engine,
		responder: responder,
		logger:    options.logger.With("component", "knowledge-base"),
	}, nil
}

// Close releases the engine, then closes the provider and the store.
func (kb *KnowledgeBase) Close() error {
	kb.engine.Release()

	if err := kb.provider.Close(); err != nil {
		kb.logger.Error("error closing AI provider", "err", err)
	}
	if err := kb.store.Close(); err != nil {
		kb.logger.Error("error closing store", "err", err)
		return err
	}
	return nil
}

// Ingest replaces botKey's knowledge with manualText plus the text of docs.
func (kb *KnowledgeBase) Ingest(ctx context.Context, botKey, manualText string, docs ...extract.Document) (*retrieval.IngestResult, error) {
	return kb.engine.Ingest(ctx, botKey, manualText, docs)
}

// Retrieve returns the chunks of botKey nearest to question, tagged with an outcome.
func (kb *KnowledgeBase) Retrieve(ctx context.Context, botKey, question string) (*retrieval.Retrieval, error) {
	return kb.engine.Retrieve(ctx, botKey, question)
}

// RetrieveContext returns the prompt context for question.
func (kb *KnowledgeBase) RetrieveContext(ctx context.Context, botKey, question string) (string, error) {
	return kb.engine.RetrieveContext(ctx, botKey, question)
}

// Reply answers question from botKey's knowledge using the generator.
func (kb *KnowledgeBase) Reply(ctx context.Context, botKey, question string) (*chat.Reply, error) {
	return kb.responder.Reply(ctx, botKey, question)
}

// Namespaces lists the bot keys with stored knowledge.
func (kb *KnowledgeBase) Namespaces(ctx context.Context) ([]string, error) {
	return kb.store.Namespaces(ctx)
}

// Reembed regenerates every stored vector with the provider's embedder,
// writing progress to progress. A nil config uses reembed.DefaultConfig().
func (kb *KnowledgeBase) Reembed(ctx context.Context, config *reembed.Config, progress io.Writer) error {
	return reembed.NewReembedder(kb.store, kb.provider.Embedder(), config, progress).Run(ctx)
}

// Engine returns the underlying retrieval engine.
func (kb *KnowledgeBase) Engine() *retrieval.Engine {
	return kb.engine
}
