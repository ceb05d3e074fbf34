// Package config loads deployment settings for kbot from a YAML file,
// optional .env files and KBOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/chunking"
	"github.com/poiesic/kbot/retrieval"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvToken           = "KBOT_TOKEN"
	EnvEmbeddingHost   = "KBOT_EMBEDDING_HOST"
	EnvGenerationHost  = "KBOT_GENERATION_HOST"
	EnvEmbeddingModel  = "KBOT_EMBEDDING_MODEL"
	EnvGenerationModel = "KBOT_GENERATION_MODEL"
	EnvDimensions      = "KBOT_DIMENSIONS"
	EnvDataDir         = "KBOT_DATA_DIR"
)

// DefaultDataDir is where namespaces are stored when nothing else is configured.
const DefaultDataDir = "kbot-data"

// AIConfig selects the embedding and generation services.
type AIConfig struct {
	EmbeddingHost   string `yaml:"embedding_host"`
	GenerationHost  string `yaml:"generation_host"`
	EmbeddingModel  string `yaml:"embedding_model"`
	GenerationModel string `yaml:"generation_model"`
	Dimensions      int    `yaml:"dimensions"`
	Token           string `yaml:"token,omitempty"`
}

// RetrievalConfig tunes ingestion and lookup.
type RetrievalConfig struct {
	ChunkSize      int `yaml:"chunk_size"`
	TopK           int `yaml:"top_k"`
	PoolSize       int `yaml:"pool_size"`
	EmbedBatchSize int `yaml:"embed_batch_size"`
}

// Config is the root configuration structure.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	AI        AIConfig        `yaml:"ai"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	defaults := ai.DefaultConfig()
	return &Config{
		DataDir: DefaultDataDir,
		AI: AIConfig{
			EmbeddingHost:   defaults.EmbeddingHost,
			GenerationHost:  defaults.GenerationHost,
			EmbeddingModel:  defaults.EmbeddingModel,
			GenerationModel: defaults.GenerationModel,
			Dimensions:      defaults.Dimensions,
		},
		Retrieval: RetrievalConfig{
			ChunkSize:      chunking.DefaultSize,
			TopK:           retrieval.DefaultTopK,
			EmbedBatchSize: retrieval.DefaultEmbedBatchSize,
		},
	}
}

// Load reads the config at path. A missing file yields the defaults. Values from
// envFiles (missing ones are skipped) and the process environment override the file;
// variables already set in the process win over .env files.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	applyDefaults(cfg)

	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ToAI converts the file settings into an ai.Config.
func (c *Config) ToAI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel, c.AI.Dimensions),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithToken(c.AI.Token),
	)
}

// EngineOptions converts the retrieval settings into engine options.
// Zero values keep the engine defaults.
func (c *Config) EngineOptions() []retrieval.Option {
	var opts []retrieval.Option
	if c.Retrieval.ChunkSize > 0 {
		opts = append(opts, retrieval.WithChunkSize(c.Retrieval.ChunkSize))
	}
	if c.Retrieval.TopK > 0 {
		opts = append(opts, retrieval.WithTopK(c.Retrieval.TopK))
	}
	if c.Retrieval.PoolSize > 0 {
		opts = append(opts, retrieval.WithPoolSize(c.Retrieval.PoolSize))
	}
	if c.Retrieval.EmbedBatchSize > 0 {
		opts = append(opts, retrieval.WithEmbedBatchSize(c.Retrieval.EmbedBatchSize))
	}
	return opts
}

func applyDefaults(cfg *Config) {
	defaults := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.AI.EmbeddingHost == "" {
		cfg.AI.EmbeddingHost = defaults.AI.EmbeddingHost
	}
	// Generation shares the embedding host unless set explicitly.
	if cfg.AI.GenerationHost == "" {
		cfg.AI.GenerationHost = cfg.AI.EmbeddingHost
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = defaults.AI.EmbeddingModel
	}
	if cfg.AI.GenerationModel == "" {
		cfg.AI.GenerationModel = defaults.AI.GenerationModel
	}
	if cfg.AI.Dimensions == 0 {
		cfg.AI.Dimensions = defaults.AI.Dimensions
	}
}

func applyEnv(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	setString(EnvToken, &cfg.AI.Token)
	setString(EnvEmbeddingHost, &cfg.AI.EmbeddingHost)
	setString(EnvGenerationHost, &cfg.AI.GenerationHost)
	setString(EnvEmbeddingModel, &cfg.AI.EmbeddingModel)
	setString(EnvGenerationModel, &cfg.AI.GenerationModel)
	setString(EnvDataDir, &cfg.DataDir)

	if v, ok := os.LookupEnv(EnvDimensions); ok && v != "" {
		dims, err := strconv.Atoi(v)
		if err != nil || dims <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvDimensions, v)
		}
		cfg.AI.Dimensions = dims
	}
	return nil
}
