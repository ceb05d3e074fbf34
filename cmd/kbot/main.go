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


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/kbot"
	"github.com/poiesic/kbot/config"
	"github.com/poiesic/kbot/core"
	"github.com/poiesic/kbot/extract"
	"github.com/poiesic/kbot/reembed"
	"github.com/urfave/cli/v2"
)

// openKnowledgeBase builds the knowledge base for a command. Tests replace it.
var openKnowledgeBase = func(cfg *config.Config) (*kbot.KnowledgeBase, error) {
	return kbot.New(
		kbot.WithDataDir(cfg.DataDir),
		kbot.WithAIConfig(cfg.ToAI()),
		kbot.WithEngineOptions(cfg.EngineOptions()...),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func botFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "bot",
		Aliases:  []string{"b"},
		Usage:    "Bot key owning the knowledge",
		Required: true,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kbot",
		Usage: "Per-bot knowledge retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (missing file means defaults)",
				Value:   "kbot.yaml",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Root directory for namespace databases (overrides config)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Replace a bot's knowledge with text and documents",
				Action: ingestCommand,
				Flags: []cli.Flag{
					botFlag(),
					&cli.StringFlag{
						Name:    "text",
						Aliases: []string{"t"},
						Usage:   "Knowledge text entered directly",
					},
					&cli.StringFlag{
						Name:  "text-file",
						Usage: "File whose content is used as knowledge text",
					},
					&cli.StringSliceFlag{
						Name:  "doc",
						Usage: "Document to extract (PDF, text, markdown, XLSX); repeatable",
					},
				},
			},
			{
				Name:      "context",
				Usage:     "Print the retrieved context for a question",
				ArgsUsage: "QUESTION",
				Action:    contextCommand,
				Flags:     []cli.Flag{botFlag()},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from a bot's knowledge",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags:     []cli.Flag{botFlag()},
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate every stored vector with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: reembed.DefaultConfig().BatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: reembed.DefaultConfig().ReportInterval,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: reembed.DefaultConfig().MaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: reembed.DefaultConfig().RetryDelay,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List bots with stored knowledge",
				Action: listCommand,
			},
			{
				Name:   "new-key",
				Usage:  "Generate a bot key",
				Action: newKeyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Bot display name",
						Required: true,
					},
					&cli.Int64Flag{
						Name:     "owner",
						Aliases:  []string{"o"},
						Usage:    "Owner id",
						Required: true,
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), ".env")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func withKnowledgeBase(c *cli.Context, fn func(kb *kbot.KnowledgeBase) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	kb, err := openKnowledgeBase(cfg)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer kb.Close()
	return fn(kb)
}

func ingestCommand(c *cli.Context) error {
	text, docs, err := readIngestInput(c.String("text"), c.String("text-file"), c.StringSlice("doc"))
	if err != nil {
		return err
	}

	return withKnowledgeBase(c, func(kb *kbot.KnowledgeBase) error {
		result, err := kb.Ingest(c.Context, c.String("bot"), text, docs...)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(c.App.ErrWriter, "warning: %s\n", warning)
		}
		fmt.Fprintf(c.App.Writer, "Stored %d chunks for %s (ingest %s)\n", result.Chunks, c.String("bot"), result.IngestID)
		return nil
	})
}

// readIngestInput gathers the manual text and documents for an ingest.
// Document content types are inferred from file extensions.
func readIngestInput(text, textFile string, docPaths []string) (string, []extract.Document, error) {
	if textFile != "" {
		data, err := os.ReadFile(textFile)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read text file: %w", err)
		}
		if text != "" {
			text += "\n"
		}
		text += string(data)
	}

	docs := make([]extract.Document, 0, len(docPaths))
	for _, path := range docPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read document: %w", err)
		}
		docs = append(docs, extract.Document{Name: filepath.Base(path), Data: data})
	}

	if strings.TrimSpace(text) == "" && len(docs) == 0 {
		return "", nil, errors.New("nothing to ingest: use --text, --text-file or --doc")
	}
	return text, docs, nil
}

func question(c *cli.Context) (string, error) {
	q := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if q == "" {
		return "", errors.New("question is required")
	}
	return q, nil
}

func contextCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}
	return withKnowledgeBase(c, func(kb *kbot.KnowledgeBase) error {
		knowledge, err := kb.RetrieveContext(c.Context, c.String("bot"), q)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		fmt.Fprintln(c.App.Writer, knowledge)
		return nil
	})
}

func askCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}
	return withKnowledgeBase(c, func(kb *kbot.KnowledgeBase) error {
		reply, err := kb.Reply(c.Context, c.String("bot"), q)
		if err != nil {
			return fmt.Errorf("answer failed: %w", err)
		}
		fmt.Fprintln(c.App.Writer, reply.Text)
		return nil
	})
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	return withKnowledgeBase(c, func(kb *kbot.KnowledgeBase) error {
		if err := kb.Reembed(c.Context, reembedConfig, c.App.ErrWriter); err != nil {
			return fmt.Errorf("reembedding failed: %w", err)
		}
		return nil
	})
}

func listCommand(c *cli.Context) error {
	return withKnowledgeBase(c, func(kb *kbot.KnowledgeBase) error {
		namespaces, err := kb.Namespaces(c.Context)
		if err != nil {
			return err
		}
		for _, ns := range namespaces {
			fmt.Fprintln(c.App.Writer, ns)
		}
		return nil
	})
}

func newKeyCommand(c *cli.Context) error {
	key := core.NewBotKey(c.String("name"), c.Int64("owner"), time.Now())
	if err := core.ValidateNamespaceKey(key); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, key)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
