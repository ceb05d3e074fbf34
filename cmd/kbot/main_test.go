package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/kbot"
	"github.com/poiesic/kbot/ai/mock"
	"github.com/poiesic/kbot/config"
	"github.com/poiesic/kbot/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type testApp struct {
	dataDir string
	out     bytes.Buffer
	errOut  bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	original := openKnowledgeBase
	openKnowledgeBase = func(cfg *config.Config) (*kbot.KnowledgeBase, error) {
		return kbot.New(kbot.WithDataDir(cfg.DataDir), kbot.WithProvider(mock.NewMockProvider()))
	}
	t.Cleanup(func() { openKnowledgeBase = original })
	return &testApp{dataDir: t.TempDir()}
}

func (a *testApp) run(args ...string) error {
	a.out.Reset()
	a.errOut.Reset()
	app := newApp()
	app.Writer = &a.out
	app.ErrWriter = &a.errOut
	base := []string{"kbot", "-c", filepath.Join(a.dataDir, "missing.yaml"), "-d", a.dataDir}
	return app.Run(append(base, args...))
}

func TestIngestThenQueryCommands(t *testing.T) {
	app := newTestApp(t)

	require.NoError(t, app.run("ingest", "--bot", "sky-bot", "--text", "The sky is blue."))
	assert.Contains(t, app.out.String(), "Stored 1 chunks for sky-bot")

	require.NoError(t, app.run("context", "--bot", "sky-bot", "The", "sky", "is", "blue."))
	assert.Equal(t, "The sky is blue.\n", app.out.String())

	require.NoError(t, app.run("ask", "-b", "sky-bot", "What colour is the sky?"))
	assert.Equal(t, "mock answer\n", app.out.String())

	require.NoError(t, app.run("list"))
	assert.Equal(t, "sky-bot\n", app.out.String())

	require.NoError(t, app.run("reembed", "--batch-size", "1"))
	assert.Contains(t, app.errOut.String(), "Reembedding complete")
}

func TestContextCommand_UnknownBot(t *testing.T) {
	app := newTestApp(t)

	require.NoError(t, app.run("context", "--bot", "nobody", "anything?"))
	assert.Equal(t, retrieval.NoBackgroundMaterial+"\n", app.out.String())
}

func TestIngestCommand_Documents(t *testing.T) {
	app := newTestApp(t)
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(notes, []byte("# Hours\nOpen 9 to 5."), 0o600))
	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("not a pdf"), 0o600))

	require.NoError(t, app.run("ingest", "--bot", "doc-bot", "--doc", notes, "--doc", broken))
	assert.Contains(t, app.out.String(), "Stored 1 chunks")
	assert.Contains(t, app.errOut.String(), "warning:")
	assert.Contains(t, app.errOut.String(), "broken.pdf")
}

func TestCommandValidation(t *testing.T) {
	app := newTestApp(t)

	t.Run("bot is required", func(t *testing.T) {
		err := app.run("ingest", "--text", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bot")
	})

	t.Run("ingest needs content", func(t *testing.T) {
		err := app.run("ingest", "--bot", "empty-bot")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nothing to ingest")
	})

	t.Run("question is required", func(t *testing.T) {
		err := app.run("context", "--bot", "sky-bot")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question is required")
	})

	t.Run("batch-size must be positive", func(t *testing.T) {
		err := app.run("reembed", "--batch-size", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size")
	})

	t.Run("max-retries must be positive", func(t *testing.T) {
		err := app.run("reembed", "--max-retries", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max-retries")
	})
}

func TestNewKeyCommand(t *testing.T) {
	app := newTestApp(t)

	require.NoError(t, app.run("new-key", "--name", "Support Bot", "--owner", "42"))
	key := strings.TrimSpace(app.out.String())
	assert.True(t, strings.HasPrefix(key, "support-bot-42-"), key)

	err := app.run("new-key", "--name", "Support Bot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}

func TestReadIngestInput(t *testing.T) {
	dir := t.TempDir()
	textFile := filepath.Join(dir, "faq.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("From file."), 0o600))
	doc := filepath.Join(dir, "sheet.xlsx")
	require.NoError(t, os.WriteFile(doc, []byte("xlsx"), 0o600))

	text, docs, err := readIngestInput("Typed.", textFile, []string{doc})
	require.NoError(t, err)
	assert.Equal(t, "Typed.\nFrom file.", text)
	require.Len(t, docs, 1)
	assert.Equal(t, "sheet.xlsx", docs[0].Name)
	assert.Equal(t, []byte("xlsx"), docs[0].Data)

	_, _, err = readIngestInput("", filepath.Join(dir, "missing.txt"), nil)
	assert.Error(t, err)

	_, _, err = readIngestInput("   ", "", nil)
	assert.Error(t, err)
}

func TestReembedCommandFlags(t *testing.T) {
	var cmd *cli.Command
	for _, c := range newApp().Commands {
		if c.Name == "reembed" {
			cmd = c
		}
	}
	require.NotNil(t, cmd)

	var batchFlag *cli.IntFlag
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.IntFlag); ok && f.Name == "batch-size" {
			batchFlag = f
			break
		}
	}
	require.NotNil(t, batchFlag)
	assert.Equal(t, 32, batchFlag.Value)
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "WaRn", "ERROR"} {
			t.Run(level, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "log-level", Value: "info"},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}
				require.NoError(t, app.Run([]string{"test", "--log-level", level}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		err := app.Run([]string{"kbot", "--log-level", "invalid", "list"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
