package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	chunks := Split("", 10)
	assert.Nil(t, chunks, "empty text should yield zero chunks, not a single empty chunk")
}

func TestSplit_ManualTextScenario(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks := Split(text, 1000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 500)
}

func TestSplit_Properties(t *testing.T) {
	texts := []string{
		"a",
		"The sky is blue.",
		strings.Repeat("abc ", 333),
		"naïve café déjà vu — 日本語のテキスト 🙂🙂🙂",
		strings.Repeat("x", 1000),
		strings.Repeat("y", 1001),
	}
	sizes := []int{1, 3, 7, 100, 1000}

	for _, text := range texts {
		for _, size := range sizes {
			chunks := Split(text, size)

			assert.Equal(t, text, strings.Join(chunks, ""), "concatenation must reproduce input (size %d)", size)

			length := utf8.RuneCountInString(text)
			wantCount := (length + size - 1) / size
			assert.Len(t, chunks, wantCount, "chunk count must be ceil(len/size) (size %d)", size)

			for i, chunk := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(chunk), size, "chunk %d too long", i)
				assert.NotEmpty(t, chunk, "chunk %d is empty", i)
				assert.True(t, utf8.ValidString(chunk), "chunk %d split a multi-byte character", i)
			}
		}
	}
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	chunks := Split("ééééé", 2)
	assert.Equal(t, []string{"éé", "éé", "é"}, chunks)
}

func TestSplit_DefaultSize(t *testing.T) {
	chunks := Split(strings.Repeat("z", DefaultSize+1), 0)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], DefaultSize)
	assert.Equal(t, "z", chunks[1])
}
