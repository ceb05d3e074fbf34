package mock

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVector(t *testing.T) {
	a := DeterministicVector("The sky is blue.", 64)
	b := DeterministicVector("The sky is blue.", 64)
	c := DeterministicVector("Bananas are yellow.", 64)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	require.Len(t, a, 64)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestMockEmbedder_EmbedTexts(t *testing.T) {
	m := NewMockEmbedderWithDimensions(16)
	ctx := context.Background()

	vectors, err := m.EmbedTexts(ctx, []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[2])

	single, err := m.EmbedText(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, vectors[1], single)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, 4, m.TextCount())

	m.Reset()
	assert.Zero(t, m.CallCount())
}

func TestMockEmbedder_ConcurrentCalls(t *testing.T) {
	m := NewMockEmbedder()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.EmbedTexts(context.Background(), []string{"x", "y"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, m.CallCount())
	assert.Equal(t, 40, m.TextCount())
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator("42")

	answer, err := g.Generate(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "42", answer)
	assert.Equal(t, []string{"question"}, g.Prompts())
	assert.Equal(t, 1, g.CallCount())
}
