package storage

import (
	"math"
	"testing"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/kbot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		ID:     "doc_7",
		Text:   "The sky is blue. Ünïcödé ✓",
		Vector: []float32{0, -1, 0.5, float32(math.Inf(1)), 1e-30},
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestMarshalChunk_FixedWidthVector(t *testing.T) {
	// Values whose IEEE bits would need five varint bytes each.
	vector := []float32{-0.5, 0.999, -1e-3, 0.25}
	chunk := &core.Chunk{ID: "doc_3", Text: "fixed", Vector: vector}

	header := ord.String.Size(chunk.ID) + ord.String.Size(chunk.Text) + varint.Int64.Size(int64(len(vector)))
	assert.Len(t, MarshalChunk(chunk), header+4*len(vector))
}

func TestMarshalUnmarshalChunk_EmptyVector(t *testing.T) {
	decoded, err := UnmarshalChunk(MarshalChunk(&core.Chunk{ID: "doc_0"}))
	require.NoError(t, err)
	assert.Equal(t, "doc_0", decoded.ID)
	assert.Empty(t, decoded.Vector)
}

func TestMarshalUnmarshalCollection(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("populated", func(t *testing.T) {
		collection := &core.Collection{
			Key:        "support-bot-42-1700000000",
			Dimension:  768,
			Generation: 3,
			ChunkCount: 12,
			IngestID:   "e3b0c442-98fc-1c14-9afb-f4c8996fb924",
			CreatedAt:  now.Add(-time.Hour),
			UpdatedAt:  now,
		}
		decoded, err := UnmarshalCollection(MarshalCollection(collection))
		require.NoError(t, err)
		assert.Equal(t, collection, decoded)
	})

	t.Run("zero timestamps survive", func(t *testing.T) {
		decoded, err := UnmarshalCollection(MarshalCollection(&core.Collection{Key: "k", Dimension: 3}))
		require.NoError(t, err)
		assert.True(t, decoded.CreatedAt.IsZero())
		assert.True(t, decoded.UpdatedAt.IsZero())
	})
}

func TestUnmarshal_Invalid(t *testing.T) {
	chunk := MarshalChunk(&core.Chunk{ID: "doc_1", Text: "text", Vector: []float32{1, 2, 3}})
	collection := MarshalCollection(&core.Collection{Key: "bot", Dimension: 3, IngestID: "ingest"})

	_, err := UnmarshalChunk([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalChunk(chunk[:len(chunk)-2])
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalCollection([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalCollection(collection[:len(collection)-3])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
