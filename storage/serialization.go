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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/kbot/core"
)

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, chunkMUS.Size(chunk))
	chunkMUS.Marshal(chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := chunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk: %v", ErrSerializationFailed, err)
	}
	return chunk, nil
}

// MarshalCollection serializes collection metadata to bytes.
func MarshalCollection(collection *core.Collection) []byte {
	buf := make([]byte, collectionMUS.Size(collection))
	collectionMUS.Marshal(collection, buf)
	return buf
}

// UnmarshalCollection deserializes collection metadata from bytes.
func UnmarshalCollection(data []byte) (*core.Collection, error) {
	collection, _, err := collectionMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: collection: %v", ErrSerializationFailed, err)
	}
	return collection, nil
}

var (
	chunkMUS      chunkSer
	collectionMUS collectionSer
)

type chunkSer struct{}

func (chunkSer) Size(c *core.Chunk) (size int) {
	size += ord.String.Size(c.ID)
	size += ord.String.Size(c.Text)
	size += varint.Int64.Size(int64(len(c.Vector)))
	for _, f := range c.Vector {
		size += raw.Float32.Size(f)
	}
	return
}

func (chunkSer) Marshal(c *core.Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.ID, bs)
	n += ord.String.Marshal(c.Text, bs[n:])
	n += varint.Int64.Marshal(int64(len(c.Vector)), bs[n:])
	for _, f := range c.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func (chunkSer) Unmarshal(bs []byte) (c *core.Chunk, n int, err error) {
	c = &core.Chunk{}
	var n1 int
	if c.ID, n1, err = ord.String.Unmarshal(bs); err != nil {
		return nil, n, err
	}
	n += n1
	if c.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	length, n1, err := varint.Int64.Unmarshal(bs[n:])
	if err != nil {
		return nil, n, err
	}
	n += n1
	// Every element takes four bytes.
	if length < 0 || length > int64((len(bs)-n)/4) {
		return nil, n, fmt.Errorf("invalid vector length %d", length)
	}
	c.Vector = make([]float32, length)
	for i := range c.Vector {
		if c.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += n1
	}
	return c, n, nil
}

type collectionSer struct{}

func (collectionSer) Size(c *core.Collection) (size int) {
	size += ord.String.Size(c.Key)
	size += varint.Int64.Size(int64(c.Dimension))
	size += varint.Uint64.Size(c.Generation)
	size += varint.Int64.Size(int64(c.ChunkCount))
	size += ord.String.Size(c.IngestID)
	size += varint.Int64.Size(unixMicro(c.CreatedAt))
	size += varint.Int64.Size(unixMicro(c.UpdatedAt))
	return
}

func (collectionSer) Marshal(c *core.Collection, bs []byte) (n int) {
	n = ord.String.Marshal(c.Key, bs)
	n += varint.Int64.Marshal(int64(c.Dimension), bs[n:])
	n += varint.Uint64.Marshal(c.Generation, bs[n:])
	n += varint.Int64.Marshal(int64(c.ChunkCount), bs[n:])
	n += ord.String.Marshal(c.IngestID, bs[n:])
	n += varint.Int64.Marshal(unixMicro(c.CreatedAt), bs[n:])
	n += varint.Int64.Marshal(unixMicro(c.UpdatedAt), bs[n:])
	return
}

func (collectionSer) Unmarshal(bs []byte) (c *core.Collection, n int, err error) {
	c = &core.Collection{}
	var (
		n1        int
		i64       int64
		createdAt int64
		updatedAt int64
	)
	if c.Key, n1, err = ord.String.Unmarshal(bs); err != nil {
		return nil, n, err
	}
	n += n1
	if i64, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	c.Dimension = int(i64)
	if c.Generation, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if i64, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	c.ChunkCount = int(i64)
	if c.IngestID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if createdAt, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if updatedAt, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	c.CreatedAt = fromUnixMicro(createdAt)
	c.UpdatedAt = fromUnixMicro(updatedAt)
	return c, n, nil
}

// Timestamps are stored as Unix microseconds; 0 encodes the zero time.
func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromUnixMicro(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}
