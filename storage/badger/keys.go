package badger

import (
	"encoding/binary"
	"encoding/hex"
)

// Key layout inside a namespace database:
//
//	meta                      collection metadata, including the head generation
//	chunk:<gen>:<chunk id>    chunk record, gen is 8 bytes big endian
const (
	metaKey     = "meta"
	chunkPrefix = "chunk:"
)

// makeGenerationPrefix returns the key prefix shared by all chunks of a generation.
func makeGenerationPrefix(generation uint64) []byte {
	buf := make([]byte, len(chunkPrefix)+9)
	offset := copy(buf, chunkPrefix)
	// BigEndian keeps generations in numeric order
	binary.BigEndian.PutUint64(buf[offset:], generation)
	buf[offset+8] = ':'
	return buf
}

// makeChunkKey generates the key for a chunk of a generation.
func makeChunkKey(generation uint64, id string) []byte {
	prefix := makeGenerationPrefix(generation)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id)
	return buf
}

// isNamespaceDir reports whether name looks like a namespace directory.
func isNamespaceDir(name string) bool {
	if len(name) != 32 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}
