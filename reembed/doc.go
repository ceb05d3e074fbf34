// Package reembed rebuilds the vectors of every stored chunk with the current
// embedding model.
//
// Use it after switching embedding models: chunk texts and ids are kept, each
// namespace's vectors are regenerated in batches with retry and exponential
// backoff, normalized to unit length, and swapped in atomically.
package reembed
