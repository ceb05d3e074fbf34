// Package chunking splits long text into bounded segments suitable for embedding.
//
// Splitting is fixed-width over Unicode code points: segments are contiguous,
// never overlap and preserve the original order, so concatenating them
// reproduces the input exactly. A boundary may fall in the middle of a word.
package chunking

import "unicode/utf8"

// DefaultSize is the maximum segment length, in characters, used when no size is given.
const DefaultSize = 1000

// Split splits text into segments of at most size characters.
// The final segment may be shorter. Empty text yields no segments.
// A size of zero or less uses DefaultSize.
func Split(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
