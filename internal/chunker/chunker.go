// Package chunker splits document text into fixed-size word windows.
package chunker

import "strings"

// DefaultSize is the number of whitespace-delimited tokens per chunk.
const DefaultSize = 400

// Chunk splits text on whitespace and regroups the tokens into consecutive
// chunks of exactly size tokens, joined by single spaces. The last chunk may
// be shorter. Empty or whitespace-only text yields no chunks.
// A non-positive size falls back to DefaultSize.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
