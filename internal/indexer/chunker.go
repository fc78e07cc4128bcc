// Package indexer rebuilds the vector and keyword indexes from the product catalog.
package indexer

import (
	"strings"
	"unicode"
)

// Default chunking geometry. Sizes are in runes, not bytes, because catalog
// text is mostly CJK.
const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 50
)

// backscanWindow bounds how far Chunk looks behind a hard boundary for a
// natural break.
const backscanWindow = 50

// Preprocess normalizes text for chunking (trim, collapse whitespace runs).
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

// Chunker splits text into overlapping rune-based chunks, breaking at
// whitespace or sentence punctuation where possible.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap in runes.
// A non-positive size falls back to DefaultChunkSize; overlap is clamped
// below the size so the cursor always advances.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk normalizes text and splits it into chunks of at most chunkSize runes.
// A boundary prefers the last whitespace or sentence punctuation within
// backscanWindow runes behind the hard cut; consecutive chunks share
// chunkOverlap runes of context.
func (c *Chunker) Chunk(text string) []string {
	text = Preprocess(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		breakPoint := end
		low := end - backscanWindow
		if low < start {
			low = start
		}
		for i := end - 1; i >= low; i-- {
			if isBreakRune(runes[i]) {
				breakPoint = i + 1
				break
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:breakPoint])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := breakPoint - c.chunkOverlap
		if next < start+1 {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// ChunkAll chunks every text and flattens the results in input order.
func (c *Chunker) ChunkAll(texts []string) []string {
	var out []string
	for _, t := range texts {
		out = append(out, c.Chunk(t)...)
	}
	return out
}

func isBreakRune(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', '!', '?', ';', ':',
		'。', '，', '！', '？', '；', '：':
		return true
	}
	return false
}
