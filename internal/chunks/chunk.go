// Package chunks defines the context fragments handed to the prompt builder.
package chunks

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// Source identifies where a chunk came from. The declaration order is the
// ranking order.
type Source int

const (
	SourceHunk Source = iota
	SourceSymbol
	SourceExtraFile
	SourcePlugin
)

func (s Source) String() string {
	switch s {
	case SourceHunk:
		return "hunk"
	case SourceSymbol:
		return "symbol-definition"
	case SourceExtraFile:
		return "extra-file"
	case SourcePlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Chunk is one unit of supplementary text. StartLine and EndLine are
// inclusive 1-based lines of Path when the chunk is an excerpt.
type Chunk struct {
	Source    Source `json:"source"`
	Path      string `json:"path"`
	Text      string `json:"text"`
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
	// Symbol is set on symbol-definition chunks.
	Symbol string `json:"symbol,omitempty"`
	// Origin names the pre-analyzer that produced a plugin chunk.
	Origin string `json:"origin,omitempty"`
}

// Size is the chunk's budget cost in characters.
func (c Chunk) Size() int {
	return utf8.RuneCountInString(c.Text)
}

// Key identifies a chunk for deduplication: same path, same text.
type Key struct {
	Path string
	Hash string
}

// DedupKey returns the chunk's deduplication key.
func (c Chunk) DedupKey() Key {
	sum := sha256.Sum256([]byte(c.Text))
	return Key{Path: c.Path, Hash: hex.EncodeToString(sum[:])}
}

// TotalSize sums Size over cs.
func TotalSize(cs []Chunk) int {
	n := 0
	for _, c := range cs {
		n += c.Size()
	}
	return n
}
