package store

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Chunk represents one retrievable text fragment produced by the ingestion
// pipeline. The retrieval engine never mutates Text or Metadata; it only
// reorders, filters and annotates scores alongside it.
type Chunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
}

// Source returns the originating filename recorded by ingestion.
func (c Chunk) Source() string {
	return c.Metadata["source"]
}

// FileType returns the lowercase extension recorded by ingestion.
func (c Chunk) FileType() string {
	return c.Metadata["fileType"]
}

// Identity resolves a stable identity for deduplication: the chunk id when
// present, otherwise source plus a hash of the text. Chunks without a
// universal id still dedup correctly across queries this way.
func (c Chunk) Identity() string {
	if strings.TrimSpace(c.ID) != "" {
		return c.ID
	}
	return c.Source() + ":" + HashText(c.Text)
}

// HashText returns a short stable hash of the given text, used as an
// identity fallback when a chunk carries no id.
func HashText(text string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}
