package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentChunk is one retrievable fragment of an uploaded document.
// Embedding is nil until the async embedding consumer has processed it.
type DocumentChunk struct {
	Id        uuid.UUID
	Text      string
	Metadata  map[string]string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Source returns the originating file name recorded at ingestion time.
func (c *DocumentChunk) Source() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["source"]
}
