package contract

import (
	"context"

	"ai-docqa-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredDocumentChunk wraps a chunk with its cosine similarity to the query
type ScoredDocumentChunk struct {
	Chunk      *entity.DocumentChunk
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

// SourceCount is one aggregated row of the per-document chunk inventory.
type SourceCount struct {
	Source     string
	ChunkCount int64
}

type DocumentChunkRepository interface {
	CreateBatch(ctx context.Context, chunks []*entity.DocumentChunk) error
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	// FindPendingBySource returns chunks of one document whose embedding has
	// not been generated yet, in insertion order.
	FindPendingBySource(ctx context.Context, source string) ([]*entity.DocumentChunk, error)
	// SearchSimilarWithScore returns embedded chunks with their similarity
	// scores, filtered by threshold. Unembedded rows never match.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*ScoredDocumentChunk, error)
	ListSources(ctx context.Context) ([]SourceCount, error)
	// DeleteBySource removes all chunks whose source ends with the given file
	// name and reports the number of deleted rows.
	DeleteBySource(ctx context.Context, source string) (int64, error)
	// EnsureVectorDimensions verifies the embedding column width and rebuilds
	// it when the configured model dimensionality differs. Stored vectors are
	// discarded on rebuild since they cannot be converted.
	EnsureVectorDimensions(ctx context.Context, dimensions int) error
}
