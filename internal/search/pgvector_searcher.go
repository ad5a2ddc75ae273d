package search

import (
	"context"
	"time"

	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/repository/contract"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/rag/retrieve"
	"ai-docqa-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

const (
	embeddingCacheTTL     = 5 * time.Minute
	embeddingCacheCleanup = 10 * time.Minute
)

// PgvectorSearcher answers similarity searches against the vector_store
// table. Query embeddings are memoized: multi-query retrieval re-issues the
// same expanded query for supplements and retries, and embedding is the
// dominant cost per search.
type PgvectorSearcher struct {
	repository contract.DocumentChunkRepository
	provider   embedding.EmbeddingProvider
	queryCache *cache.Cache
	logger     logger.ILogger
}

var _ retrieve.Searcher = (*PgvectorSearcher)(nil)

func NewPgvectorSearcher(repository contract.DocumentChunkRepository, provider embedding.EmbeddingProvider, logger logger.ILogger) *PgvectorSearcher {
	return &PgvectorSearcher{
		repository: repository,
		provider:   provider,
		queryCache: cache.New(embeddingCacheTTL, embeddingCacheCleanup),
		logger:     logger,
	}
}

func (s *PgvectorSearcher) Search(ctx context.Context, query string, topK int, threshold float64) ([]store.Chunk, error) {
	vector, err := s.queryEmbedding(query)
	if err != nil {
		return nil, err
	}

	scored, err := s.repository.SearchSimilarWithScore(ctx, vector, topK, threshold)
	if err != nil {
		return nil, err
	}

	chunks := make([]store.Chunk, 0, len(scored))
	for _, sc := range scored {
		if sc.Chunk == nil {
			continue
		}
		metadata := make(map[string]string, len(sc.Chunk.Metadata))
		for k, v := range sc.Chunk.Metadata {
			metadata[k] = v
		}
		chunks = append(chunks, store.Chunk{
			ID:       sc.Chunk.Id.String(),
			Text:     sc.Chunk.Text,
			Metadata: metadata,
			Score:    float32(sc.Similarity),
		})
	}
	return chunks, nil
}

func (s *PgvectorSearcher) queryEmbedding(query string) ([]float32, error) {
	if cached, found := s.queryCache.Get(query); found {
		if vector, ok := cached.([]float32); ok {
			return vector, nil
		}
	}

	resp, err := s.provider.Generate(query, embedding.TaskTypeQuery)
	if err != nil {
		return nil, err
	}

	vector := resp.Embedding.Values
	s.queryCache.Set(query, vector, cache.DefaultExpiration)
	return vector, nil
}
