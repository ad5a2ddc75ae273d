package implementation

import (
	"context"
	"fmt"

	"ai-docqa-be/internal/entity"
	"ai-docqa-be/internal/mapper"
	"ai-docqa-be/internal/model"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentChunkMapper
	logger logger.ILogger
}

func NewDocumentChunkRepository(db *gorm.DB, mapper *mapper.DocumentChunkMapper, logger logger.ILogger) contract.DocumentChunkRepository {
	return &DocumentChunkRepositoryImpl{
		db:     db,
		mapper: mapper,
		logger: logger,
	}
}

func (r *DocumentChunkRepositoryImpl) CreateBatch(ctx context.Context, chunks []*entity.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	models := r.mapper.ToModels(chunks)
	if err := r.db.WithContext(ctx).CreateInBatches(models, 100).Error; err != nil {
		return err
	}

	// Propagate generated ids and timestamps back to the entities.
	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *DocumentChunkRepositoryImpl) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	vector := pgvector.NewVector(embedding)
	return r.db.WithContext(ctx).
		Model(&model.DocumentChunk{}).
		Where("id = ?", id).
		Update("embedding", vector).Error
}

func (r *DocumentChunkRepositoryImpl) FindPendingBySource(ctx context.Context, source string) ([]*entity.DocumentChunk, error) {
	var models []*model.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("embedding IS NULL").
		Where("metadata->>'source' = ?", source).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*contract.ScoredDocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding <=> query_vector) recovers the similarity.
	type result struct {
		model.DocumentChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("vector_store").
		Select("vector_store.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("embedding IS NOT NULL").
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredDocumentChunk, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredDocumentChunk{
			Chunk:      r.mapper.ToEntity(&res.DocumentChunk),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *DocumentChunkRepositoryImpl) ListSources(ctx context.Context) ([]contract.SourceCount, error) {
	var counts []contract.SourceCount
	err := r.db.WithContext(ctx).
		Table("vector_store").
		Select("metadata->>'source' as source, count(*) as chunk_count").
		Where("metadata->>'source' IS NOT NULL").
		Group("metadata->>'source'").
		Order("chunk_count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// DeleteBySource matches on the trailing file name. Stored sources carry a
// nanotime prefix ("1712_report.md"), so callers pass the bare name.
func (r *DocumentChunkRepositoryImpl) DeleteBySource(ctx context.Context, source string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("metadata->>'source' LIKE ?", "%"+source).
		Delete(&model.DocumentChunk{})
	return res.RowsAffected, res.Error
}

// EnsureVectorDimensions compares the embedding column width against the
// configured model dimensionality. pgvector encodes the width in atttypmod,
// so a mismatch means the table was created for a different model. Existing
// vectors cannot be converted across widths; the column is rebuilt and the
// embedding consumer repopulates it on the next ingestion.
func (r *DocumentChunkRepositoryImpl) EnsureVectorDimensions(ctx context.Context, dimensions int) error {
	var current int
	err := r.db.WithContext(ctx).Raw(
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'vector_store'::regclass AND attname = 'embedding'`,
	).Scan(&current).Error
	if err != nil {
		return fmt.Errorf("inspect vector_store.embedding: %w", err)
	}

	if current == dimensions {
		return nil
	}

	r.logger.Warn("DocumentChunkRepository", "embedding column dimension mismatch, rebuilding", map[string]interface{}{
		"current":  current,
		"expected": dimensions,
	})

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM vector_store`).Error; err != nil {
			return err
		}
		alter := fmt.Sprintf(`ALTER TABLE vector_store ALTER COLUMN embedding TYPE vector(%d)`, dimensions)
		return tx.Exec(alter).Error
	})
}
