package mapper

import (
	"testing"
	"time"

	"ai-docqa-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentChunkRoundTrip(t *testing.T) {
	m := NewDocumentChunkMapper()

	original := &entity.DocumentChunk{
		Id:   uuid.New(),
		Text: "星级评定标准",
		Metadata: map[string]string{
			"source":   "1712_标准.md",
			"fileType": "md",
		},
		Embedding: []float32{0.1, 0.2, 0.3},
		CreatedAt: time.Now(),
	}

	back := m.ToEntity(m.ToModel(original))
	require.NotNil(t, back)
	assert.Equal(t, original.Id, back.Id)
	assert.Equal(t, original.Text, back.Text)
	assert.Equal(t, original.Metadata, back.Metadata)
	assert.Equal(t, original.Embedding, back.Embedding)
}

func TestToModelKeepsPendingEmbeddingNull(t *testing.T) {
	m := NewDocumentChunkMapper()

	model := m.ToModel(&entity.DocumentChunk{
		Id:   uuid.New(),
		Text: "未嵌入的片段",
	})
	assert.Nil(t, model.Embedding, "pending chunks must store NULL, not a zero vector")

	back := m.ToEntity(model)
	assert.Nil(t, back.Embedding)
}

func TestMapperNilSafety(t *testing.T) {
	m := NewDocumentChunkMapper()
	assert.Nil(t, m.ToEntity(nil))
	assert.Nil(t, m.ToModel(nil))
}
