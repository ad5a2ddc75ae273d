package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/repository/contract"
	"ai-docqa-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService embeds uploaded chunks asynchronously. Upload stores chunks
// with a NULL embedding and publishes one message per document; this consumer
// generates the vectors and fills them in. Search skips unembedded rows, so a
// document becomes queryable chunk by chunk as the consumer progresses.
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	chunkRepository   contract.DocumentChunkRepository
	embeddingProvider embedding.EmbeddingProvider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	chunkRepository contract.DocumentChunkRepository,
	embeddingProvider embedding.EmbeddingProvider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		chunkRepository:   chunkRepository,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedChunksMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal embed message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Embedding chunks for document: %s", payload.Source)

	pending, err := cs.chunkRepository.FindPendingBySource(ctx, payload.Source)
	if err != nil {
		log.Printf("[ERROR] Failed to load pending chunks for %s: %v", payload.Source, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if len(pending) == 0 {
		// Document deleted or already embedded.
		msg.Ack()
		return
	}

	embedded := 0
	for _, chunk := range pending {
		resp, err := cs.embeddingProvider.Generate(chunk.Text, embedding.TaskTypeDocument)
		if err != nil {
			log.Printf("[ERROR] Failed to embed chunk %s of %s: %v", chunk.Id, payload.Source, err)
			continue
		}
		if err := cs.chunkRepository.UpdateEmbedding(ctx, chunk.Id, resp.Embedding.Values); err != nil {
			log.Printf("[ERROR] Failed to store embedding for chunk %s: %v", chunk.Id, err)
			continue
		}
		embedded++
	}

	if embedded < len(pending) {
		log.Printf("[WARN] Embedded %d/%d chunks for %s, remainder will be retried", embedded, len(pending), payload.Source)
		msg.Nack() // Re-deliver so failed chunks get another pass
		return
	}

	log.Printf("[INFO] Embedded %d chunks for %s", embedded, payload.Source)
	msg.Ack()
}
