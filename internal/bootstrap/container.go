package bootstrap

import (
	"context"
	"log"
	"os"
	"time"

	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/controller"
	"ai-docqa-be/internal/mapper"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/repository/implementation"
	"ai-docqa-be/internal/search"
	"ai-docqa-be/internal/service"
	"ai-docqa-be/pkg/embedding"
	llmOllama "ai-docqa-be/pkg/llm/ollama"
	"ai-docqa-be/pkg/rag/expand"
	"ai-docqa-be/pkg/rag/rerank"
	"ai-docqa-be/pkg/rag/retrieve"
	"ai-docqa-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	SessionController  controller.ISessionController
	QueryController    controller.IQueryController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	embeddingProvider := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)

	pullTimeout := time.Duration(cfg.Ai.PullTimeoutSeconds) * time.Second
	if err := embeddingProvider.EnsureModelReady(context.Background(), cfg.Ai.EmbeddingAutoPull, pullTimeout); err != nil {
		log.Printf("[WARN] Embedding model not ready: %v (ingestion will fail until it is pulled)", err)
	}

	llmProvider := llmOllama.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.LLMModel)
	log.Printf("[INFO] Using LLM Provider: OLLAMA (%s)", cfg.Ai.LLMModel)

	// 4. Persistence
	chunkMapper := mapper.NewDocumentChunkMapper()
	chunkRepository := implementation.NewDocumentChunkRepository(db, chunkMapper, sysLogger)

	if err := chunkRepository.EnsureVectorDimensions(context.Background(), cfg.Ai.EmbeddingDimensions); err != nil {
		log.Printf("[WARN] Could not verify vector column dimensions: %v", err)
	}

	sessionStore := store.NewSessionStore(
		cfg.Session.SnapshotPath,
		log.New(os.Stdout, "[SESSION] ", log.LstdFlags),
	)

	// 5. Retrieval Pipeline
	ragLogger := initRagLogger()
	searcher := search.NewPgvectorSearcher(chunkRepository, embeddingProvider, sysLogger)
	expander := expand.NewExpander(expand.DefaultSynonyms(), expand.DefaultStopwords())
	reranker := rerank.NewReranker(rerank.Weights{
		Position:  cfg.Retrieval.PositionWeight,
		Diversity: cfg.Retrieval.DiversityWeight,
		Coverage:  cfg.Retrieval.CoverageWeight,
	})

	retrievalCfg := retrieve.DefaultConfig()
	retrievalCfg.TopK = cfg.Retrieval.TopK
	retrievalCfg.Threshold = cfg.Retrieval.Threshold
	retrievalCfg.ExpansionEnabled = cfg.Retrieval.ExpansionEnabled
	retrievalCfg.RerankEnabled = cfg.Retrieval.RerankEnabled
	retrievalCfg.LexicalWeight = cfg.Retrieval.LexicalWeight
	retrievalCfg.MaxDocuments = cfg.Retrieval.MaxDocuments
	retrievalCfg.MaxPerSource = cfg.Retrieval.MaxPerSource
	retrievalCfg.MinSourceCoverage = cfg.Retrieval.MinSourceCoverage

	orchestrator := retrieve.NewOrchestrator(searcher, expander, reranker, retrievalCfg, ragLogger)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.App.EmbedTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.EmbedTopic,
		chunkRepository,
		embeddingProvider,
	)

	documentService := service.NewDocumentService(chunkRepository, publisherService, cfg.App.UploadDir, sysLogger)
	sessionService := service.NewSessionService(sessionStore)
	queryService := service.NewQueryService(orchestrator, llmProvider, sessionStore, sysLogger)

	// 7. Controllers
	return &Container{
		DocumentController: controller.NewDocumentController(documentService),
		SessionController:  controller.NewSessionController(sessionService),
		QueryController:    controller.NewQueryController(queryService),

		ConsumerService: consumerService,
	}
}

// initRagLogger keeps retrieval traces out of the main log; every expanded
// query and fusion pass is written here for tuning.
func initRagLogger() *log.Logger {
	logPath := "logs/retrieval.log"
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[RAG] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
