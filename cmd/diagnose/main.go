package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/mapper"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/repository/implementation"
	"ai-docqa-be/internal/search"
	"ai-docqa-be/pkg/database"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/rag/expand"
	"ai-docqa-be/pkg/rag/rerank"
	"ai-docqa-be/pkg/rag/retrieve"
	"ai-docqa-be/pkg/store"

	"github.com/fatih/color"
)

// Retrieval diagnostic: runs the full pipeline for one question and prints
// what each stage produced. Usage:
//
//	go run ./cmd/diagnose "酒店星级有哪些评定标准"
func main() {
	if len(os.Args) < 2 {
		color.Red("usage: diagnose <question> [sourceFile ...]")
		os.Exit(1)
	}
	question := os.Args[1]
	sourceFiles := os.Args[2:]

	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		color.Red("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)
	chunkRepository := implementation.NewDocumentChunkRepository(db, mapper.NewDocumentChunkMapper(), sysLogger)
	embeddingProvider := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	searcher := search.NewPgvectorSearcher(chunkRepository, embeddingProvider, sysLogger)

	expander := expand.NewExpander(expand.DefaultSynonyms(), expand.DefaultStopwords())
	reranker := rerank.NewReranker(rerank.DefaultWeights())
	orchestrator := retrieve.NewOrchestrator(
		searcher,
		expander,
		reranker,
		retrieve.DefaultConfig(),
		log.New(os.Stdout, "[RAG] ", log.LstdFlags),
	)

	color.Cyan("🔍 Diagnosing retrieval for: %s\n", question)

	// Stage 1: expansion
	color.Yellow("\n[1] Query expansion")
	queries := expander.Expand(question)
	for i, q := range queries {
		fmt.Printf("  %d. %-40s (weight %.1f)\n", i+1, q, expander.Importance(q, question))
	}

	// Stage 2: full pipeline
	color.Yellow("\n[2] Retrieval pipeline")
	chunks, err := orchestrator.Retrieve(context.Background(), question, retrieve.Options{
		SourceFiles: sourceFiles,
	})
	if err != nil {
		color.Red("Retrieve failed: %v", err)
		os.Exit(1)
	}

	if len(chunks) == 0 {
		color.Red("No chunks retrieved. Is anything ingested and embedded?")
		os.Exit(0)
	}

	color.Green("Retrieved %d chunks from %d sources", len(chunks), distinctSources(chunks))
	for i, c := range chunks {
		fmt.Printf("\n  #%d  score=%.4f  source=%s\n", i+1, c.Score, retrieve.ReadableFileName(c.Source()))
		fmt.Printf("      %s\n", preview(c.Text, 120))
	}

	// Stage 3: citations
	color.Yellow("\n[3] Citations")
	for _, cit := range retrieve.Citations(chunks) {
		fmt.Printf("  [%d] %s: %s\n", cit.Index, cit.Source, preview(cit.Snippet, 80))
	}
}

func distinctSources(chunks []store.Chunk) int {
	seen := map[string]bool{}
	for _, c := range chunks {
		seen[c.Source()] = true
	}
	return len(seen)
}

func preview(text string, limit int) string {
	normalized := strings.Join(strings.Fields(text), " ")
	runes := []rune(normalized)
	if len(runes) <= limit {
		return normalized
	}
	return string(runes[:limit]) + "..."
}
