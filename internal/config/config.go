package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	UploadDir          string
	EmbedTopic         string // chunk-embedding pubsub topic
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	OllamaBaseURL       string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingAutoPull   bool
	PullTimeoutSeconds  int
	LLMModel            string
}

// RetrievalConfig tunes the hybrid retrieval pipeline. Defaults mirror the
// production tuning; see pkg/rag/retrieve for the effect of each knob.
type RetrievalConfig struct {
	TopK              int     // base per-query result bound (default 20)
	Threshold         float64 // base similarity floor (default 0.25)
	ExpansionEnabled  bool    // multi-query expansion (default true)
	RerankEnabled     bool    // fusion + rerank + hybrid rescore (default true)
	PositionWeight    float64 // composite rerank position weight (default 0.2)
	DiversityWeight   float64 // composite rerank diversity weight (default 0.15)
	CoverageWeight    float64 // composite rerank coverage weight (default 0.15)
	LexicalWeight     float64 // lexical share of hybrid rescore (default 0.35)
	MaxDocuments      int     // final selection size bound (default 15)
	MaxPerSource      int     // per-source admission cap (default 4)
	MinSourceCoverage int     // distinct-source target (default 2)
}

type SessionConfig struct {
	SnapshotPath string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8080"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
			EmbedTopic:         getEnv("EMBED_CHUNKS_TOPIC_NAME", "EMBED_DOCUMENT_CHUNKS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbeddingModel:      getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			EmbeddingAutoPull:   getEnvAsBool("EMBEDDING_AUTO_PULL", true),
			PullTimeoutSeconds:  getEnvAsInt("EMBEDDING_PULL_TIMEOUT_SECONDS", 300),
			LLMModel:            getEnv("LLM_MODEL", "qwen2.5"),
		},
		Retrieval: RetrievalConfig{
			TopK:              getEnvAsInt("RAG_SEARCH_TOPK", 20),
			Threshold:         getEnvAsFloat("RAG_SEARCH_THRESHOLD", 0.25),
			ExpansionEnabled:  getEnvAsBool("RAG_EXPANSION_ENABLED", true),
			RerankEnabled:     getEnvAsBool("RAG_RERANK_ENABLED", true),
			PositionWeight:    getEnvAsFloat("RAG_RERANK_POSITION_WEIGHT", 0.2),
			DiversityWeight:   getEnvAsFloat("RAG_RERANK_DIVERSITY_WEIGHT", 0.15),
			CoverageWeight:    getEnvAsFloat("RAG_RERANK_COVERAGE_WEIGHT", 0.15),
			LexicalWeight:     getEnvAsFloat("RAG_HYBRID_LEXICAL_WEIGHT", 0.35),
			MaxDocuments:      getEnvAsInt("RAG_MAX_DOCUMENTS", 15),
			MaxPerSource:      getEnvAsInt("RAG_MAX_PER_SOURCE", 4),
			MinSourceCoverage: getEnvAsInt("RAG_MIN_SOURCE_COVERAGE", 2),
		},
		Session: SessionConfig{
			SnapshotPath: getEnv("SESSION_SNAPSHOT_PATH", "uploads/sessions.json"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
