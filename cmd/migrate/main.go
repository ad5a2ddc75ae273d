package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"ai-docqa-be/internal/model"
	"ai-docqa-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	dimensions := 768
	if v, err := strconv.Atoi(os.Getenv("EMBEDDING_DIMENSIONS")); err == nil && v > 0 {
		dimensions = v
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. Pre-Migration: extensions GORM AutoMigrate does not handle
	log.Println("Step 1: Setting up Extensions...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}

	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate
	log.Println("Step 2: Running AutoMigrate...")
	if err := db.AutoMigrate(&model.DocumentChunk{}); err != nil {
		log.Fatal("Error: AutoMigrate failed:", err)
	}

	// 5. Post-Migration: make sure the vector column matches the embedding
	// model and carries an ANN index. AutoMigrate keeps an existing column
	// as-is, so a model switch needs the explicit ALTER.
	log.Println("Step 3: Verifying vector column and index...")

	postSQL := []string{
		fmt.Sprintf(`ALTER TABLE vector_store ALTER COLUMN embedding TYPE vector(%d);`, dimensions),
		`CREATE INDEX IF NOT EXISTS vector_store_embedding_idx ON vector_store USING hnsw (embedding vector_cosine_ops);`,
		`CREATE INDEX IF NOT EXISTS vector_store_source_idx ON vector_store ((metadata->>'source'));`,
	}

	for _, sql := range postSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post SQL: %v. Continuing...", err)
		}
	}

	log.Println("✅ Migration complete")
}
