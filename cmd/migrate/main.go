package main

import (
	"log"

	"docflash-be/internal/config"
	"docflash-be/internal/model"
	"docflash-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Printf("Running migration on %s...", db.Dialector.Name())
	if err := database.Migrate(db, model.All()...); err != nil {
		log.Fatal("Error: Migration failed:", err)
	}

	if db.Dialector.Name() == database.DriverPostgres {
		// pgvector index for cosine similarity; ivfflat needs rows to train, hnsw does not
		stmt := `CREATE INDEX IF NOT EXISTS idx_knowledge_embedding ON knowledge USING hnsw (embedding vector_cosine_ops)`
		if err := db.Exec(stmt).Error; err != nil {
			log.Printf("Warn: Failed to create vector index: %v", err)
		}
	}

	log.Println("Migration completed")
}
