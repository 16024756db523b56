package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"mime"
	"os"
	"path/filepath"

	"docflash-be/internal/bootstrap"
	"docflash-be/internal/config"
	"docflash-be/internal/dto"
	"docflash-be/pkg/database"
	"docflash-be/pkg/parser"
)

// seed uploads every supported document under a directory and queues it for
// processing, e.g. to load a course's lecture notes in one go.
func main() {
	dir := flag.String("dir", "seed", "directory to scan for documents")
	priority := flag.Bool("priority", false, "enqueue on the priority queue")
	flag.Parse()

	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	container := bootstrap.NewContainer(db, cfg)
	defer container.Close()

	ctx := context.Background()
	var queued, skipped int
	err = filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := parser.DetectFileType(path); !ok {
			skipped++
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		res, err := container.DocumentService.Upload(ctx, nil, &dto.UploadDocumentRequest{
			Filename:    filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
			Priority:    *priority,
		})
		if err != nil {
			log.Printf("Warn: %s: %v", path, err)
			skipped++
			return nil
		}

		log.Printf("Queued %s as document %s (job %s)", path, res.Id, res.JobId)
		queued++
		return nil
	})
	if err != nil {
		log.Fatal("Error: Seeding failed:", err)
	}

	log.Printf("Seeding completed: %d queued, %d skipped", queued, skipped)
}
