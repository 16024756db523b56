package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docflash-be/internal/bootstrap"
	"docflash-be/internal/config"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/tracer"
	"docflash-be/pkg/database"
)

// worker runs only the processing pool, for deployments that scale the
// pipeline separately from the API.
func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()
	if cfg.Queue.Workers < 1 {
		cfg.Queue.Workers = 1
	}

	gormDB, err := database.Open(cfg.Database.Driver, cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	workerLogger := logger.NewIsolatedLogger(getEnv("WORKER_LOG_FILE_PATH", "logs/worker.log"))
	defer workerLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Printf("Background Consumer Error: %v", err)
	}

	log.Printf("Worker started with %d workers", cfg.Queue.Workers)
	container.WorkerPool(workerLogger).Run(ctx)
	log.Println("Worker stopped")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
