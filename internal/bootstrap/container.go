package bootstrap

import (
	"context"
	"log"
	"time"

	"docflash-be/internal/config"
	"docflash-be/internal/controller"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/memory"
	"docflash-be/internal/repository/unitofwork"
	"docflash-be/internal/service"
	"docflash-be/pkg/database"
	"docflash-be/pkg/embedding"
	pktNats "docflash-be/pkg/nats"
	"docflash-be/pkg/parser"
	"docflash-be/pkg/queue"
	"docflash-be/pkg/storage"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	ReviewController   controller.IReviewController
	ExportController   controller.IExportController
	SearchController   controller.ISearchController
	QueueController    controller.IQueueController

	// Services used directly by the command line tools
	DocumentService service.IDocumentService

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	PipelineService service.IPipelineService
	TaskQueue       queue.TaskQueue

	Logger *logger.ZapLogger

	cfg     *config.Config
	rdb     *redis.Client
	natsPub *pktNats.Publisher
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Infrastructure
	store := newStorage(cfg)

	rdb := queue.NewRedisClient(cfg.Redis.URL)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	cancel()
	taskQueue := queue.NewRedisQueue(rdb, queue.RedisOptions{
		KeyPrefix:     cfg.Redis.KeyPrefix,
		RetryAttempts: cfg.Queue.RetryAttempts,
		HeartbeatTTL:  cfg.Queue.HeartbeatTTL,
		StaleAfter:    cfg.Queue.StaleAfter,
	})

	var relay service.EventRelay
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
			relay = pub
		}
	}

	embedder, err := embedding.New(embedding.Config{
		Provider:      cfg.Embedding.Provider,
		Dimension:     cfg.Embedding.Dimension,
		OllamaBaseURL: cfg.Embedding.OllamaBaseURL,
		OllamaModel:   cfg.Embedding.OllamaModel,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize embedding provider: %v", err)
	}
	log.Printf("[INFO] Using Embedding Provider: %s", cfg.Embedding.Provider)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.App.EventTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.App.EventTopic, relay, sysLogger)

	documentService := service.NewDocumentService(uowFactory, store, taskQueue, publisherService, cfg.Queue.RetryAttempts, sysLogger)
	pipelineService := service.NewPipelineService(
		uowFactory,
		store,
		taskQueue,
		publisherService,
		embedder,
		parser.NewDefaultRegistry(),
		service.PipelineOptionsFromConfig(cfg),
		sysLogger,
	)
	reviewService := service.NewReviewService(uowFactory, sysLogger)
	exportService := service.NewExportService(uowFactory, store, sysLogger)
	searchService := service.NewSearchService(uowFactory, database.SupportsVectors(db) && embedder != nil, sysLogger)
	queueService := service.NewQueueService(
		uowFactory,
		taskQueue,
		memory.NewHealthRepository(5*time.Second),
		cfg.Queue.HealthTimeout,
		cfg.Queue.RetryAttempts,
		sysLogger,
	)

	// 5. Controllers
	return &Container{
		DocumentController: controller.NewDocumentController(documentService, int64(cfg.App.MaxUploadBytes)),
		ReviewController:   controller.NewReviewController(reviewService),
		ExportController:   controller.NewExportController(exportService),
		SearchController:   controller.NewSearchController(searchService),
		QueueController:    controller.NewQueueController(queueService),

		DocumentService: documentService,
		ConsumerService: consumerService,
		PipelineService: pipelineService,
		TaskQueue:       taskQueue,
		Logger:          sysLogger,

		cfg:     cfg,
		rdb:     rdb,
		natsPub: natsPub,
	}
}

func newStorage(cfg *config.Config) storage.Storage {
	if cfg.Storage.Driver == "minio" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize MinIO storage: %v", err)
		}
		return s
	}

	s, err := storage.NewLocalStorage(cfg.Storage.LocalRoot, cfg.Storage.PublicBaseURL)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize local storage: %v", err)
	}
	return s
}

// WorkerPool builds a pool running the pipeline for queued jobs. log lets a
// dedicated worker process write to its own file.
func (c *Container) WorkerPool(log logger.ILogger) *queue.Pool {
	return queue.NewPool(
		c.TaskQueue,
		c.PipelineService.HandleJob,
		c.PipelineService.OnExhausted,
		queue.PoolOptions{
			Concurrency: c.cfg.Queue.Workers,
			PollTimeout: c.cfg.Queue.PollTimeout,
		},
		log,
	)
}

func (c *Container) Close() {
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if err := c.rdb.Close(); err != nil {
		log.Printf("[WARN] Failed to close Redis client: %v", err)
	}
	_ = c.Logger.Sync()
}
