package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Pipeline  PipelineConfig
	Storage   StorageConfig
	Embedding EmbeddingConfig
	Keys      APIKeys
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	EventTopic         string
	MaxUploadBytes     int
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type RedisConfig struct {
	URL       string
	KeyPrefix string
}

type QueueConfig struct {
	Workers       int
	RetryAttempts int
	PollTimeout   time.Duration
	StaleAfter    time.Duration
	HeartbeatTTL  time.Duration
	HealthTimeout time.Duration
}

type PipelineConfig struct {
	ParseTimeout          time.Duration
	MinSegmentLength      int
	MaxSegmentLength      int
	CaptionMaxDistance    float64
	EntitySimilarity      float64
	ChapterThreshold      float64
	MaxEntitiesPerSegment int
}

type StorageConfig struct {
	Driver         string // "local" or "minio"
	LocalRoot      string
	PublicBaseURL  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

type EmbeddingConfig struct {
	Provider      string // "none", "hash" or "ollama"
	Dimension     int
	OllamaBaseURL string
	OllamaModel   string
}

type APIKeys struct {
	JWTSecret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			EventTopic:         getEnv("DOCUMENT_EVENT_TOPIC", "DOCUMENT_EVENTS"),
			MaxUploadBytes:     getEnvAsInt("MAX_UPLOAD_BYTES", 50*1024*1024),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379"),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "docflash"),
		},
		Queue: QueueConfig{
			Workers:       getEnvAsInt("QUEUE_WORKERS", 2),
			RetryAttempts: getEnvAsInt("QUEUE_RETRY_ATTEMPTS", 3),
			PollTimeout:   getEnvAsDuration("QUEUE_POLL_TIMEOUT", 5*time.Second),
			StaleAfter:    getEnvAsDuration("QUEUE_STALE_AFTER", 30*time.Minute),
			HeartbeatTTL:  getEnvAsDuration("QUEUE_HEARTBEAT_TTL", 30*time.Second),
			HealthTimeout: getEnvAsDuration("QUEUE_HEALTH_TIMEOUT", 2*time.Second),
		},
		Pipeline: PipelineConfig{
			ParseTimeout:          getEnvAsDuration("PIPELINE_PARSE_TIMEOUT", 2*time.Minute),
			MinSegmentLength:      getEnvAsInt("PIPELINE_MIN_SEGMENT_LENGTH", 20),
			MaxSegmentLength:      getEnvAsInt("PIPELINE_MAX_SEGMENT_LENGTH", 800),
			CaptionMaxDistance:    getEnvAsFloat("PIPELINE_CAPTION_MAX_DISTANCE", 120),
			EntitySimilarity:      getEnvAsFloat("PIPELINE_ENTITY_SIMILARITY", 0.85),
			ChapterThreshold:      getEnvAsFloat("PIPELINE_CHAPTER_THRESHOLD", 0.6),
			MaxEntitiesPerSegment: getEnvAsInt("PIPELINE_MAX_ENTITIES", 10),
		},
		Storage: StorageConfig{
			Driver:         getEnv("STORAGE_DRIVER", "local"),
			LocalRoot:      getEnv("STORAGE_LOCAL_ROOT", "uploads"),
			PublicBaseURL:  getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:3000/files"),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioBucket:    getEnv("MINIO_BUCKET", "docflash"),
			MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Embedding: EmbeddingConfig{
			Provider:      getEnv("EMBEDDING_PROVIDER", "hash"),
			Dimension:     getEnvAsInt("EMBEDDING_DIMENSION", 384),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_EMBEDDING_MODEL", "all-minilm"),
		},
		Keys: APIKeys{
			JWTSecret: getEnv("JWT_SECRET", ""),
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

// getEnvAsDuration accepts Go duration strings ("90s", "2m") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
