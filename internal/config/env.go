package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	RedisURL     string
	AIAPIKey     string
	EmbedModel   string
	EmbedDim     int
	GenModel     string
	JWTSecret    string
	Port         string

	// Ingestion pipeline knobs.
	ChunkSize          int
	ChunkOverlap       int
	EmbedBatchSize     int
	EmbedMaxConcurrent int
	EmbedMaxRetries    int
	EmbedRateLimit     float64 // provider requests per second; 0 disables throttling
	IngestWorkers      int
	ProcessingTimeout  time.Duration

	// Retrieval knobs.
	TopK          int
	MinSimilarity float64
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "syntra-sources"),
		RedisURL:     getEnv("REDIS_URL", ""),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:     getEnvInt("EMBED_DIM", 1536),
		GenModel:     getEnv("GEN_MODEL", "gemini-1.5-flash"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		Port:         getEnv("PORT", "8080"),

		ChunkSize:          getEnvInt("CHUNK_SIZE", 512),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 100),
		EmbedBatchSize:     getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedMaxConcurrent: getEnvInt("EMBED_MAX_CONCURRENT", 3),
		EmbedMaxRetries:    getEnvInt("EMBED_MAX_RETRIES", 3),
		EmbedRateLimit:     getEnvFloat("EMBED_RATE_LIMIT", 10),
		IngestWorkers:      getEnvInt("INGEST_WORKERS", 4),
		ProcessingTimeout:  time.Duration(getEnvInt("PROCESSING_TIMEOUT_MINUTES", 15)) * time.Minute,

		TopK:          getEnvInt("RETRIEVAL_TOP_K", 5),
		MinSimilarity: getEnvFloat("RETRIEVAL_MIN_SIMILARITY", 0.7),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a number, using default %g", key, v, def)
		return def
	}
	return f
}
