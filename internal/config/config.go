// Package config collects everything the service reads from the
// environment into one explicit struct, loaded once in main and
// passed down. Nothing else in the repo touches os.Getenv.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAddr          = ":8080"
	defaultBucket        = "item-scans"
	defaultVisionTimeout = 60 * time.Second
)

type Config struct {
	Addr string

	// GeminiAPIKey is mandatory for scans. The server still starts
	// without it and reports the problem per request, so a
	// misconfigured deploy is visible instead of crash-looping.
	GeminiAPIKey  string
	VisionTimeout time.Duration

	// Optional enrichment credentials. The SerpApi key and the MinIO
	// endpoint must both be set for the reverse image search chain to
	// run; otherwise scans return empty web results.
	SerpAPIKey     string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load reads an optional .env file, then the environment. Missing
// optional values are fine and not an error.
func Load() Config {
	// The file may not exist; that is fine.
	_ = godotenv.Load()

	cfg := Config{
		Addr:           getEnv("ADDR", defaultAddr),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		VisionTimeout:  defaultVisionTimeout,
		SerpAPIKey:     os.Getenv("SERPAPI_KEY"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", defaultBucket),
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	}

	if v := os.Getenv("VISION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.VisionTimeout = d
		}
	}

	return cfg
}

// Enrichment reports whether the optional reverse image search chain
// is configured. Absence of either credential silently disables it.
func (c Config) Enrichment() bool {
	return c.SerpAPIKey != "" && c.MinioEndpoint != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
