package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-wide settings. It is built once at startup and
// passed into component constructors; no package reads the environment after
// Load returns.
type Config struct {
	Server    ServerConfig
	Gemini    GeminiConfig
	Piston    PistonConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Ingest    IngestConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	APIToken string // optional; when set, /api routes require bearer auth
}

type GeminiConfig struct {
	APIKey     string
	GenModel   string
	EmbedModel string
	// Timeout applies per outbound generation/embedding call.
	Timeout time.Duration
}

type PistonConfig struct {
	BaseURL string
	Timeout time.Duration
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK int
}

type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// EmbedConcurrency bounds parallel embedding calls during ingestion.
	// Kept at 1 by default so bulk ingestion stays within upstream rate limits.
	EmbedConcurrency int
	MaxUploadBytes   int64
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Gemini: GeminiConfig{
			GenModel:   "gemini-1.5-flash",
			EmbedModel: "text-embedding-004",
			Timeout:    60 * time.Second,
		},
		Piston: PistonConfig{
			BaseURL: "https://emkc.org/api/v2/piston",
			Timeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Ingest: IngestConfig{
			ChunkSize:        1000,
			ChunkOverlap:     200,
			EmbedConcurrency: 1,
			MaxUploadBytes:   9961472, // 9.5 MiB, matches the upload contract
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir + "/.sage"
	}
	return "./.sage"
}

// Load reads configuration from a .env file (if present) and SAGE_* / GEMINI_*
// environment variables layered over defaults. The Gemini API key is the only
// required value.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(os.LookupEnv)
}

func loadWith(lookup func(string) (string, bool)) (Config, error) {
	cfg := defaults()

	env := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	if v := env("SAGE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	applyInt(env("SAGE_PORT"), &cfg.Server.Port)
	if v := env("SAGE_API_TOKEN"); v != "" {
		cfg.Server.APIToken = v
	}

	if v := env("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := env("SAGE_GEN_MODEL"); v != "" {
		cfg.Gemini.GenModel = v
	}
	if v := env("SAGE_EMBED_MODEL"); v != "" {
		cfg.Gemini.EmbedModel = v
	}
	applyDuration(env("SAGE_GEMINI_TIMEOUT"), &cfg.Gemini.Timeout)

	if v := env("SAGE_PISTON_URL"); v != "" {
		cfg.Piston.BaseURL = v
	}
	applyDuration(env("SAGE_PISTON_TIMEOUT"), &cfg.Piston.Timeout)

	if v := env("SAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	applyInt(env("SAGE_TOP_K"), &cfg.Retrieval.TopK)
	applyInt(env("SAGE_CHUNK_SIZE"), &cfg.Ingest.ChunkSize)
	applyInt(env("SAGE_CHUNK_OVERLAP"), &cfg.Ingest.ChunkOverlap)
	applyInt(env("SAGE_EMBED_CONCURRENCY"), &cfg.Ingest.EmbedConcurrency)

	if v := env("SAGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("missing required config: Gemini API key (set GEMINI_API_KEY)")
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top-K must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Ingest.EmbedConcurrency <= 0 {
		return fmt.Errorf("embed concurrency must be positive, got %d", c.Ingest.EmbedConcurrency)
	}
	return nil
}

func applyInt(s string, dst *int) {
	if s == "" {
		return
	}
	if v, err := strconv.Atoi(s); err == nil {
		*dst = v
	}
}

func applyDuration(s string, dst *time.Duration) {
	if s == "" {
		return
	}
	if v, err := time.ParseDuration(s); err == nil {
		*dst = v
	}
}
