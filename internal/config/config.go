package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var DefaultPreferredModels = []string{
	"models/gemini-pro-latest",
	"models/gemini-flash-latest",
	"models/gemini-2.5-flash",
	"models/gemini-2.5-pro",
	"models/gemini-2.0-flash",
}

type Config struct {
	Port          string
	GinMode       string
	Env           string
	LogLevel      string
	PublicBaseURL string
	DataDir       string
	StaticDir     string

	DatabaseURL string
	DBMaxConns  int32

	Storage StorageConfig

	GeminiAPIKey    string
	PreferredModels []string
	RedisURL        string
	ModelCacheTTL   time.Duration

	AITimeout         time.Duration
	ImageFetchTimeout time.Duration
	UploadTimeout     time.Duration

	MaxUploadBytes       int64
	AnalyzeRatePerMinute int
}

// StorageConfig describes the S3-compatible bucket used for patient media.
// AccessKey/SecretKey are the admin credentials allowed to write objects.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Capabilities records which optional backends are configured. Absence of any
// of them is a supported degraded mode, not an error.
type Capabilities struct {
	RemoteDB      bool
	ObjectStorage bool
	AI            bool
	SharedCache   bool
}

func (c Capabilities) String() string {
	return fmt.Sprintf("remote_db=%t object_storage=%t ai=%t shared_cache=%t",
		c.RemoteDB, c.ObjectStorage, c.AI, c.SharedCache)
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	cfg := &Config{
		Port:          port,
		GinMode:       getEnv("GIN_MODE", "release"),
		Env:           getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		DataDir:       getEnv("DATA_DIR", "data"),
		StaticDir:     getEnv("STATIC_DIR", detectStaticRoot()),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    getEnv("STORAGE_BUCKET", "media"),
			UseSSL:    !strings.EqualFold(getEnv("STORAGE_USE_SSL", "true"), "false"),
			PublicURL: strings.TrimRight(os.Getenv("STORAGE_PUBLIC_URL"), "/"),
		},
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		PreferredModels: splitList(getEnv("GEMINI_PREFERRED_MODELS", strings.Join(DefaultPreferredModels, ","))),
		RedisURL:        os.Getenv("REDIS_URL"),
	}

	maxConns, err := getInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxConns = int32(maxConns)

	if cfg.ModelCacheTTL, err = getDuration("MODEL_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AITimeout, err = getDuration("AI_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ImageFetchTimeout, err = getDuration("IMAGE_FETCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.UploadTimeout, err = getDuration("UPLOAD_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	maxUploadMB, err := getInt("MAX_UPLOAD_MB", 16)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20

	if cfg.AnalyzeRatePerMinute, err = getInt("ANALYZE_RATE_PER_MINUTE", 30); err != nil {
		return nil, err
	}

	if cfg.Storage.Endpoint != "" && (cfg.Storage.AccessKey == "" || cfg.Storage.SecretKey == "") {
		return nil, fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when STORAGE_ENDPOINT is set")
	}

	return cfg, nil
}

func (c *Config) Capabilities() Capabilities {
	return Capabilities{
		RemoteDB:      c.DatabaseURL != "",
		ObjectStorage: c.Storage.Endpoint != "",
		AI:            c.GeminiAPIKey != "",
		SharedCache:   c.RedisURL != "",
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UploadsDir is where media lands when object storage is unavailable. It sits
// under the static root so the router serves it at /static/uploads.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.StaticDir, "uploads")
}

func (c *Config) LocalRecordsPath() string {
	return filepath.Join(c.DataDir, "local_records.jsonl")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// detectStaticRoot looks for a static/ directory next to the working
// directory or up to two levels above it, so `go run ./cmd/server` works from
// the repo root or from cmd/server.
func detectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "static"
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		if dirExists(filepath.Join(dir, "static")) {
			return filepath.Join(dir, "static")
		}
	}

	return filepath.Join(startDir, "static")
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
