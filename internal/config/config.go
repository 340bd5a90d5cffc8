package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// UploadConfig holds settings for the temporary upload store.
type UploadConfig struct {
	Dir           string
	TTL           time.Duration
	MaxFileSizeMB int
	Enabled       bool
}

// CacheConfig holds settings for the parsed-document cache.
type CacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

// ParserConfig holds settings for the built-in extraction engine.
type ParserConfig struct {
	AllowedExtensions []string
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	StorageBackend string // "local" or "minio"
	Upload         UploadConfig
	Cache          CacheConfig
	Parser         ParserConfig
	MinIO          MinIOConfig
}

// defaultExtensions mirrors the extraction engine's routing table. Overridable
// via PARSER_ALLOWED_EXTENSIONS (comma-separated, leading dots required).
var defaultExtensions = []string{
	".txt", ".md", ".log", ".csv", ".json", ".xml", ".html", ".pdf",
	".doc", ".docx", ".xls", ".xlsx",
	".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".webp",
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		Upload: UploadConfig{
			Dir:           getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "docpipe_uploads")),
			TTL:           time.Duration(getEnvInt("UPLOAD_TTL_SECONDS", 600)) * time.Second,
			MaxFileSizeMB: getEnvInt("MAX_FILE_SIZE_MB", 10),
			Enabled:       getEnvBool("ENABLE_FILE_UPLOAD", true),
		},
		Cache: CacheConfig{
			MaxSize: getEnvInt("CACHE_MAX_SIZE", 100),
			TTL:     time.Duration(getEnvInt("CACHE_TTL_SECONDS", 600)) * time.Second,
		},
		Parser: ParserConfig{
			AllowedExtensions: getEnvList("PARSER_ALLOWED_EXTENSIONS", defaultExtensions),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
