package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go-vision-lens/pkg/models"
	"go-vision-lens/pkg/validation"
)

const (
	DefaultVisionBaseURL = "https://generativelanguage.googleapis.com"
	DefaultCacheName     = "vision-lens-v1"

	InstructionModeJSON = "json"
	InstructionModeText = "text"

	CacheBackendMemory = "memory"
	CacheBackendAzure  = "azure"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// GeminiAPIKey is optional; sessions may supply their own key at runtime.
	GeminiAPIKey     string
	VisionBaseURL    string
	VisionAPIVersion string
	DefaultModel     string
	ModelsFile       string
	Models           []models.ModelInfo
	InstructionMode  string

	ImageMaxWidth  int
	ImageMaxHeight int
	JPEGQuality    int

	AssetOrigin  string
	CacheName    string
	CacheBackend string
	Azure        AzureConfig
	Redis        RedisConfig

	SessionTTL time.Duration
	LogLevel   string
}

type AzureConfig struct {
	Account   string
	Key       string
	Container string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type modelsFile struct {
	Default string             `yaml:"default"`
	Models  []models.ModelInfo `yaml:"models"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// HasAPIKey reports whether a server-wide credential is configured
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// DefaultModels is the registry used when no MODELS_FILE is configured
func DefaultModels() []models.ModelInfo {
	return []models.ModelInfo{
		{Key: "flash", ID: "gemini-2.5-flash", Label: "Gemini Flash"},
		{Key: "pro", ID: "gemini-2.5-pro", Label: "Gemini Pro"},
	}
}

// LoadFromEnv reads .env (or ENV_FILE) into the environment, then builds
// and validates the configuration.
func LoadFromEnv() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 60*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		VisionBaseURL:    strings.TrimRight(getEnvOrDefault("VISION_BASE_URL", DefaultVisionBaseURL), "/"),
		VisionAPIVersion: getEnvOrDefault("VISION_API_VERSION", "v1"),
		DefaultModel:     getEnvOrDefault("DEFAULT_MODEL", "flash"),
		ModelsFile:       os.Getenv("MODELS_FILE"),
		Models:           DefaultModels(),
		InstructionMode:  strings.ToLower(getEnvOrDefault("INSTRUCTION_MODE", InstructionModeJSON)),

		ImageMaxWidth:  int(parseIntOrDefault("IMAGE_MAX_WIDTH", 800)),
		ImageMaxHeight: int(parseIntOrDefault("IMAGE_MAX_HEIGHT", 600)),
		JPEGQuality:    int(parseIntOrDefault("JPEG_QUALITY", 92)),

		AssetOrigin:  strings.TrimRight(os.Getenv("ASSET_ORIGIN"), "/"),
		CacheName:    getEnvOrDefault("CACHE_NAME", DefaultCacheName),
		CacheBackend: strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheBackendMemory)),
		Azure: AzureConfig{
			Account:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
			Key:       os.Getenv("AZURE_STORAGE_KEY"),
			Container: getEnvOrDefault("AZURE_CONTAINER", "offline-cache"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       int(parseIntOrDefault("REDIS_DB", 0)),
		},

		SessionTTL: parseDurationOrDefault("SESSION_TTL", 24*time.Hour),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if cfg.ModelsFile != "" {
		if err := cfg.loadModels(cfg.ModelsFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field consistency
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.AnalysisTimeout <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s, session=%s)",
			c.RequestTimeout, c.AnalysisTimeout, c.SessionTTL)
	}
	if c.ImageMaxWidth < 1 || c.ImageMaxHeight < 1 {
		return fmt.Errorf("image bounds must be >= 1 (got %dx%d)", c.ImageMaxWidth, c.ImageMaxHeight)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within 1-100 (got %d)", c.JPEGQuality)
	}

	urls := validation.NewURLValidator()
	if err := urls.ValidateOrigin(c.VisionBaseURL); err != nil {
		return fmt.Errorf("invalid VISION_BASE_URL: %w", err)
	}
	if c.AssetOrigin != "" {
		if err := urls.ValidateOrigin(c.AssetOrigin); err != nil {
			return fmt.Errorf("invalid ASSET_ORIGIN: %w", err)
		}
	}
	if strings.TrimSpace(c.VisionAPIVersion) == "" {
		return errors.New("VISION_API_VERSION must not be empty")
	}

	switch c.InstructionMode {
	case InstructionModeJSON, InstructionModeText:
	default:
		return fmt.Errorf("INSTRUCTION_MODE must be %q or %q (got %q)",
			InstructionModeJSON, InstructionModeText, c.InstructionMode)
	}

	if len(c.Models) == 0 {
		return errors.New("model registry is empty")
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if strings.TrimSpace(m.Key) == "" || strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("model entries need a key and an id (got key=%q id=%q)", m.Key, m.ID)
		}
		if seen[m.Key] {
			return fmt.Errorf("duplicate model key %q", m.Key)
		}
		seen[m.Key] = true
	}
	if !seen[c.DefaultModel] {
		return fmt.Errorf("DEFAULT_MODEL %q is not a registered model", c.DefaultModel)
	}

	if strings.TrimSpace(c.CacheName) == "" {
		return errors.New("CACHE_NAME must not be empty")
	}
	// cache names prefix blob paths and redis keys
	if strings.ContainsAny(c.CacheName, "/ ") {
		return fmt.Errorf("CACHE_NAME %q must not contain '/' or spaces", c.CacheName)
	}
	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendAzure:
		if c.Azure.Account == "" || c.Azure.Key == "" || c.Azure.Container == "" {
			return errors.New("azure cache backend requires AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_KEY and AZURE_CONTAINER")
		}
	case CacheBackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis cache backend requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	return nil
}

// loadModels replaces the registry with the contents of a YAML file. A
// default named in the file applies unless DEFAULT_MODEL is set.
func (c *Config) loadModels(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read MODELS_FILE: %w", err)
	}
	var file modelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse MODELS_FILE: %w", err)
	}
	if len(file.Models) == 0 {
		return fmt.Errorf("MODELS_FILE %s lists no models", path)
	}
	for i := range file.Models {
		if file.Models[i].Label == "" {
			file.Models[i].Label = file.Models[i].Key
		}
	}
	c.Models = file.Models
	if file.Default != "" && os.Getenv("DEFAULT_MODEL") == "" {
		c.DefaultModel = file.Default
	}
	return nil
}

func loadDotEnv() error {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load ENV_FILE: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
