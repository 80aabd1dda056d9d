package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Engine names accepted in STT_ENGINE.
const (
	EngineWhisperCLI = "whispercli"
	EngineOpenAI     = "openai"
)

type Config struct {
	Port        string
	UploadDir   string
	MaxUploadMB int64

	Engine         string
	Model          string
	ModelDir       string
	WhisperCLIPath string
	Language       string
	EngineTimeout  time.Duration

	OpenAIKey   string
	OpenAIModel string

	LogJSON    bool
	LogVerbose bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB:    getEnvInt64("MAX_UPLOAD_MB", 50),
		Engine:         strings.ToLower(getEnv("STT_ENGINE", EngineWhisperCLI)),
		Model:          getEnv("WHISPER_MODEL", "base"),
		ModelDir:       getEnv("WHISPER_MODEL_DIR", "models"),
		WhisperCLIPath: os.Getenv("WHISPER_CLI_PATH"),
		Language:       os.Getenv("STT_LANGUAGE"),
		EngineTimeout:  getEnvDuration("ENGINE_TIMEOUT", 5*time.Minute),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_STT_MODEL", "whisper-1"),
		LogJSON:        getEnvBool("LOG_JSON", false),
		LogVerbose:     getEnvBool("LOG_DEBUG", false),
	}

	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}

	switch cfg.Engine {
	case EngineWhisperCLI:
	case EngineOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when STT_ENGINE=openai. Please set it as environment variable:\n  Windows PowerShell: $env:OPENAI_API_KEY=\"your_key\"\n  Windows CMD: set OPENAI_API_KEY=your_key\n  Linux/Mac: export OPENAI_API_KEY=\"your_key\"")
		}
	default:
		return nil, fmt.Errorf("unsupported STT_ENGINE: %s. Supported: %s, %s", cfg.Engine, EngineWhisperCLI, EngineOpenAI)
	}

	return cfg, nil
}

// MaxUploadBytes returns the request body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
