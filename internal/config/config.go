package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LogConfig controls the global zerolog setup.
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Format     string `envconfig:"LOG_FORMAT" default:"console"`
	Output     string `envconfig:"LOG_OUTPUT" default:"stdout"`
	FilePath   string `envconfig:"LOG_FILE_PATH" default:"logs/broadway.log"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"rfc3339"`
}

// LLMConfig selects and tunes the chat model provider.
type LLMConfig struct {
	Provider    string        `envconfig:"MODEL_PROVIDER" default:"openai"`
	Model       string        `envconfig:"MODEL_NAME" default:"gpt-4o-mini"`
	APIKey      string        `envconfig:"MODEL_API_KEY"`
	BaseURL     string        `envconfig:"MODEL_BASE_URL"`
	MaxTokens   int           `envconfig:"MODEL_MAX_TOKENS" default:"1500"`
	Temperature float32       `envconfig:"MODEL_TEMPERATURE" default:"0.4"`
	Timeout     time.Duration `envconfig:"MODEL_TIMEOUT" default:"30s"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Addr string `envconfig:"SERVER_ADDR" default:":8080"`
	Mode string `envconfig:"GIN_MODE" default:"release"`
}

// RedisConfig covers the optional redis-backed session registry. When
// URL is empty sessions stay in process memory.
type RedisConfig struct {
	URL        string        `envconfig:"REDIS_URL"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"40m"`
}

// Config is the full environment-driven configuration.
type Config struct {
	Log       LogConfig
	LLM       LLMConfig
	Server    ServerConfig
	Redis     RedisConfig
	Assistant AssistantConfig
}

// Load reads .env if present, then the process environment, then the
// assistant tuning file.
func Load(assistantPath string) (*Config, error) {
	_ = godotenv.Load()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %v", err)
	}

	assistant, err := LoadAssistantConfig(assistantPath)
	if err != nil {
		return nil, err
	}
	config.Assistant = *assistant

	return &config, nil
}
