package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	TransportPolling = "polling"
	TransportWebhook = "webhook"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	TelegramToken string
	TransportMode string
	WebhookURL    string

	CompletionProvider string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	TranscriptionModel string
	GeminiAPIKey       string
	GeminiModel        string

	DatabaseURL string
	HTTPPort    string
	LogLevel    string
	LogFile     string

	AdminUserID   int64
	AdminAPIToken string

	HistoryWindow    int
	ReplyChunkSize   int
	SelectorPageSize int
}

// LoadConfig reads the environment (and a .env file when present) and
// validates the combination of transport and provider settings.
func LoadConfig() (*Config, error) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TransportMode: strings.ToLower(getEnv("TRANSPORT_MODE", TransportPolling)),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),

		CompletionProvider: strings.ToLower(getEnv("COMPLETION_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		TranscriptionModel: getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),

		DatabaseURL: getEnv("DATABASE_URL", "db.sqlite"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogFile:     getEnv("LOG_FILE", "latest.log"),

		AdminUserID:   getEnvAsInt64("ADMIN_USER_ID", 0),
		AdminAPIToken: getEnv("ADMIN_API_TOKEN", ""),

		HistoryWindow:    getEnvAsInt("HISTORY_WINDOW", 15),
		ReplyChunkSize:   getEnvAsInt("REPLY_CHUNK_SIZE", 4000),
		SelectorPageSize: getEnvAsInt("SELECTOR_PAGE_SIZE", 15),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required")
	}

	switch c.TransportMode {
	case TransportPolling:
	case TransportWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL environment variable is required in webhook mode")
		}
	default:
		return fmt.Errorf("unknown TRANSPORT_MODE %q", c.TransportMode)
	}

	switch c.CompletionProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable is required for the openai provider")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown COMPLETION_PROVIDER %q", c.CompletionProvider)
	}

	if c.HistoryWindow <= 0 || c.ReplyChunkSize <= 0 || c.SelectorPageSize <= 0 {
		return fmt.Errorf("HISTORY_WINDOW, REPLY_CHUNK_SIZE and SELECTOR_PAGE_SIZE must be positive")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}
