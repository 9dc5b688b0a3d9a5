// Package config содержит загрузку и валидацию конфигурации.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"tourscan/internal/external/llm"
	"tourscan/internal/external/scraper"
	"tourscan/internal/report"
	"tourscan/internal/validator"
)

// Config представляет конфигурацию приложения
type Config struct {
	// Database
	DatabaseURL string

	// Logging
	LogLevel string

	// App Data Directory
	AppDataDir string

	// Scraper
	ScraperConfig scraper.Config

	// Liveness probe
	ProbeConfig validator.Config

	// LLM
	LLMConfig      llm.Config
	AnalyzerConfig llm.AnalyzerConfig

	// Providers
	ProvidersFile string

	// Report
	ReportDir string
	S3Config  report.S3Config

	// Metrics
	MetricsTextfile string

	// Telegram
	BotToken string
	ChatID   int64
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	// Загружаем .env файл если он существует
	_ = godotenv.Load()

	config, err := FromEnv()
	if err != nil {
		return nil, err
	}

	// Валидация обязательных полей
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// FromEnv собирает конфигурацию из окружения без валидации
func FromEnv() (*Config, error) {
	scraperDefaults := scraper.DefaultConfig()
	probeDefaults := validator.DefaultConfig()
	llmDefaults := llm.DefaultConfig()

	chatID, err := parseChatID(getEnv("TELEGRAM_CHAT_ID", ""))
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL: getEnv("DB_DSN", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AppDataDir:  getEnv("APP_DATA_DIR", "./data"),
		ScraperConfig: scraper.Config{
			HTTPClientConfig: scraper.HTTPClientConfig{
				MaxIdleConns:          getEnvInt("SCRAPER_MAX_IDLE_CONNS", scraperDefaults.HTTPClientConfig.MaxIdleConns),
				MaxIdleConnsPerHost:   getEnvInt("SCRAPER_MAX_IDLE_CONNS_PER_HOST", scraperDefaults.HTTPClientConfig.MaxIdleConnsPerHost),
				IdleConnTimeout:       getEnvDuration("SCRAPER_IDLE_CONN_TIMEOUT", scraperDefaults.HTTPClientConfig.IdleConnTimeout),
				TLSHandshakeTimeout:   getEnvDuration("SCRAPER_TLS_HANDSHAKE_TIMEOUT", scraperDefaults.HTTPClientConfig.TLSHandshakeTimeout),
				ResponseHeaderTimeout: getEnvDuration("SCRAPER_RESPONSE_HEADER_TIMEOUT", scraperDefaults.HTTPClientConfig.ResponseHeaderTimeout),
				DisableKeepAlives:     getEnvBool("SCRAPER_DISABLE_KEEP_ALIVES", false),
			},
			Timeout:      getEnvDuration("FETCH_TIMEOUT", scraperDefaults.Timeout),
			MinDelay:     getEnvDuration("FETCH_MIN_DELAY", scraperDefaults.MinDelay),
			UserAgent:    getEnv("FETCH_USER_AGENT", scraperDefaults.UserAgent),
			MaxPages:     getEnvInt("FETCH_MAX_PAGES", scraperDefaults.MaxPages),
			MaxBodyBytes: getEnvInt("FETCH_MAX_BODY_BYTES", scraperDefaults.MaxBodyBytes),
		},
		ProbeConfig: validator.Config{
			Timeout:   getEnvDuration("PROBE_TIMEOUT", probeDefaults.Timeout),
			Pause:     getEnvDuration("PROBE_PAUSE", probeDefaults.Pause),
			UserAgent: getEnv("PROBE_USER_AGENT", probeDefaults.UserAgent),
		},
		LLMConfig: llm.Config{
			Backend:     llm.Backend(getEnv("INFERENCE_BACKEND", string(llmDefaults.Backend))),
			BaseURL:     getEnv("INFERENCE_URL", llmDefaults.BaseURL),
			APIKey:      getEnv("INFERENCE_API_KEY", ""),
			Model:       getEnv("INFERENCE_MODEL", llmDefaults.Model),
			Timeout:     getEnvDuration("INFERENCE_TIMEOUT", llmDefaults.Timeout),
			Delay:       getEnvDuration("INFERENCE_DELAY", 0),
			Temperature: getEnvFloat("INFERENCE_TEMPERATURE", llmDefaults.Temperature),
			MaxTokens:   getEnvInt("INFERENCE_MAX_TOKENS", llmDefaults.MaxTokens),
		},
		AnalyzerConfig: llm.AnalyzerConfig{
			MaxChars:      getEnvInt("AI_EXCERPT_CHARS", llm.DefaultExcerptChars),
			MinConfidence: getEnvFloat("AI_MIN_CONFIDENCE", llm.DefaultMinConfidence),
		},
		ProvidersFile: getEnv("PROVIDERS_FILE", ""),
		ReportDir:     getEnv("REPORT_DIR", "./reports"),
		S3Config: report.S3Config{
			Endpoint:        getEnv("REPORT_S3_ENDPOINT", ""),
			Region:          getEnv("REPORT_S3_REGION", ""),
			Bucket:          getEnv("REPORT_S3_BUCKET", ""),
			AccessKeyID:     getEnv("REPORT_S3_ACCESS_KEY", ""),
			SecretAccessKey: getEnv("REPORT_S3_SECRET_KEY", ""),
			Prefix:          getEnv("REPORT_S3_PREFIX", "reports"),
		},
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChatID:          chatID,
	}, nil
}

// GetAppDataDir возвращает директорию данных приложения
func (c *Config) GetAppDataDir() string {
	return c.AppDataDir
}

// TelegramEnabled сообщает, настроено ли уведомление
func (c *Config) TelegramEnabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	if c.ScraperConfig.Timeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}

	if c.ScraperConfig.MinDelay < 0 {
		return fmt.Errorf("FETCH_MIN_DELAY must not be negative")
	}

	if c.ScraperConfig.MaxPages < 1 {
		return fmt.Errorf("FETCH_MAX_PAGES must be at least 1")
	}

	if c.ScraperConfig.MaxBodyBytes <= 0 {
		return fmt.Errorf("FETCH_MAX_BODY_BYTES must be positive")
	}

	if c.ProbeConfig.Timeout <= 0 {
		return fmt.Errorf("PROBE_TIMEOUT must be positive")
	}

	if c.ProbeConfig.Pause < 0 {
		return fmt.Errorf("PROBE_PAUSE must not be negative")
	}

	switch c.LLMConfig.Backend {
	case llm.BackendOllama, llm.BackendOpenAI, llm.BackendGemini:
	default:
		return fmt.Errorf("INFERENCE_BACKEND must be one of ollama, openai, gemini, got %q", c.LLMConfig.Backend)
	}

	if c.LLMConfig.Timeout <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must be positive")
	}

	if c.AnalyzerConfig.MaxChars < 1 {
		return fmt.Errorf("AI_EXCERPT_CHARS must be at least 1")
	}

	if c.AnalyzerConfig.MinConfidence < 0 || c.AnalyzerConfig.MinConfidence > 100 {
		return fmt.Errorf("AI_MIN_CONFIDENCE must be within [0, 100]")
	}

	if c.S3Config.Enabled() && c.S3Config.Region == "" {
		return fmt.Errorf("REPORT_S3_REGION is required when REPORT_S3_BUCKET is set")
	}

	return nil
}

func parseChatID(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("TELEGRAM_CHAT_ID must be an integer: %w", err)
	}
	return id, nil
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как time.Duration
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool получает переменную окружения как bool
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения как float64
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
