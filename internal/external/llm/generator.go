// Package llm содержит клиентов сервисов инференса и AI анализатор страниц.
package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Generator - единый контракт "сгенерировать текст по промпту" для любого бэкенда
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Ping(ctx context.Context) error
	Name() string
}

// Backend - тип сервиса инференса
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
	BackendGemini Backend = "gemini"
)

// Config конфигурация для LLM клиента
type Config struct {
	Backend     Backend
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Delay       time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultConfig возвращает конфигурацию локального Ollama
func DefaultConfig() Config {
	return Config{
		Backend:     BackendOllama,
		BaseURL:     "http://localhost:11434",
		Model:       "llama3.1",
		Timeout:     60 * time.Second,
		Temperature: 0.1,
		MaxTokens:   2000,
	}
}

// NewGenerator создает клиента выбранного бэкенда
func NewGenerator(ctx context.Context, config Config, logger *zap.Logger) (Generator, error) {
	switch config.Backend {
	case BackendOllama, "":
		return NewOllamaClient(config, logger), nil
	case BackendOpenAI:
		return NewClient(config, logger), nil
	case BackendGemini:
		client, err := NewGeminiClient(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", config.Backend)
	}
}
