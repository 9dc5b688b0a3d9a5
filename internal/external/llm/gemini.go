package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient работает с Gemini API через официальный SDK
type GeminiClient struct {
	client *genai.Client
	config Config
	logger *zap.Logger
}

// NewGeminiClient создает клиента Gemini. Требует API ключ.
func NewGeminiClient(ctx context.Context, config Config, logger *zap.Logger) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Model == "" || config.Model == DefaultConfig().Model {
		config.Model = "gemini-2.5-flash"
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" && config.BaseURL != DefaultConfig().BaseURL {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, config: config, logger: logger}, nil
}

// Name возвращает имя бэкенда
func (c *GeminiClient) Name() string {
	return string(BackendGemini)
}

// Generate отправляет промпт и возвращает текст первого кандидата
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	c.logger.Debug("Sending request to Gemini", zap.String("model", c.config.Model), zap.Int("prompt_length", len(prompt)))

	resp, err := c.client.Models.GenerateContent(ctx,
		c.config.Model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(c.config.Temperature)),
			MaxOutputTokens:  int32(c.config.MaxTokens),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	return resp.Text(), nil
}

// Ping проверяет, что модель доступна по ключу
func (c *GeminiClient) Ping(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.config.Model, nil); err != nil {
		return fmt.Errorf("gemini model %s unavailable: %w", c.config.Model, err)
	}
	return nil
}
