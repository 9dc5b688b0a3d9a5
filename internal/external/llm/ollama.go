package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// OllamaClient работает с контрактом POST /api/generate
type OllamaClient struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// GenerateRequest - тело запроса /api/generate
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

// GenerateOptions - параметры генерации
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// GenerateResponse - ответ /api/generate
type GenerateResponse struct {
	Response string `json:"response"`
}

// NewOllamaClient создает клиента Ollama
func NewOllamaClient(config Config, logger *zap.Logger) *OllamaClient {
	return &OllamaClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Name возвращает имя бэкенда
func (c *OllamaClient) Name() string {
	return string(BackendOllama)
}

// Generate отправляет промпт и возвращает сырой текст ответа модели
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	request := GenerateRequest{
		Model:  c.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: GenerateOptions{
			Temperature: c.config.Temperature,
			MaxTokens:   c.config.MaxTokens,
			NumPredict:  c.config.MaxTokens,
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/generate"), bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending request to inference service", zap.String("url", req.URL.String()), zap.Int("prompt_length", len(prompt)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var response GenerateResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return response.Response, nil
}

// Ping проверяет доступность сервиса через GET /api/tags
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/tags"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference service unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference service ping returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *OllamaClient) endpoint(path string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + path
}

// truncate обрезает строку по числу рун
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
