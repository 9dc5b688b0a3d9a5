// Package telegram содержит интеграцию с Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tourscan/internal/report"
)

// maxFailedInMessage - сколько неудачных университетов перечислять в сообщении
const maxFailedInMessage = 10

// Client отправляет итог прогона в чат
type Client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewClient создает клиент Telegram
func NewClient(botToken string, chatID int64, logger *zap.Logger) (*Client, error) {
	return NewClientWithEndpoint(botToken, chatID, tgbotapi.APIEndpoint, &http.Client{}, logger)
}

// NewClientWithEndpoint создает клиент с другим адресом API (self-hosted Bot API, тесты)
func NewClientWithEndpoint(botToken string, chatID int64, endpoint string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if botToken == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false
	logger.Info("Telegram bot created", zap.String("username", bot.Self.UserName))

	return &Client{bot: bot, chatID: chatID, logger: logger}, nil
}

// NotifyRun отправляет сводку прогона
func (c *Client) NotifyRun(ctx context.Context, summary report.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.SendMessage(FormatSummary(summary))
}

// SendMessage отправляет сообщение
func (c *Client) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := c.bot.Send(msg); err != nil {
		c.logger.Error("Failed to send message", zap.Int64("chat_id", c.chatID), zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// FormatSummary форматирует сводку прогона в текст сообщения
func FormatSummary(s report.Summary) string {
	var b strings.Builder

	status := "✅"
	if s.Failed > 0 {
		status = "⚠️"
	}
	fmt.Fprintf(&b, "%s Поиск виртуальных туров %s\n", status, s.StartedAt.Format("02.01.2006"))
	fmt.Fprintf(&b, "Обработано: %d, успешно: %d, с ошибкой: %d, пропущено: %d\n", s.Processed, s.Succeeded, s.Failed, s.Skipped)

	failed := s.FailedOutcomes()
	if len(failed) == 0 {
		return b.String()
	}

	b.WriteString("\nОшибки:\n")
	for i, o := range failed {
		if i == maxFailedInMessage {
			fmt.Fprintf(&b, "... и еще %d\n", len(failed)-maxFailedInMessage)
			break
		}
		fmt.Fprintf(&b, "• %s: %s\n", o.UniversityName, o.Error)
	}
	return b.String()
}
