package telegram

import (
	"context"

	"tourscan/internal/report"
)

// Notifier определяет интерфейс для уведомления об итогах прогона
type Notifier interface {
	NotifyRun(ctx context.Context, summary report.Summary) error
}

var _ Notifier = (*Client)(nil)
