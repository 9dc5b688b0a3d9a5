package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tourscan/internal/external/telegram"
	"tourscan/internal/report"
	"tourscan/internal/service"
)

// Archiver сохраняет копию отчета во внешнем хранилище
type Archiver interface {
	Archive(ctx context.Context, s report.Summary, content string) (string, error)
}

// Runner выполняет прогон сканирования
type Runner interface {
	ProcessAll(ctx context.Context, opts service.Options) (*service.RunResult, error)
}

// MetricsWriter сохраняет метрики прогона
type MetricsWriter interface {
	WriteTextfile(path string) error
	GetStats() map[string]interface{}
}

// InferenceMetrics отдает счетчики запросов к сервису инференса
type InferenceMetrics interface {
	GetMetrics() map[string]interface{}
}

// Scanner связывает оркестратор с публикацией результатов
type Scanner struct {
	orchestrator Runner
	writer       *report.Writer
	archiver     Archiver
	notifier     telegram.Notifier
	metrics      MetricsWriter
	inference    InferenceMetrics
	metricsPath  string
	aiAvailable  bool
	logger       *zap.Logger
	closers      []func()
}

// NewScannerWithFactory создает сканер через фабрику
func NewScannerWithFactory(ctx context.Context, factory *ComponentFactory, useAI bool) (*Scanner, error) {
	return factory.CreateScanner(ctx, useAI)
}

// Run выполняет прогон и публикует отчет.
// Ошибка возвращается только если прогон не удалось начать.
func (s *Scanner) Run(ctx context.Context, opts service.Options) (*service.RunResult, error) {
	if opts.UseAI && !s.aiAvailable {
		s.logger.Warn("AI analysis requested but unavailable, continuing with heuristics only")
		opts.UseAI = false
	}

	result, err := s.orchestrator.ProcessAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("scan run failed: %w", err)
	}

	s.publish(ctx, result)
	return result, nil
}

// publish сохраняет отчет, метрики и отправляет уведомление. Ошибки здесь не фатальны.
func (s *Scanner) publish(ctx context.Context, result *service.RunResult) {
	s.writer.Write(result.Summary, result.Report)

	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, result.Summary, result.Report)
		if err != nil {
			s.logger.Warn("Failed to archive report", zap.Error(err))
		} else {
			s.logger.Info("Report archived", zap.String("key", key))
		}
	}

	if s.metrics != nil {
		if s.metricsPath != "" {
			if err := s.metrics.WriteTextfile(s.metricsPath); err != nil {
				s.logger.Warn("Failed to write metrics", zap.Error(err))
			}
		}
		s.logger.Info("Run metrics", zap.Any("stats", s.metrics.GetStats()))
	}

	if s.inference != nil && result.Summary.UseAI {
		s.logger.Info("Inference metrics", zap.Any("stats", s.inference.GetMetrics()))
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyRun(ctx, result.Summary); err != nil {
			s.logger.Warn("Failed to send run notification", zap.Error(err))
		}
	}
}

// Close освобождает ресурсы сканера
func (s *Scanner) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.logger.Info("Scanner stopped")
}
