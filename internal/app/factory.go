// Package app содержит фабрику компонентов приложения.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"tourscan/internal/config"
	"tourscan/internal/external/llm"
	"tourscan/internal/external/scraper"
	"tourscan/internal/external/telegram"
	"tourscan/internal/geo"
	"tourscan/internal/infrastructure/metrics"
	"tourscan/internal/model"
	"tourscan/internal/report"
	"tourscan/internal/service"
	"tourscan/internal/storage"
	"tourscan/internal/validator"
)

// pingTimeout - сколько ждать ответа сервиса инференса при старте
const pingTimeout = 10 * time.Second

// ComponentFactory создает компоненты приложения
type ComponentFactory struct {
	config *config.Config
	logger *zap.Logger
}

// NewComponentFactory создает новую фабрику компонентов
func NewComponentFactory(config *config.Config, logger *zap.Logger) (*ComponentFactory, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &ComponentFactory{
		config: config,
		logger: logger,
	}, nil
}

// CreateDatabase создает подключение к базе данных и схему
func (f *ComponentFactory) CreateDatabase(ctx context.Context) (*storage.Postgres, error) {
	if f.config.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := storage.NewPostgres(ctx, f.config.DatabaseURL, storage.DefaultConnectOptions(), f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	f.logger.Info("Database connection created successfully")
	return db, nil
}

// CreateProviderTable создает таблицу провайдеров с учетом файла политики
func (f *ComponentFactory) CreateProviderTable() (*model.ProviderTable, error) {
	return config.NewProviderLoader(f.logger).LoadProviderTable(f.config.ProvidersFile)
}

// CreateFetcher создает загрузчик страниц
func (f *ComponentFactory) CreateFetcher() *scraper.Fetcher {
	fetcher := scraper.NewFetcher(f.config.ScraperConfig, nil, f.logger)
	f.logger.Info("Fetcher created successfully",
		zap.Duration("timeout", f.config.ScraperConfig.Timeout),
		zap.Duration("min_delay", f.config.ScraperConfig.MinDelay))
	return fetcher
}

// CreateValidator создает проверку ссылок
func (f *ComponentFactory) CreateValidator(table *model.ProviderTable) *validator.Validator {
	return validator.New(table, f.config.ProbeConfig, nil, f.logger)
}

// CreateAnalyzer создает AI анализатор. Если сервис недоступен, возвращает nil:
// прогон продолжается только с эвристиками.
func (f *ComponentFactory) CreateAnalyzer(ctx context.Context, table *model.ProviderTable) *llm.Analyzer {
	gen, err := llm.NewGenerator(ctx, f.config.LLMConfig, f.logger)
	if err != nil {
		f.logger.Warn("Failed to create inference client, AI analysis disabled", zap.Error(err))
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := gen.Ping(pingCtx); err != nil {
		f.logger.Warn("Inference service unavailable, AI analysis disabled",
			zap.String("backend", gen.Name()),
			zap.Error(err))
		return nil
	}

	f.logger.Info("Inference service available", zap.String("backend", gen.Name()))
	return llm.NewAnalyzer(gen, table, f.config.AnalyzerConfig, f.logger)
}

// CreateArchiver создает архив отчетов в S3, если бакет настроен
func (f *ComponentFactory) CreateArchiver(ctx context.Context) Archiver {
	if !f.config.S3Config.Enabled() {
		return nil
	}

	archiver, err := report.NewS3Archiver(ctx, f.config.S3Config)
	if err != nil {
		f.logger.Warn("Failed to create report archiver", zap.Error(err))
		return nil
	}
	return archiver
}

// CreateNotifier создает уведомление в Telegram, если оно настроено
func (f *ComponentFactory) CreateNotifier() telegram.Notifier {
	if !f.config.TelegramEnabled() {
		return nil
	}

	client, err := telegram.NewClient(f.config.BotToken, f.config.ChatID, f.logger)
	if err != nil {
		f.logger.Warn("Failed to create telegram client, notification disabled", zap.Error(err))
		return nil
	}
	return client
}

// CreateAppDataDirectory создает директорию данных приложения
func (f *ComponentFactory) CreateAppDataDirectory() error {
	dataDir := f.config.GetAppDataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		f.logger.Error("Failed to create app data directory", zap.String("dir", dataDir), zap.Error(err))
		return fmt.Errorf("failed to create app data directory: %w", err)
	}
	return nil
}

// CreateScanner создает полный экземпляр сканера со всеми зависимостями.
// useAI=false пропускает создание клиента инференса.
func (f *ComponentFactory) CreateScanner(ctx context.Context, useAI bool) (*Scanner, error) {
	if err := f.CreateAppDataDirectory(); err != nil {
		return nil, err
	}

	table, err := f.CreateProviderTable()
	if err != nil {
		return nil, fmt.Errorf("failed to load provider table: %w", err)
	}

	db, err := f.CreateDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	fetcher := f.CreateFetcher()
	links := scraper.NewLinkExtractor(table)
	probe := f.CreateValidator(table)
	runMetrics := metrics.NewMetrics(f.logger)

	deps := service.Deps{
		Store:      db.GetUniversityRepository(),
		Crawler:    scraper.NewSiteCrawler(fetcher, links, f.config.ScraperConfig.MaxPages, f.logger),
		Links:      links,
		Coords:     geo.NewExtractor(table),
		Validator:  probe,
		Aggregator: service.NewAggregator(table, nil),
		Metrics:    runMetrics,
	}

	var inference InferenceMetrics
	if useAI {
		if analyzer := f.CreateAnalyzer(ctx, table); analyzer != nil {
			deps.Analyzer = analyzer
			deps.Backend = string(f.config.LLMConfig.Backend)
			inference = analyzer
		}
	}

	scanner := &Scanner{
		orchestrator: service.NewOrchestrator(deps, f.logger),
		writer:       report.NewWriter(f.config.ReportDir, nil, f.logger),
		archiver:     f.CreateArchiver(ctx),
		notifier:     f.CreateNotifier(),
		metrics:      runMetrics,
		inference:    inference,
		metricsPath:  f.config.MetricsTextfile,
		aiAvailable:  deps.Analyzer != nil,
		logger:       f.logger,
		closers: []func(){
			fetcher.Close,
			probe.Close,
			func() {
				if err := db.Close(); err != nil {
					f.logger.Warn("Failed to close database", zap.Error(err))
				}
			},
		},
	}

	f.logger.Info("Scanner created successfully with all dependencies",
		zap.Bool("ai", scanner.aiAvailable),
		zap.Bool("archive", scanner.archiver != nil),
		zap.Bool("notify", scanner.notifier != nil))
	return scanner, nil
}
