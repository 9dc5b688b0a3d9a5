// Package storage содержит работу с базой данных.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"

	"tourscan/internal/model"
	"tourscan/internal/storage/repository"
)

// Postgres представляет подключение к PostgreSQL
type Postgres struct {
	db     *bun.DB
	logger *zap.Logger
}

// ConnectOptions - параметры подключения
type ConnectOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	SearchPath string
}

// DefaultConnectOptions возвращает параметры по умолчанию
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{MaxRetries: 5, RetryDelay: 3 * time.Second, SearchPath: "public"}
}

// NewPostgres создает новое подключение к PostgreSQL с retry логикой
func NewPostgres(ctx context.Context, databaseURL string, opts ConnectOptions, logger *zap.Logger) (*Postgres, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		logger.Info("Attempting to connect to database",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", opts.MaxRetries))

		db := Open(databaseURL)

		if opts.SearchPath != "" {
			setCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := db.ExecContext(setCtx, "SET search_path TO "+opts.SearchPath)
			cancel()
			if err != nil {
				logger.Warn("Failed to set search_path", zap.Error(err))
			}
		}

		// Добавляем отладку в режиме разработки
		if logger.Core().Enabled(zap.DebugLevel) {
			db.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
				bundebug.FromEnv("BUNDEBUG"),
			))
		}

		pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
		lastErr = db.PingContext(pingCtx)
		pingCancel()

		if lastErr == nil {
			logger.Info("Connected to PostgreSQL database with Bun ORM", zap.Int("attempt", attempt))
			return &Postgres{db: db, logger: logger}, nil
		}

		logger.Warn("Failed to connect to database",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database connection", zap.Error(err))
		}

		if attempt < opts.MaxRetries {
			logger.Info("Retrying connection", zap.Duration("delay", opts.RetryDelay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", opts.MaxRetries, lastErr)
}

// Open создает bun.DB без проверки соединения
func Open(databaseURL string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(databaseURL)))

	// Настраиваем пул соединений
	sqldb.SetMaxOpenConns(10)
	sqldb.SetMaxIdleConns(5)
	sqldb.SetConnMaxLifetime(5 * time.Minute)
	sqldb.SetConnMaxIdleTime(1 * time.Minute)

	return bun.NewDB(sqldb, pgdialect.New())
}

// EnsureSchema создает таблицы, если их нет
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	models := []interface{}{
		(*model.University)(nil),
		(*model.UniversityTour)(nil),
	}
	for _, m := range models {
		if _, err := p.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close закрывает соединение с базой данных
func (p *Postgres) Close() error {
	return p.db.Close()
}

// GetUniversityRepository возвращает репозиторий университетов и туров
func (p *Postgres) GetUniversityRepository() *repository.UniversityRepository {
	return repository.NewUniversityRepository(p.db, p.logger)
}
