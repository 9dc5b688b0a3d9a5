// Package validator проверяет ссылки на туры: синтаксис, домен провайдера,
// координаты и живость через HEAD запрос.
package validator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"tourscan/internal/model"
)

// DefaultUserAgent - описательный идентификатор для проверок живости
const DefaultUserAgent = "TourScanBot/1.0 (+university virtual tour link checker)"

// Config - параметры проверки живости
type Config struct {
	Timeout   time.Duration
	Pause     time.Duration
	UserAgent string
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		Timeout:   5 * time.Second,
		Pause:     500 * time.Millisecond,
		UserAgent: DefaultUserAgent,
	}
}

// Sleeper - пауза между проверками, подменяется в тестах
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Validator проверяет ссылки кандидатов
type Validator struct {
	table   *model.ProviderTable
	config  Config
	client  *http.Client
	sleeper Sleeper
	logger  *zap.Logger
}

// New создает валидатор. sleeper может быть nil.
func New(table *model.ProviderTable, config Config, sleeper Sleeper, logger *zap.Logger) *Validator {
	if table == nil {
		table = model.DefaultProviderTable()
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}

	return &Validator{
		table:  table,
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			// Редирект - тоже ответ провайдера, следовать за ним не нужно
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sleeper: sleeper,
		logger:  logger,
	}
}

// Validate проверяет одного кандидата. Ошибка возвращается в поле Error, а не паникой.
func (v *Validator) Validate(ctx context.Context, candidate model.TourCandidate) model.LinkValidationResult {
	result := model.LinkValidationResult{
		URL:       strings.TrimSpace(candidate.URL),
		Provider:  candidate.Provider,
		Latitude:  candidate.Latitude,
		Longitude: candidate.Longitude,
		Address:   candidate.Address,
	}

	if result.Provider == "" {
		if detected, ok := v.table.Detect(result.URL); ok {
			result.Provider = detected
		}
	}

	source := &model.TourSource{URL: result.URL, Latitude: result.Latitude, Longitude: result.Longitude}
	if errs := CheckSource(v.table, result.Provider, source); errs.HasErrors() {
		result.Error = errs[0].Error()
		return result
	}

	spec, _ := v.table.Spec(result.Provider)
	status, err := v.probe(ctx, result.URL)
	result.StatusCode = status
	if err != nil {
		result.Error = err.Error()
		v.logger.Debug("Liveness probe failed",
			zap.String("url", result.URL),
			zap.String("provider", result.Provider.String()),
			zap.Error(err))
		return result
	}

	if !spec.AcceptsStatus(status) {
		result.Error = fmt.Sprintf("liveness probe returned status %d", status)
		return result
	}

	result.Valid = true
	v.logger.Debug("Link is alive",
		zap.String("url", result.URL),
		zap.String("provider", result.Provider.String()),
		zap.Int("status", status))
	return result
}

// ValidateLinks проверяет кандидатов по очереди с паузой между запросами.
// Сбой одной ссылки не останавливает остальные.
func (v *Validator) ValidateLinks(ctx context.Context, candidates []model.TourCandidate) []model.LinkValidationResult {
	results := make([]model.LinkValidationResult, 0, len(candidates))
	for i, candidate := range candidates {
		if i > 0 {
			if err := v.sleeper.Sleep(ctx, v.config.Pause); err != nil {
				results = append(results, model.LinkValidationResult{
					URL:      candidate.URL,
					Provider: candidate.Provider,
					Error:    "validation cancelled: " + err.Error(),
				})
				continue
			}
		}
		results = append(results, v.Validate(ctx, candidate))
	}
	return results
}

// FilterValidLinks оставляет только живые ссылки
func FilterValidLinks(results []model.LinkValidationResult) []model.LinkValidationResult {
	valid := make([]model.LinkValidationResult, 0, len(results))
	for _, r := range results {
		if r.Valid {
			valid = append(valid, r)
		}
	}
	return valid
}

// CheckSource - проверка слота без сети: URL, схема, домен провайдера, координаты
func CheckSource(table *model.ProviderTable, provider model.TourProvider, source *model.TourSource) model.ValidationErrors {
	var errs model.ValidationErrors
	if source == nil || strings.TrimSpace(source.URL) == "" {
		return append(errs, model.ValidationError{Field: "url", Message: "url is required"})
	}

	u, err := url.Parse(strings.TrimSpace(source.URL))
	if err != nil {
		return append(errs, model.ValidationError{Field: "url", Message: "invalid URL: " + err.Error()})
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return append(errs, model.ValidationError{Field: "url", Message: fmt.Sprintf("unsupported URL scheme %q", u.Scheme)})
	}
	if u.Host == "" {
		return append(errs, model.ValidationError{Field: "url", Message: "URL has no host"})
	}

	spec, ok := table.Spec(provider)
	if !ok {
		return append(errs, model.ValidationError{Field: "provider", Message: fmt.Sprintf("unknown provider %q", provider)})
	}
	if !spec.MatchesHost(u) {
		return append(errs, model.ValidationError{Field: "url", Message: fmt.Sprintf("host %s is not allowed for provider %s", u.Hostname(), provider)})
	}

	return append(errs, model.ValidateCoordinatePair("", source.Latitude, source.Longitude)...)
}

// probe выполняет HEAD запрос и возвращает код ответа
func (v *Validator) probe(ctx context.Context, rawURL string) (int, error) {
	if v.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", v.config.UserAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return 0, fmt.Errorf("liveness probe timed out after %s", v.config.Timeout)
		}
		return 0, fmt.Errorf("liveness probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// Close закрывает простаивающие соединения
func (v *Validator) Close() {
	v.client.CloseIdleConnections()
}
