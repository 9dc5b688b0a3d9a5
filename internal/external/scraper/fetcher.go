package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Fetcher загружает HTML страниц с соблюдением паузы между запросами к одному домену
type Fetcher struct {
	config    Config
	logger    *zap.Logger
	transport *http.Transport
	limiter   *DomainLimiter
}

// NewFetcher создает новый экземпляр Fetcher.
// limiter может быть nil - тогда создается лимитер на системных часах.
func NewFetcher(config Config, limiter *DomainLimiter, logger *zap.Logger) *Fetcher {
	if limiter == nil {
		limiter = NewDomainLimiter(config.MinDelay, RealClock())
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Fetcher{
		config:    config,
		logger:    logger,
		transport: NewTransport(config.HTTPClientConfig),
		limiter:   limiter,
	}
}

// newCollector создает Colly коллектор для одного запроса.
// Тело читается на байт больше лимита, чтобы отличить усеченный ответ от полного.
func (f *Fetcher) newCollector(ctx context.Context) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.StdlibContext(ctx),
		colly.MaxBodySize(f.config.MaxBodyBytes+1),
	)

	collector.WithTransport(f.transport)
	if f.config.Timeout > 0 {
		collector.SetRequestTimeout(f.config.Timeout)
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "ru-RU,ru;q=0.9,kk;q=0.8,en;q=0.7")
		f.logger.Debug("Making request", zap.String("url", r.URL.String()))
	})

	return collector
}

// FetchPage возвращает HTML страницы или *FetchError.
// Частичный контент никогда не возвращается.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &FetchError{Kind: FetchNetwork, URL: rawURL, Err: fmt.Errorf("invalid URL")}
	}

	if err := ctx.Err(); err != nil {
		return "", classifyError(rawURL, 0, err)
	}

	waited, err := f.limiter.Wait(ctx, u.Hostname())
	if err != nil {
		return "", classifyError(rawURL, 0, err)
	}
	if waited > 0 {
		f.logger.Debug("Rate limiting: slept before request",
			zap.String("domain", u.Hostname()),
			zap.Duration("sleep_duration", waited))
	}

	var (
		body       []byte
		statusCode int
		requestErr error
	)

	collector := f.newCollector(ctx)
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
		f.logger.Debug("Received response",
			zap.String("url", r.Request.URL.String()),
			zap.Int("status", r.StatusCode),
			zap.Int("size", len(r.Body)))
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		requestErr = err
	})

	if err := collector.Visit(u.String()); err != nil && requestErr == nil {
		requestErr = err
	}

	if requestErr != nil {
		return "", classifyError(rawURL, statusCode, requestErr)
	}
	if statusCode < 200 || statusCode >= 300 {
		return "", &FetchError{Kind: FetchHTTPStatus, URL: rawURL, StatusCode: statusCode}
	}
	if len(body) > f.config.MaxBodyBytes {
		return "", &FetchError{
			Kind: FetchTooLarge,
			URL:  rawURL,
			Err:  fmt.Errorf("response body exceeds %d bytes", f.config.MaxBodyBytes),
		}
	}

	return string(body), nil
}

// Close закрывает простаивающие соединения
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

// classifyError приводит ошибку Colly/net/http к FetchError.
// Отмена контекста считается сетевой ошибкой, истечение срока - таймаутом.
func classifyError(rawURL string, statusCode int, err error) *FetchError {
	if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
		return &FetchError{Kind: FetchHTTPStatus, URL: rawURL, StatusCode: statusCode, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
	}

	return &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
}
