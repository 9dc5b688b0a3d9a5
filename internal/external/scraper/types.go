// Package scraper содержит типы для веб-скрапинга.
package scraper

import (
	"errors"
	"fmt"
	"time"

	"tourscan/internal/model"
)

// DefaultUserAgent - браузерный User-Agent, снижающий вероятность блокировки
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultMaxBodyBytes - максимальный размер страницы
const DefaultMaxBodyBytes = 10 * 1024 * 1024

// Config представляет конфигурацию скрейпера
type Config struct {
	HTTPClientConfig HTTPClientConfig
	// Timeout - жесткий таймаут одного запроса
	Timeout time.Duration
	// MinDelay - минимальная пауза между запросами к одному домену
	MinDelay  time.Duration
	UserAgent string
	// MaxPages - максимум страниц на сайт (главная + подстраницы)
	MaxPages int
	// MaxBodyBytes - страницы больше лимита считаются ошибкой загрузки
	MaxBodyBytes int
}

// HTTPClientConfig представляет конфигурацию HTTP клиента
type HTTPClientConfig struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	DisableKeepAlives     bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		HTTPClientConfig: HTTPClientConfig{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
		Timeout:      15 * time.Second,
		MinDelay:     2 * time.Second,
		UserAgent:    DefaultUserAgent,
		MaxPages:     3,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// FetchErrorKind - тип ошибки загрузки страницы
type FetchErrorKind string

const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchNetwork    FetchErrorKind = "network"
	FetchTooLarge   FetchErrorKind = "too_large"
)

// FetchError - типизированная ошибка Fetcher
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status code %d", e.URL, e.StatusCode)
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	case FetchTooLarge:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: network failure: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout проверяет, что ошибка - таймаут загрузки
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchTimeout
}

// LinkKind - тип найденной ссылки
type LinkKind string

const (
	LinkAnchor LinkKind = "link"
	LinkIframe LinkKind = "iframe"
)

// Link - ссылка или встраиваемый фрейм на странице
type Link struct {
	Href string
	Text string
	Kind LinkKind
}

// MapURL - ссылка, хост которой принадлежит одному из провайдеров
type MapURL struct {
	URL      string
	Provider model.TourProvider
}

// Page - загруженная страница сайта
type Page struct {
	URL  string
	HTML string
}
