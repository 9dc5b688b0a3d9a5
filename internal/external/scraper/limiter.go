package scraper

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clock абстрагирует время, чтобы тесты не зависели от реальных пауз
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RealClock возвращает системные часы
func RealClock() Clock {
	return realClock{}
}

// DomainLimiter выдерживает минимальную паузу между запросами к одному домену.
// Лимитеры хранятся по домену, разные домены друг друга не тормозят.
type DomainLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
	clock    Clock
}

// NewDomainLimiter создает лимитер с паузой interval
func NewDomainLimiter(interval time.Duration, clock Clock) *DomainLimiter {
	if clock == nil {
		clock = RealClock()
	}
	return &DomainLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
		clock:    clock,
	}
}

// Wait резервирует слот для домена и спит оставшуюся часть паузы.
// Слот занимается до запроса, поэтому неудачный запрос тоже сдвигает окно.
func (l *DomainLimiter) Wait(ctx context.Context, domain string) (time.Duration, error) {
	if l.interval <= 0 {
		return 0, nil
	}
	domain = strings.ToLower(domain)

	l.mu.Lock()
	lim, ok := l.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[domain] = lim
	}
	now := l.clock.Now()
	delay := lim.ReserveN(now, 1).DelayFrom(now)
	l.mu.Unlock()

	if delay <= 0 {
		return 0, nil
	}
	return delay, l.clock.Sleep(ctx, delay)
}
