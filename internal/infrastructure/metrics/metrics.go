// Package metrics реализует метрики прогона сканирования в формате Prometheus.
package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tourscan/internal/model"
)

const namespace = "tourscan"

// Metrics собирает метрики одного прогона в собственный реестр
type Metrics struct {
	mu sync.RWMutex

	registry *prometheus.Registry

	universities *prometheus.CounterVec
	probes       *prometheus.CounterVec
	sources      *prometheus.CounterVec
	duration     prometheus.Gauge
	lastRun      prometheus.Gauge

	// Счетчики для GetStats
	processed int64
	succeeded int64
	failed    int64
	skipped   int64
	probeOK   int64
	probeFail int64
	runTime   time.Duration

	logger *zap.Logger
}

// NewMetrics создает новую систему метрик
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		universities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "universities_total",
			Help:      "Universities by scan result.",
		}, []string{"result"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Liveness probes by provider, status class and verdict.",
		}, []string{"provider", "status", "valid"}),
		sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_found_total",
			Help:      "Available tour sources saved per provider.",
		}, []string{"provider"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last scan run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time when the last scan run finished.",
		}),
		logger: logger,
	}

	m.registry.MustRegister(m.universities, m.probes, m.sources, m.duration, m.lastRun)
	return m
}

// Registry возвращает реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOutcome записывает итог сканирования университета
func (m *Metrics) RecordOutcome(outcome model.ScanOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := "failed"
	switch {
	case outcome.Skipped:
		result = "skipped"
		m.skipped++
	case outcome.Success:
		result = "succeeded"
		m.succeeded++
		m.processed++
	default:
		m.failed++
		m.processed++
	}
	m.universities.WithLabelValues(result).Inc()
}

// RecordProbe записывает результат проверки живости ссылки
func (m *Metrics) RecordProbe(provider model.TourProvider, statusCode int, valid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if valid {
		m.probeOK++
	} else {
		m.probeFail++
	}
	m.probes.WithLabelValues(string(provider), statusClass(statusCode), strconv.FormatBool(valid)).Inc()
}

// RecordSources записывает доступные источники сохраненного тура
func (m *Metrics) RecordSources(tour *model.UniversityTour) {
	if tour == nil {
		return
	}
	for _, p := range tour.AvailableSources {
		m.sources.WithLabelValues(string(p)).Inc()
	}
}

// RecordDuration записывает длительность прогона
func (m *Metrics) RecordDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runTime = d
	m.duration.Set(d.Seconds())
	m.lastRun.SetToCurrentTime()
}

// WriteTextfile сохраняет метрики для node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	m.logger.Debug("Metrics textfile written", zap.String("path", path))
	return nil
}

// GetStats возвращает все метрики в виде map
func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"universities": map[string]interface{}{
			"processed": m.processed,
			"succeeded": m.succeeded,
			"failed":    m.failed,
			"skipped":   m.skipped,
		},
		"probes": map[string]interface{}{
			"alive":      m.probeOK,
			"dead":       m.probeFail,
			"alive_rate": m.calculateRate(m.probeOK, m.probeOK+m.probeFail),
		},
		"run": map[string]interface{}{
			"duration": m.formatDuration(m.runTime),
		},
	}
}

// calculateRate вычисляет процент
func (m *Metrics) calculateRate(part, total int64) float64 {
	if total > 0 {
		return float64(part) / float64(total) * 100
	}
	return 0
}

// formatDuration форматирует duration с двумя знаками после запятой
func (m *Metrics) formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// statusClass сворачивает код ответа в метку: 2xx, 302, 403, 4xx, 5xx или error
func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code == 302 || code == 403:
		return strconv.Itoa(code)
	default:
		return fmt.Sprintf("%dxx", code/100)
	}
}
