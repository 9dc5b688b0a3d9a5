package metrics

import (
	"time"

	"tourscan/internal/model"
)

// Interface определяет интерфейс для системы метрик прогона
type Interface interface {
	// RecordOutcome записывает итог сканирования университета
	RecordOutcome(outcome model.ScanOutcome)

	// RecordProbe записывает результат проверки живости ссылки
	RecordProbe(provider model.TourProvider, statusCode int, valid bool)

	// RecordSources записывает доступные источники сохраненного тура
	RecordSources(tour *model.UniversityTour)

	// RecordDuration записывает длительность прогона
	RecordDuration(d time.Duration)

	// WriteTextfile сохраняет метрики для node_exporter textfile collector
	WriteTextfile(path string) error

	// GetStats возвращает все метрики в виде map
	GetStats() map[string]interface{}
}
