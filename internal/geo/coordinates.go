// Package geo извлекает координаты из URL картографических сервисов.
package geo

import (
	"strconv"

	"tourscan/internal/model"
)

// Point - пара координат в градусах
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// InRange проверяет диапазоны широты и долготы
func (p Point) InRange() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Pointers возвращает координаты в виде указателей для TourSource
func (p Point) Pointers() (*float64, *float64) {
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

// Extractor извлекает координаты по шаблонам таблицы провайдеров
type Extractor struct {
	table *model.ProviderTable
}

// NewExtractor создает экстрактор координат
func NewExtractor(table *model.ProviderTable) *Extractor {
	if table == nil {
		table = model.DefaultProviderTable()
	}
	return &Extractor{table: table}
}

// ExtractCoordinates определяет провайдера по хосту и извлекает координаты.
// Возвращает false, если провайдер неизвестен, шаблон не совпал или значения вне диапазона.
func (e *Extractor) ExtractCoordinates(rawURL string) (Point, bool) {
	provider, ok := e.table.Detect(rawURL)
	if !ok {
		return Point{}, false
	}
	return e.ExtractForProvider(provider, rawURL)
}

// ExtractForProvider применяет шаблоны заданного провайдера
func (e *Extractor) ExtractForProvider(provider model.TourProvider, rawURL string) (Point, bool) {
	spec, ok := e.table.Spec(provider)
	if !ok {
		return Point{}, false
	}

	for _, pattern := range spec.Patterns {
		match := pattern.Pattern.FindStringSubmatch(rawURL)
		if len(match) != 3 {
			continue
		}
		first, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		second, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}

		var p Point
		switch pattern.Axis {
		case model.AxisLngLat:
			p = Point{Lat: second, Lng: first}
		default:
			p = Point{Lat: first, Lng: second}
		}

		// Значения вне диапазона отбрасываются, а не обрезаются
		if !p.InRange() {
			return Point{}, false
		}
		return p, true
	}

	return Point{}, false
}
