// Package model содержит модели данных.
//
// Группа: ENTITIES - Основные сущности
// Содержит: TourSource, UniversityTour, University, UniversityFilter
package model

import (
	"time"

	"github.com/uptrace/bun"
)

// TourSource - панорама одного провайдера для одного университета.
// При повторном сканировании заменяется целиком.
type TourSource struct {
	URL       string   `json:"url"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	Available bool     `json:"available"`
}

// HasCoordinates проверяет, заданы ли обе координаты
func (s *TourSource) HasCoordinates() bool {
	return s != nil && s.Latitude != nil && s.Longitude != nil
}

// Clone возвращает глубокую копию источника
func (s *TourSource) Clone() *TourSource {
	if s == nil {
		return nil
	}
	out := *s
	if s.Latitude != nil {
		lat := *s.Latitude
		out.Latitude = &lat
	}
	if s.Longitude != nil {
		lng := *s.Longitude
		out.Longitude = &lng
	}
	return &out
}

// UniversityTour - агрегированные источники виртуального тура университета
type UniversityTour struct {
	bun.BaseModel `bun:"table:university_tours"`

	UniversityID     int64          `bun:"university_id,pk" json:"university_id"`
	AvailableSources []TourProvider `bun:"available_sources,type:jsonb,notnull" json:"available_sources"`
	PrimarySource    *TourProvider  `bun:"primary_source" json:"primary_source,omitempty"`
	GoogleMaps       *TourSource    `bun:"google_maps,type:jsonb" json:"google_maps,omitempty"`
	YandexPanorama   *TourSource    `bun:"yandex_panorama,type:jsonb" json:"yandex_panorama,omitempty"`
	TwoGIS           *TourSource    `bun:"twogis,type:jsonb" json:"twogis,omitempty"`
	LastUpdated      time.Time      `bun:"last_updated,notnull,default:current_timestamp" json:"last_updated"`
}

// Source возвращает слот провайдера
func (t *UniversityTour) Source(p TourProvider) *TourSource {
	if t == nil {
		return nil
	}
	switch p {
	case ProviderGoogle:
		return t.GoogleMaps
	case ProviderYandex:
		return t.YandexPanorama
	case ProviderTwoGIS:
		return t.TwoGIS
	default:
		return nil
	}
}

// SetSource заменяет слот провайдера целиком
func (t *UniversityTour) SetSource(p TourProvider, s *TourSource) {
	switch p {
	case ProviderGoogle:
		t.GoogleMaps = s
	case ProviderYandex:
		t.YandexPanorama = s
	case ProviderTwoGIS:
		t.TwoGIS = s
	}
}

// HasSource проверяет, входит ли провайдер в список доступных
func (t *UniversityTour) HasSource(p TourProvider) bool {
	if t == nil {
		return false
	}
	for _, s := range t.AvailableSources {
		if s == p {
			return true
		}
	}
	return false
}

// IsAvailable проверяет, есть ли хотя бы один доступный источник
func (t *UniversityTour) IsAvailable() bool {
	return t != nil && len(t.AvailableSources) > 0
}

// Clone возвращает глубокую копию тура
func (t *UniversityTour) Clone() *UniversityTour {
	if t == nil {
		return nil
	}
	out := *t
	if t.AvailableSources != nil {
		out.AvailableSources = append([]TourProvider{}, t.AvailableSources...)
	}
	if t.PrimarySource != nil {
		p := *t.PrimarySource
		out.PrimarySource = &p
	}
	out.GoogleMaps = t.GoogleMaps.Clone()
	out.YandexPanorama = t.YandexPanorama.Clone()
	out.TwoGIS = t.TwoGIS.Clone()
	return &out
}

// University представляет университет из внешнего хранилища
type University struct {
	bun.BaseModel `bun:"table:universities"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Website   string    `bun:"website" json:"website"`
	City      string    `bun:"city" json:"city"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	// Связи
	Tour *UniversityTour `bun:"rel:has-one,join:id=university_id" json:"tour,omitempty"`
}

// HasTour проверяет, есть ли у университета тур хотя бы с одним источником
func (u *University) HasTour() bool {
	return u.Tour.IsAvailable()
}

// UniversityFilter - фильтр выборки университетов
type UniversityFilter struct {
	// HasTour: nil - все, true - только с туром, false - только без тура
	HasTour *bool
}
