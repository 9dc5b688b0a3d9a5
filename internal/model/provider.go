// Package model содержит модели данных.
//
// Группа: BASE - Базовые компоненты
// Содержит: TourProvider, ProviderSpec, ProviderTable
package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// TourProvider представляет картографический сервис, на котором размещена панорама
type TourProvider string

const (
	ProviderGoogle TourProvider = "google"
	ProviderYandex TourProvider = "yandex"
	ProviderTwoGIS TourProvider = "twogis"
)

// AllProviders возвращает провайдеров в порядке по умолчанию
func AllProviders() []TourProvider {
	return []TourProvider{ProviderGoogle, ProviderYandex, ProviderTwoGIS}
}

// String возвращает строковое представление провайдера
func (p TourProvider) String() string {
	return string(p)
}

// IsValid проверяет валидность провайдера
func (p TourProvider) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderYandex, ProviderTwoGIS:
		return true
	default:
		return false
	}
}

// ParseProvider нормализует имя провайдера из свободного текста (ответ модели, YAML)
func ParseProvider(name string) (TourProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "google", "google_maps", "google maps", "googlemaps":
		return ProviderGoogle, nil
	case "yandex", "yandex_panorama", "yandex maps", "yandex_maps", "яндекс":
		return ProviderYandex, nil
	case "twogis", "2gis", "2гис", "two_gis":
		return ProviderTwoGIS, nil
	default:
		return "", fmt.Errorf("unknown tour provider %q", name)
	}
}

// AxisOrder задает порядок координат в URL провайдера
type AxisOrder int

const (
	// AxisLatLng - сначала широта, потом долгота (Google)
	AxisLatLng AxisOrder = iota
	// AxisLngLat - сначала долгота, потом широта (Яндекс, 2ГИС)
	AxisLngLat
)

// HostRule описывает допустимый хост провайдера
type HostRule struct {
	// Domain сравнивается с хостом целиком или как суффикс ".domain"
	Domain string
	// PathPrefix, если задан, должен быть префиксом пути
	PathPrefix string
}

// CoordinatePattern - регулярное выражение с двумя группами чисел и порядком осей
type CoordinatePattern struct {
	Pattern *regexp.Regexp
	Axis    AxisOrder
}

// ProviderSpec описывает провайдера: хосты, шаблоны координат и политику проверки доступности
type ProviderSpec struct {
	Provider TourProvider
	Hosts    []HostRule
	Patterns []CoordinatePattern
	// Accept302 и Accept403 - коды, которые считаются признаком живой ссылки
	Accept302 bool
	Accept403 bool
}

// MatchesHost проверяет принадлежность URL семейству доменов провайдера
func (s ProviderSpec) MatchesHost(u *url.URL) bool {
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	for _, rule := range s.Hosts {
		if host != rule.Domain && !strings.HasSuffix(host, "."+rule.Domain) {
			continue
		}
		if rule.PathPrefix == "" || strings.HasPrefix(u.Path, rule.PathPrefix) {
			return true
		}
	}
	return false
}

// AcceptsStatus проверяет, считается ли HTTP статус признаком живой ссылки
func (s ProviderSpec) AcceptsStatus(code int) bool {
	switch {
	case code >= 200 && code < 300:
		return true
	case code == 302:
		return s.Accept302
	case code == 403:
		return s.Accept403
	default:
		return false
	}
}

const number = `(-?\d{1,3}(?:\.\d+)?)`

// ProviderTable - таблица провайдеров, общая для извлечения координат и валидации ссылок
type ProviderTable struct {
	specs []ProviderSpec
}

// NewProviderTable создает таблицу из описаний провайдеров
func NewProviderTable(specs ...ProviderSpec) *ProviderTable {
	return &ProviderTable{specs: specs}
}

// DefaultProviderTable возвращает таблицу для Google Maps, Яндекс Карт и 2ГИС
func DefaultProviderTable() *ProviderTable {
	return NewProviderTable(
		ProviderSpec{
			Provider: ProviderGoogle,
			Hosts: []HostRule{
				{Domain: "maps.google.com"},
				{Domain: "maps.app.goo.gl"},
				{Domain: "goo.gl", PathPrefix: "/maps"},
				{Domain: "google.com", PathPrefix: "/maps"},
				{Domain: "google.kz", PathPrefix: "/maps"},
				{Domain: "google.ru", PathPrefix: "/maps"},
			},
			Patterns: []CoordinatePattern{
				{Pattern: regexp.MustCompile(`@` + number + `,` + number), Axis: AxisLatLng},
				{Pattern: regexp.MustCompile(`!3d` + number + `!4d` + number), Axis: AxisLatLng},
			},
			Accept302: true,
			Accept403: true,
		},
		ProviderSpec{
			Provider: ProviderYandex,
			Hosts: []HostRule{
				{Domain: "yandex.ru", PathPrefix: "/map"},
				{Domain: "yandex.kz", PathPrefix: "/map"},
				{Domain: "yandex.com", PathPrefix: "/map"},
				{Domain: "yandex.by", PathPrefix: "/map"},
				{Domain: "yandex.uz", PathPrefix: "/map"},
			},
			Patterns: []CoordinatePattern{
				{Pattern: regexp.MustCompile(`[?&]ll=` + number + `(?:,|%2C|%2c)` + number), Axis: AxisLngLat},
				{Pattern: regexp.MustCompile(`panorama(?:\[|%5B)point(?:\]|%5D)=` + number + `(?:,|%2C|%2c)` + number), Axis: AxisLngLat},
			},
			Accept302: true,
			Accept403: true,
		},
		ProviderSpec{
			Provider: ProviderTwoGIS,
			Hosts: []HostRule{
				{Domain: "2gis.kz"},
				{Domain: "2gis.ru"},
				{Domain: "2gis.com"},
				{Domain: "2gis.uz"},
			},
			Patterns: []CoordinatePattern{
				{Pattern: regexp.MustCompile(`[?&]m=` + number + `(?:,|%2C|%2c)` + number), Axis: AxisLngLat},
			},
			Accept302: true,
			Accept403: true,
		},
	)
}

// Specs возвращает копию описаний в порядке таблицы
func (t *ProviderTable) Specs() []ProviderSpec {
	out := make([]ProviderSpec, len(t.specs))
	copy(out, t.specs)
	return out
}

// Spec возвращает описание провайдера
func (t *ProviderTable) Spec(p TourProvider) (ProviderSpec, bool) {
	for _, s := range t.specs {
		if s.Provider == p {
			return s, true
		}
	}
	return ProviderSpec{}, false
}

// Detect определяет провайдера по хосту URL
func (t *ProviderTable) Detect(rawURL string) (TourProvider, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	for _, s := range t.specs {
		if s.MatchesHost(u) {
			return s.Provider, true
		}
	}
	return "", false
}

// ProviderPolicy - переопределение политики провайдера (например, из YAML)
type ProviderPolicy struct {
	Accept302  *bool
	Accept403  *bool
	ExtraHosts []HostRule
}

// WithPolicies возвращает новую таблицу с примененными переопределениями
func (t *ProviderTable) WithPolicies(policies map[TourProvider]ProviderPolicy) *ProviderTable {
	specs := t.Specs()
	for i := range specs {
		policy, ok := policies[specs[i].Provider]
		if !ok {
			continue
		}
		if policy.Accept302 != nil {
			specs[i].Accept302 = *policy.Accept302
		}
		if policy.Accept403 != nil {
			specs[i].Accept403 = *policy.Accept403
		}
		if len(policy.ExtraHosts) > 0 {
			hosts := make([]HostRule, 0, len(specs[i].Hosts)+len(policy.ExtraHosts))
			hosts = append(hosts, specs[i].Hosts...)
			hosts = append(hosts, policy.ExtraHosts...)
			specs[i].Hosts = hosts
		}
	}
	return NewProviderTable(specs...)
}
