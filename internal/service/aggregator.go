package service

import (
	"fmt"
	"strings"
	"time"

	"tourscan/internal/model"
	"tourscan/internal/validator"
)

// TourValidation - результат структурной проверки тура
type TourValidation struct {
	Valid  bool
	Errors []string
}

// Aggregator собирает источники в UniversityTour и следит за инвариантами:
// primary_source входит в available_sources, недоступный слот не попадает в available_sources.
type Aggregator struct {
	table *model.ProviderTable
	now   func() time.Time
}

// NewAggregator создает агрегатор. now может быть nil.
func NewAggregator(table *model.ProviderTable, now func() time.Time) *Aggregator {
	if table == nil {
		table = model.DefaultProviderTable()
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{table: table, now: now}
}

// BuildTour собирает тур из результатов проверки ссылок.
// На провайдера берется первый живой результат, иначе первый статически корректный как недоступный.
func (a *Aggregator) BuildTour(universityID int64, results []model.LinkValidationResult) *model.UniversityTour {
	tour := &model.UniversityTour{UniversityID: universityID, AvailableSources: []model.TourProvider{}}

	for _, r := range results {
		if !r.Valid {
			continue
		}
		if current := tour.Source(r.Provider); current != nil && current.Available {
			continue
		}
		tour.SetSource(r.Provider, r.ToSource())
		tour.AvailableSources = append(tour.AvailableSources, r.Provider)
	}

	for _, r := range results {
		if r.Valid || !r.Provider.IsValid() || tour.Source(r.Provider) != nil {
			continue
		}
		source := r.ToSource()
		if validator.CheckSource(a.table, r.Provider, source).HasErrors() {
			continue
		}
		tour.SetSource(r.Provider, source)
	}

	if len(tour.AvailableSources) > 0 {
		primary := tour.AvailableSources[0]
		tour.PrimarySource = &primary
	}
	return tour
}

// Sanitize возвращает новый тур, в котором остались только корректные слоты.
// Идемпотентна при одинаковом now.
func (a *Aggregator) Sanitize(partial *model.UniversityTour) *model.UniversityTour {
	out := &model.UniversityTour{AvailableSources: []model.TourProvider{}}
	if partial == nil {
		out.LastUpdated = a.now()
		return out
	}
	out.UniversityID = partial.UniversityID

	for _, spec := range a.table.Specs() {
		source := partial.Source(spec.Provider)
		if source == nil || strings.TrimSpace(source.URL) == "" {
			continue
		}
		if validator.CheckSource(a.table, spec.Provider, source).HasErrors() {
			continue
		}
		out.SetSource(spec.Provider, source.Clone())
	}

	// Сначала порядок обнаружения из входа, затем оставшиеся в порядке таблицы
	for _, p := range partial.AvailableSources {
		a.addAvailable(out, p)
	}
	for _, spec := range a.table.Specs() {
		a.addAvailable(out, spec.Provider)
	}

	if partial.PrimarySource != nil && containsProvider(out.AvailableSources, *partial.PrimarySource) {
		primary := *partial.PrimarySource
		out.PrimarySource = &primary
	} else if len(out.AvailableSources) > 0 {
		primary := out.AvailableSources[0]
		out.PrimarySource = &primary
	}

	out.LastUpdated = a.now()
	return out
}

func (a *Aggregator) addAvailable(tour *model.UniversityTour, p model.TourProvider) {
	source := tour.Source(p)
	if source == nil || !source.Available || containsProvider(tour.AvailableSources, p) {
		return
	}
	tour.AvailableSources = append(tour.AvailableSources, p)
}

// ValidateFullTour - строгая проверка собранного тура перед сохранением
func (a *Aggregator) ValidateFullTour(tour *model.UniversityTour) TourValidation {
	if tour == nil {
		return TourValidation{Errors: []string{"tour is nil"}}
	}

	var errs []string
	for _, spec := range a.table.Specs() {
		source := tour.Source(spec.Provider)
		if source == nil {
			continue
		}
		for _, e := range validator.CheckSource(a.table, spec.Provider, source) {
			errs = append(errs, fmt.Sprintf("%s: %s", spec.Provider, e.Error()))
		}
	}

	if tour.AvailableSources == nil {
		errs = append(errs, "available_sources must be an array")
	}
	seen := make(map[model.TourProvider]bool, len(tour.AvailableSources))
	for _, p := range tour.AvailableSources {
		switch {
		case !p.IsValid():
			errs = append(errs, fmt.Sprintf("available_sources: unknown provider %q", p))
		case seen[p]:
			errs = append(errs, fmt.Sprintf("available_sources: duplicate provider %s", p))
		case tour.Source(p) == nil:
			errs = append(errs, fmt.Sprintf("available_sources: %s has no source", p))
		case !tour.Source(p).Available:
			errs = append(errs, fmt.Sprintf("available_sources: %s is not available", p))
		}
		seen[p] = true
	}

	if tour.PrimarySource != nil && !containsProvider(tour.AvailableSources, *tour.PrimarySource) {
		errs = append(errs, fmt.Sprintf("primary_source %s is not in available_sources", *tour.PrimarySource))
	}

	return TourValidation{Valid: len(errs) == 0, Errors: errs}
}

// MergeTours накладывает результат нового сканирования на сохраненный тур.
// Найденные провайдеры заменяют слоты целиком, ненайденные сохраняются.
func MergeTours(existing, scanned *model.UniversityTour) *model.UniversityTour {
	if existing == nil {
		return scanned.Clone()
	}
	if scanned == nil {
		return existing.Clone()
	}

	merged := existing.Clone()
	for _, p := range model.AllProviders() {
		if source := scanned.Source(p); source != nil {
			merged.SetSource(p, source.Clone())
		}
	}

	available := make([]model.TourProvider, 0, len(existing.AvailableSources)+len(scanned.AvailableSources))
	for _, p := range append(append([]model.TourProvider{}, existing.AvailableSources...), scanned.AvailableSources...) {
		if !containsProvider(available, p) {
			available = append(available, p)
		}
	}
	merged.AvailableSources = available

	if merged.PrimarySource == nil && scanned.PrimarySource != nil {
		primary := *scanned.PrimarySource
		merged.PrimarySource = &primary
	}
	return merged
}

func containsProvider(list []model.TourProvider, p model.TourProvider) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}
