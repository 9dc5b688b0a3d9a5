package service

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourscan/internal/model"
)

var fixedNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestAggregator() *Aggregator {
	return NewAggregator(nil, func() time.Time { return fixedNow })
}

func f64(v float64) *float64 { return &v }

func providerPtr(p model.TourProvider) *model.TourProvider { return &p }

func sanitizeCases() map[string]*model.UniversityTour {
	return map[string]*model.UniversityTour{
		"пустой": {},
		"nil available_sources": {
			UniversityID: 1,
			GoogleMaps:   &model.TourSource{URL: "https://www.google.com/maps/@43.2,76.9,3a", Available: true},
		},
		"primary не из списка": {
			UniversityID:     2,
			AvailableSources: []model.TourProvider{model.ProviderGoogle},
			PrimarySource:    providerPtr(model.ProviderTwoGIS),
			GoogleMaps:       &model.TourSource{URL: "https://maps.google.com/@43.2,76.9", Available: true},
		},
		"недоступный слот": {
			UniversityID:     3,
			AvailableSources: []model.TourProvider{model.ProviderYandex, model.ProviderTwoGIS},
			PrimarySource:    providerPtr(model.ProviderYandex),
			YandexPanorama:   &model.TourSource{URL: "https://yandex.kz/maps/?ll=76.9,43.2", Available: false},
			TwoGIS:           &model.TourSource{URL: "https://2gis.kz/almaty?m=76.9,43.2", Latitude: f64(43.2), Longitude: f64(76.9), Available: true},
		},
		"битые слоты": {
			UniversityID:     4,
			AvailableSources: []model.TourProvider{"bing", model.ProviderGoogle, model.ProviderGoogle},
			GoogleMaps:       &model.TourSource{URL: "javascript:alert(1)", Available: true},
			YandexPanorama:   &model.TourSource{URL: "https://yandex.ru/maps/", Latitude: f64(120), Longitude: f64(10), Available: true},
			TwoGIS:           &model.TourSource{URL: "", Available: true},
		},
		"порядок обнаружения": {
			UniversityID:     5,
			AvailableSources: []model.TourProvider{model.ProviderTwoGIS},
			GoogleMaps:       &model.TourSource{URL: "https://maps.google.com/@1,2", Available: true},
			TwoGIS:           &model.TourSource{URL: "https://2gis.ru/moscow", Available: true},
		},
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	a := newTestAggregator()
	for name, tour := range sanitizeCases() {
		t.Run(name, func(t *testing.T) {
			once := a.Sanitize(tour)
			twice := a.Sanitize(once)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Errorf("Sanitize is not idempotent (-once +twice):\n%s", diff)
			}
		})
	}
}

func TestSanitize_Invariants(t *testing.T) {
	a := newTestAggregator()
	for name, tour := range sanitizeCases() {
		t.Run(name, func(t *testing.T) {
			out := a.Sanitize(tour)
			require.NotNil(t, out.AvailableSources)
			if out.PrimarySource != nil {
				assert.Contains(t, out.AvailableSources, *out.PrimarySource)
			}
			for _, p := range out.AvailableSources {
				require.NotNil(t, out.Source(p))
				assert.True(t, out.Source(p).Available)
			}
			assert.Equal(t, fixedNow, out.LastUpdated)
			assert.True(t, a.ValidateFullTour(out).Valid, a.ValidateFullTour(out).Errors)
		})
	}
}

func TestSanitize_Details(t *testing.T) {
	a := newTestAggregator()
	cases := sanitizeCases()

	out := a.Sanitize(cases["primary не из списка"])
	assert.Equal(t, model.ProviderGoogle, *out.PrimarySource)

	out = a.Sanitize(cases["недоступный слот"])
	assert.Equal(t, []model.TourProvider{model.ProviderTwoGIS}, out.AvailableSources)
	assert.Equal(t, model.ProviderTwoGIS, *out.PrimarySource)
	require.NotNil(t, out.YandexPanorama, "слот остается для отладки")
	assert.False(t, out.YandexPanorama.Available)

	out = a.Sanitize(cases["битые слоты"])
	assert.Empty(t, out.AvailableSources)
	assert.Nil(t, out.PrimarySource)
	assert.Nil(t, out.GoogleMaps)
	assert.Nil(t, out.YandexPanorama)
	assert.Nil(t, out.TwoGIS)
	assert.Equal(t, fixedNow, out.LastUpdated, "отсутствие тура тоже фиксируется")

	out = a.Sanitize(cases["порядок обнаружения"])
	assert.Equal(t, []model.TourProvider{model.ProviderTwoGIS, model.ProviderGoogle}, out.AvailableSources)
	assert.Equal(t, model.ProviderTwoGIS, *out.PrimarySource)
}

func TestValidateFullTour(t *testing.T) {
	a := newTestAggregator()

	tests := []struct {
		name      string
		tour      *model.UniversityTour
		wantValid bool
		wantErr   string
	}{
		{name: "nil", tour: nil, wantErr: "nil"},
		{
			name:      "пустой список",
			tour:      &model.UniversityTour{AvailableSources: []model.TourProvider{}},
			wantValid: true,
		},
		{name: "не массив", tour: &model.UniversityTour{}, wantErr: "must be an array"},
		{
			name: "primary вне списка",
			tour: &model.UniversityTour{
				AvailableSources: []model.TourProvider{},
				PrimarySource:    providerPtr(model.ProviderGoogle),
				GoogleMaps:       &model.TourSource{URL: "https://maps.google.com/@1,2", Available: true},
			},
			wantErr: "primary_source",
		},
		{
			name: "недоступный в списке",
			tour: &model.UniversityTour{
				AvailableSources: []model.TourProvider{model.ProviderYandex},
				YandexPanorama:   &model.TourSource{URL: "https://yandex.kz/maps/", Available: false},
			},
			wantErr: "not available",
		},
		{
			name: "битые координаты",
			tour: &model.UniversityTour{
				AvailableSources: []model.TourProvider{model.ProviderTwoGIS},
				TwoGIS:           &model.TourSource{URL: "https://2gis.kz/", Latitude: f64(10), Longitude: f64(200), Available: true},
			},
			wantErr: "longitude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.ValidateFullTour(tt.tour)
			assert.Equal(t, tt.wantValid, got.Valid, got.Errors)
			if tt.wantErr != "" {
				require.NotEmpty(t, got.Errors)
				assert.Contains(t, got.Errors[0], tt.wantErr)
			}
		})
	}
}

func TestBuildTour(t *testing.T) {
	a := newTestAggregator()
	results := []model.LinkValidationResult{
		{Provider: model.ProviderYandex, URL: "https://yandex.kz/maps/?ll=1,2", Error: "liveness probe returned status 404", StatusCode: 404},
		{Provider: model.ProviderGoogle, URL: "https://maps.google.com/@2,1", Valid: true, StatusCode: 200},
		{Provider: model.ProviderGoogle, URL: "https://maps.google.com/@3,3", Valid: true, StatusCode: 403},
		{Provider: model.ProviderTwoGIS, URL: "ftp://2gis.kz", Error: "unsupported URL scheme"},
	}

	tour := a.BuildTour(7, results)
	assert.Equal(t, int64(7), tour.UniversityID)
	assert.Equal(t, []model.TourProvider{model.ProviderGoogle}, tour.AvailableSources)
	assert.Equal(t, model.ProviderGoogle, *tour.PrimarySource)
	assert.Equal(t, "https://maps.google.com/@2,1", tour.GoogleMaps.URL)
	require.NotNil(t, tour.YandexPanorama)
	assert.False(t, tour.YandexPanorama.Available)
	assert.Nil(t, tour.TwoGIS)
}

func TestMergeTours(t *testing.T) {
	existing := &model.UniversityTour{
		UniversityID:     9,
		AvailableSources: []model.TourProvider{model.ProviderGoogle, model.ProviderYandex},
		PrimarySource:    providerPtr(model.ProviderYandex),
		GoogleMaps:       &model.TourSource{URL: "https://maps.google.com/@1,1", Available: true},
		YandexPanorama:   &model.TourSource{URL: "https://yandex.kz/maps/old", Available: true},
	}
	scanned := &model.UniversityTour{
		UniversityID:     9,
		AvailableSources: []model.TourProvider{model.ProviderTwoGIS},
		PrimarySource:    providerPtr(model.ProviderTwoGIS),
		YandexPanorama:   &model.TourSource{URL: "https://yandex.kz/maps/new", Available: false},
		TwoGIS:           &model.TourSource{URL: "https://2gis.kz/almaty", Available: true},
	}

	merged := MergeTours(existing, scanned)
	out := newTestAggregator().Sanitize(merged)

	assert.Equal(t, "https://maps.google.com/@1,1", out.GoogleMaps.URL, "ненайденный провайдер сохраняется")
	assert.Equal(t, "https://yandex.kz/maps/new", out.YandexPanorama.URL, "найденный заменяется целиком")
	assert.Equal(t, []model.TourProvider{model.ProviderGoogle, model.ProviderTwoGIS}, out.AvailableSources)
	assert.Equal(t, model.ProviderGoogle, *out.PrimarySource, "прежний primary больше недоступен")
	assert.Equal(t, "https://yandex.kz/maps/old", existing.YandexPanorama.URL, "вход не изменяется")
}
