package llm

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"tourscan/internal/geo"
	"tourscan/internal/model"
)

const (
	DefaultExcerptChars  = 8000
	DefaultMinConfidence = 50
)

// AnalysisResult - итог AI анализа страницы
type AnalysisResult struct {
	FoundTours    []model.FoundTourCandidate
	BestCandidate *model.FoundTourCandidate
	Analysis      string
}

// AnalyzerConfig - параметры анализатора
type AnalyzerConfig struct {
	MaxChars      int
	MinConfidence float64
}

// Analyzer ищет виртуальные туры в HTML с помощью модели.
// Ответ модели считается подсказкой, а не истиной.
type Analyzer struct {
	gen       Generator
	table     *model.ProviderTable
	extractor *geo.Extractor
	config    AnalyzerConfig
	logger    *zap.Logger
}

// NewAnalyzer создает анализатор поверх любого Generator
func NewAnalyzer(gen Generator, table *model.ProviderTable, config AnalyzerConfig, logger *zap.Logger) *Analyzer {
	if table == nil {
		table = model.DefaultProviderTable()
	}
	if config.MaxChars <= 0 {
		config.MaxChars = DefaultExcerptChars
	}
	return &Analyzer{
		gen:       gen,
		table:     table,
		extractor: geo.NewExtractor(table),
		config:    config,
		logger:    logger,
	}
}

// Analyze никогда не возвращает ошибку: при любом сбое результат пустой,
// а причина записана в Analysis.
func (a *Analyzer) Analyze(ctx context.Context, htmlExcerpt, universityName string) AnalysisResult {
	excerpt := truncate(htmlExcerpt, a.config.MaxChars)
	prompt := buildPrompt(excerpt, universityName)

	raw, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("AI analysis request failed",
			zap.String("university", universityName),
			zap.String("backend", a.gen.Name()),
			zap.Error(err))
		return AnalysisResult{FoundTours: []model.FoundTourCandidate{}, Analysis: "AI request failed: " + err.Error()}
	}

	parsed := ParseAnalysis(raw)
	if !parsed.OK() {
		a.logger.Warn("AI response is malformed",
			zap.String("university", universityName),
			zap.String("reason", parsed.Reason),
			zap.String("raw", truncate(parsed.Raw, 300)))
		return AnalysisResult{FoundTours: []model.FoundTourCandidate{}, Analysis: "malformed AI response: " + parsed.Reason}
	}

	result := AnalysisResult{
		FoundTours: make([]model.FoundTourCandidate, 0, len(parsed.Value.FoundTours)),
		Analysis:   parsed.Value.Analysis,
	}
	for _, c := range parsed.Value.FoundTours {
		if normalized, ok := a.normalize(c); ok {
			result.FoundTours = append(result.FoundTours, normalized)
		}
	}
	if parsed.Value.BestCandidate != nil {
		if best, ok := a.normalize(*parsed.Value.BestCandidate); ok {
			result.BestCandidate = &best
		}
	}

	// Лучший кандидат идет первым среди кандидатов своего провайдера
	sort.SliceStable(result.FoundTours, func(i, j int) bool {
		return a.isBest(result.BestCandidate, result.FoundTours[i]) && !a.isBest(result.BestCandidate, result.FoundTours[j])
	})

	a.logger.Debug("AI analysis completed",
		zap.String("university", universityName),
		zap.Int("found", len(result.FoundTours)))

	return result
}

// ExtractCoordinatesFromURL - запасной путь, когда модель вернула URL без координат
func (a *Analyzer) ExtractCoordinatesFromURL(rawURL string) (geo.Point, bool) {
	return a.extractor.ExtractCoordinates(rawURL)
}

// GetMetrics возвращает счетчики запросов к сервису инференса
func (a *Analyzer) GetMetrics() map[string]interface{} {
	metrics := map[string]interface{}{"backend": a.gen.Name()}
	if m, ok := a.gen.(interface{ GetMetrics() map[string]interface{} }); ok {
		for k, v := range m.GetMetrics() {
			metrics[k] = v
		}
	}
	return metrics
}

// normalize приводит провайдера к перечислению и отбрасывает недостоверные кандидаты
func (a *Analyzer) normalize(c model.FoundTourCandidate) (model.FoundTourCandidate, bool) {
	if c.URL == "" {
		return c, false
	}
	if c.Confidence < 0 || c.Confidence > 100 || c.Confidence < a.config.MinConfidence {
		return c, false
	}

	detected, detectedOK := a.table.Detect(c.URL)
	provider, err := model.ParseProvider(string(c.Provider))
	switch {
	case detectedOK:
		// Домен ссылки надежнее слов модели
		provider = detected
	case err != nil:
		return c, false
	}
	c.Provider = provider

	if c.Latitude == nil || c.Longitude == nil {
		if point, ok := a.extractor.ExtractForProvider(provider, c.URL); ok {
			c.Latitude, c.Longitude = point.Pointers()
		} else {
			c.Latitude, c.Longitude = nil, nil
		}
	}

	return c, true
}

func (a *Analyzer) isBest(best *model.FoundTourCandidate, c model.FoundTourCandidate) bool {
	return best != nil && best.URL == c.URL
}

// buildPrompt создает промпт со строгим контрактом "только JSON"
func buildPrompt(excerpt, universityName string) string {
	return fmt.Sprintf(`Найди на странице университета "%s" ссылки на виртуальные 3D туры и панорамы 360°.
Поддерживаемые провайдеры: google (Google Maps, Street View), yandex (Яндекс Карты, панорамы), twogis (2ГИС).

Верни ТОЛЬКО один JSON объект без пояснений и без markdown:
{
  "found_tours": [
    {"provider": "google|yandex|twogis", "url": "URL", "latitude": 43.24, "longitude": 76.95, "address": "адрес", "confidence": 0-100, "reason": "почему"}
  ],
  "best_candidate": null,
  "analysis": "краткий вывод"
}

Требования:
1. Включай только ссылки, которые реально есть в HTML. Не придумывай URL.
2. latitude и longitude указывай только если они есть в ссылке или на странице, иначе пропусти поля.
3. best_candidate - лучший из found_tours или null.
4. Если туров нет, верни пустой массив found_tours.

HTML:
%s`, universityName, excerpt)
}
