package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tourscan/internal/external/llm"
	"tourscan/internal/external/scraper"
	"tourscan/internal/geo"
	"tourscan/internal/model"
	"tourscan/internal/report"
)

// maxCandidatesPerProvider ограничивает число проверок живости на провайдера
const maxCandidatesPerProvider = 3

// UniversityStore - внешнее хранилище университетов и туров
type UniversityStore interface {
	GetUniversities(ctx context.Context, limit, offset int, filter model.UniversityFilter) ([]model.University, error)
	UpsertTour(ctx context.Context, universityID int64, tour *model.UniversityTour) error
}

// SiteCrawler загружает главную страницу и ограниченный набор подстраниц
type SiteCrawler interface {
	Crawl(ctx context.Context, homepage string) ([]scraper.Page, error)
}

// TourAnalyzer - необязательный AI этап
type TourAnalyzer interface {
	Analyze(ctx context.Context, htmlExcerpt, universityName string) llm.AnalysisResult
}

// LinkValidator проверяет кандидатов
type LinkValidator interface {
	ValidateLinks(ctx context.Context, candidates []model.TourCandidate) []model.LinkValidationResult
}

// MetricsRecorder принимает метрики прогона
type MetricsRecorder interface {
	RecordOutcome(outcome model.ScanOutcome)
	RecordProbe(provider model.TourProvider, statusCode int, valid bool)
	RecordSources(tour *model.UniversityTour)
	RecordDuration(d time.Duration)
}

// Options - параметры прогона
type Options struct {
	Limit        int
	Offset       int
	SkipExisting bool
	UseAI        bool
	Workers      int
	DryRun       bool
}

// RunResult - итог прогона
type RunResult struct {
	RunID     string
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	// Interrupted - сколько университетов не просканировано из-за отмены прогона
	Interrupted int
	Outcomes    []model.ScanOutcome
	Summary     report.Summary
	Report      string
}

// ExitCode возвращает 1, если хотя бы один университет завершился ошибкой
func (r *RunResult) ExitCode() int {
	if r.Failed > 0 {
		return 1
	}
	return 0
}

// Deps - зависимости оркестратора
type Deps struct {
	Store      UniversityStore
	Crawler    SiteCrawler
	Links      *scraper.LinkExtractor
	Coords     *geo.Extractor
	Analyzer   TourAnalyzer
	Validator  LinkValidator
	Aggregator *Aggregator
	Metrics    MetricsRecorder
	Backend    string
}

// Orchestrator обходит университеты и сохраняет найденные туры.
// Ошибка одного университета не прерывает прогон.
type Orchestrator struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewOrchestrator создает оркестратор
func NewOrchestrator(deps Deps, logger *zap.Logger) *Orchestrator {
	if deps.Links == nil {
		deps.Links = scraper.NewLinkExtractor(nil)
	}
	if deps.Coords == nil {
		deps.Coords = geo.NewExtractor(nil)
	}
	if deps.Aggregator == nil {
		deps.Aggregator = NewAggregator(nil, nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	return &Orchestrator{deps: deps, logger: logger, now: time.Now}
}

// ProcessAll выполняет прогон и возвращает итог с отчетом.
// Ошибка возвращается только если не удалось получить список университетов.
func (o *Orchestrator) ProcessAll(ctx context.Context, opts Options) (*RunResult, error) {
	runID := uuid.NewString()
	startedAt := o.now()
	logger := o.logger.With(zap.String("run_id", runID))

	filter := model.UniversityFilter{}
	if opts.SkipExisting {
		hasTour := false
		filter.HasTour = &hasTour
	}

	universities, err := o.deps.Store.GetUniversities(ctx, opts.Limit, opts.Offset, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load universities: %w", err)
	}

	logger.Info("Starting tour scan",
		zap.Int("universities", len(universities)),
		zap.Int("limit", opts.Limit),
		zap.Bool("skip_existing", opts.SkipExisting),
		zap.Bool("use_ai", opts.UseAI),
		zap.Int("workers", opts.Workers),
		zap.Bool("dry_run", opts.DryRun))

	outcomes := make([]model.ScanOutcome, len(universities))
	stats := make([]scanStats, len(universities))
	done := make([]bool, len(universities))

	// run сканирует университет i; прерванные отменой не попадают в итоги
	run := func(ctx context.Context, i int) {
		if ctx.Err() != nil {
			return
		}
		outcome, st := o.processOne(ctx, logger, universities[i], opts)
		if !outcome.Success && ctx.Err() != nil {
			logger.Info("University scan interrupted", zap.Int64("university_id", universities[i].ID))
			return
		}
		outcomes[i], stats[i], done[i] = outcome, st, true
	}

	if opts.Workers <= 1 {
		for i := range universities {
			if ctx.Err() != nil {
				break
			}
			run(ctx, i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range universities {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				run(gctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}

	completed := make([]model.ScanOutcome, 0, len(outcomes))
	completedStats := make([]scanStats, 0, len(outcomes))
	for i := range outcomes {
		if done[i] {
			completed = append(completed, outcomes[i])
			completedStats = append(completedStats, stats[i])
		}
	}
	outcomes, stats = completed, completedStats

	result := &RunResult{RunID: runID, Outcomes: outcomes, Interrupted: len(universities) - len(outcomes)}
	if result.Interrupted > 0 {
		logger.Warn("Tour scan interrupted",
			zap.Int("not_scanned", result.Interrupted),
			zap.Error(ctx.Err()))
	}
	sourcesByProvider := make(map[model.TourProvider]int)
	forbidden := 0
	for i, outcome := range outcomes {
		o.deps.Metrics.RecordOutcome(outcome)
		switch {
		case outcome.Skipped:
			result.Skipped++
			continue
		case outcome.Success:
			result.Succeeded++
		default:
			result.Failed++
		}
		result.Processed++
		forbidden += stats[i].forbidden
		for _, p := range stats[i].providers {
			sourcesByProvider[p]++
		}
	}

	finishedAt := o.now()
	o.deps.Metrics.RecordDuration(finishedAt.Sub(startedAt))

	result.Summary = report.Summary{
		Params: report.Params{
			RunID:        runID,
			StartedAt:    startedAt,
			FinishedAt:   finishedAt,
			Limit:        opts.Limit,
			Offset:       opts.Offset,
			Workers:      opts.Workers,
			UseAI:        opts.UseAI,
			SkipExisting: opts.SkipExisting,
			DryRun:       opts.DryRun,
			Backend:      o.deps.Backend,
		},
		Processed:         result.Processed,
		Succeeded:         result.Succeeded,
		Failed:            result.Failed,
		Skipped:           result.Skipped,
		Interrupted:       result.Interrupted,
		SourcesByProvider: sourcesByProvider,
		ForbiddenVerdicts: forbidden,
		Outcomes:          outcomes,
	}
	result.Report = report.Render(result.Summary)

	logger.Info("Tour scan completed",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", finishedAt.Sub(startedAt)))

	return result, nil
}

// scanStats - детали сканирования для отчета
type scanStats struct {
	providers []model.TourProvider
	forbidden int
}

// processOne сканирует один университет. Паника превращается в неудачный итог.
func (o *Orchestrator) processOne(ctx context.Context, logger *zap.Logger, u model.University, opts Options) (outcome model.ScanOutcome, stats scanStats) {
	outcome = model.ScanOutcome{UniversityID: u.ID, UniversityName: u.Name}
	logger = logger.With(zap.Int64("university_id", u.ID), zap.String("url", u.Website))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while scanning university", zap.Any("panic", r))
			outcome.Success = false
			outcome.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if opts.SkipExisting && u.HasTour() {
		logger.Debug("Skipping university with existing tour")
		outcome.Skipped = true
		outcome.Success = true
		outcome.SourcesFound = len(u.Tour.AvailableSources)
		return outcome, stats
	}

	tour, stats, err := o.scan(ctx, logger, u, opts)
	if err != nil {
		logger.Warn("University scan failed", zap.Error(err))
		outcome.Error = err.Error()
		return outcome, stats
	}

	outcome.Success = true
	outcome.SourcesFound = len(tour.AvailableSources)
	if tour.PrimarySource != nil {
		outcome.Primary = *tour.PrimarySource
	}
	logger.Info("University scanned",
		zap.Int("sources_found", outcome.SourcesFound),
		zap.String("primary", outcome.Primary.String()))
	return outcome, stats
}

// scan выполняет конвейер для одного университета
func (o *Orchestrator) scan(ctx context.Context, logger *zap.Logger, u model.University, opts Options) (*model.UniversityTour, scanStats, error) {
	var stats scanStats
	if strings.TrimSpace(u.Website) == "" {
		return nil, stats, fmt.Errorf("university has no website")
	}

	pages, err := o.deps.Crawler.Crawl(ctx, u.Website)
	if err != nil {
		return nil, stats, err
	}

	candidates := o.extractCandidates(logger, pages)
	if opts.UseAI && o.deps.Analyzer != nil {
		analysis := o.deps.Analyzer.Analyze(ctx, buildExcerpt(pages), u.Name)
		logger.Debug("AI analysis",
			zap.Int("found", len(analysis.FoundTours)),
			zap.String("analysis", analysis.Analysis))
		for _, found := range analysis.FoundTours {
			candidates = append(candidates, found.ToCandidate())
		}
	}
	candidates = mergeCandidates(candidates)

	results := o.deps.Validator.ValidateLinks(ctx, candidates)
	for _, r := range results {
		o.deps.Metrics.RecordProbe(r.Provider, r.StatusCode, r.Valid)
		if r.Valid && r.StatusCode == 403 {
			stats.forbidden++
		}
	}

	scanned := o.deps.Aggregator.BuildTour(u.ID, results)
	if u.Tour != nil {
		scanned = MergeTours(u.Tour, scanned)
		scanned.UniversityID = u.ID
	}
	tour := o.deps.Aggregator.Sanitize(scanned)

	if v := o.deps.Aggregator.ValidateFullTour(tour); !v.Valid {
		return nil, stats, fmt.Errorf("invalid tour structure: %s", strings.Join(v.Errors, "; "))
	}

	if opts.DryRun {
		logger.Info("Dry run: tour is not saved", zap.Int("sources", len(tour.AvailableSources)))
	} else if err := o.deps.Store.UpsertTour(ctx, u.ID, tour); err != nil {
		return nil, stats, fmt.Errorf("failed to save tour: %w", err)
	}

	o.deps.Metrics.RecordSources(tour)
	stats.providers = append(stats.providers, tour.AvailableSources...)
	return tour, stats, nil
}

// extractCandidates ищет ссылки на карты на всех страницах сайта
func (o *Orchestrator) extractCandidates(logger *zap.Logger, pages []scraper.Page) []model.TourCandidate {
	var candidates []model.TourCandidate
	for _, page := range pages {
		links, err := o.deps.Links.ExtractLinks(page.HTML, page.URL)
		if err != nil {
			logger.Debug("Failed to extract links", zap.String("page", page.URL), zap.Error(err))
			continue
		}
		for _, m := range o.deps.Links.FindMapURLs(o.deps.Links.FindTourLinks(links)) {
			candidate := model.TourCandidate{Provider: m.Provider, URL: m.URL, Origin: model.OriginExtractor}
			if point, ok := o.deps.Coords.ExtractForProvider(m.Provider, m.URL); ok {
				candidate.Latitude, candidate.Longitude = point.Pointers()
			}
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

// mergeCandidates убирает дубликаты по URL, дополняя координаты и адрес из AI подсказки,
// и ограничивает число кандидатов на провайдера
func mergeCandidates(candidates []model.TourCandidate) []model.TourCandidate {
	out := make([]model.TourCandidate, 0, len(candidates))
	index := make(map[string]int, len(candidates))
	perProvider := make(map[model.TourProvider]int)

	for _, c := range candidates {
		key := strings.TrimSpace(c.URL)
		if i, ok := index[key]; ok {
			if out[i].Latitude == nil && c.Latitude != nil && c.Longitude != nil {
				out[i].Latitude, out[i].Longitude = c.Latitude, c.Longitude
			}
			if out[i].Address == "" {
				out[i].Address = c.Address
			}
			continue
		}
		if perProvider[c.Provider] >= maxCandidatesPerProvider {
			continue
		}
		perProvider[c.Provider]++
		index[key] = len(out)
		out = append(out, c)
	}
	return out
}

// buildExcerpt склеивает очищенный HTML страниц, главная первой
func buildExcerpt(pages []scraper.Page) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if excerpt := scraper.BuildExcerpt(page.HTML); excerpt != "" {
			parts = append(parts, excerpt)
		}
	}
	return strings.Join(parts, "\n")
}

type noopMetrics struct{}

func (noopMetrics) RecordOutcome(model.ScanOutcome)           {}
func (noopMetrics) RecordProbe(model.TourProvider, int, bool) {}
func (noopMetrics) RecordSources(*model.UniversityTour)       {}
func (noopMetrics) RecordDuration(time.Duration)              {}
