// Package repository содержит репозитории для работы с базой данных.
package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"tourscan/internal/model"
)

// hasTourCondition - у университета есть тур хотя бы с одним доступным источником
const hasTourCondition = "EXISTS (SELECT 1 FROM university_tours AS ut WHERE ut.university_id = university.id AND jsonb_array_length(ut.available_sources) > 0)"

// UniversityRepository читает университеты и сохраняет туры
type UniversityRepository struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUniversityRepository создает новый репозиторий университетов
func NewUniversityRepository(db *bun.DB, logger *zap.Logger) *UniversityRepository {
	return &UniversityRepository{
		db:     db,
		logger: logger,
	}
}

// GetUniversities возвращает страницу университетов вместе с сохраненным туром
func (r *UniversityRepository) GetUniversities(ctx context.Context, limit, offset int, filter model.UniversityFilter) ([]model.University, error) {
	var universities []model.University

	if err := r.selectQuery(&universities, limit, offset, filter).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query universities: %w", err)
	}

	r.logger.Debug("Loaded universities",
		zap.Int("count", len(universities)),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	return universities, nil
}

func (r *UniversityRepository) selectQuery(dest *[]model.University, limit, offset int, filter model.UniversityFilter) *bun.SelectQuery {
	q := r.db.NewSelect().
		Model(dest).
		Relation("Tour").
		Order("university.id ASC")

	if filter.HasTour != nil {
		if *filter.HasTour {
			q = q.Where(hasTourCondition)
		} else {
			q = q.Where("NOT " + hasTourCondition)
		}
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// UpsertTour заменяет тур университета целиком одним запросом
func (r *UniversityRepository) UpsertTour(ctx context.Context, universityID int64, tour *model.UniversityTour) error {
	if tour == nil {
		return fmt.Errorf("tour is nil")
	}
	row := tour.Clone()
	row.UniversityID = universityID
	if row.AvailableSources == nil {
		row.AvailableSources = []model.TourProvider{}
	}

	if _, err := r.upsertQuery(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert tour for university %d: %w", universityID, err)
	}

	r.logger.Debug("Tour saved",
		zap.Int64("university_id", universityID),
		zap.Int("sources", len(row.AvailableSources)))
	return nil
}

func (r *UniversityRepository) upsertQuery(row *model.UniversityTour) *bun.InsertQuery {
	return r.db.NewInsert().
		Model(row).
		On("CONFLICT (university_id) DO UPDATE").
		Set("available_sources = EXCLUDED.available_sources").
		Set("primary_source = EXCLUDED.primary_source").
		Set("google_maps = EXCLUDED.google_maps").
		Set("yandex_panorama = EXCLUDED.yandex_panorama").
		Set("twogis = EXCLUDED.twogis").
		Set("last_updated = EXCLUDED.last_updated")
}
