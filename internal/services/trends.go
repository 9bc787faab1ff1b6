package services

import (
	"context"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type TrendService interface {
	Project(ctx context.Context, projectID string) (*models.ProjectTrend, error)
	// All returns the trends of every active project.
	All(ctx context.Context) ([]models.ProjectTrend, error)
}

type trendService struct {
	*Deps
}

func NewTrendService(d *Deps) TrendService {
	return &trendService{Deps: d}
}

func (s *trendService) Project(ctx context.Context, projectID string) (*models.ProjectTrend, error) {
	var trend *models.ProjectTrend
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p == nil {
			return utils.NewNotFoundError("Project not found")
		}
		trend, err = projectTrend(ctx, tx, p)
		return err
	})
	if err := s.wrap(err, "Failed to load trends", "project_id", projectID); err != nil {
		return nil, err
	}
	return trend, nil
}

func (s *trendService) All(ctx context.Context) ([]models.ProjectTrend, error) {
	trends := []models.ProjectTrend{}
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		projects, err := tx.ListActiveProjects(ctx)
		if err != nil {
			return err
		}
		for i := range projects {
			t, err := projectTrend(ctx, tx, &projects[i])
			if err != nil {
				return err
			}
			trends = append(trends, *t)
		}
		return nil
	})
	if err := s.wrap(err, "Failed to load trends"); err != nil {
		return nil, err
	}
	return trends, nil
}

// projectTrend lists core indicators first, each with its points in
// checkup date order.
func projectTrend(ctx context.Context, tx *repository.Tx, p *models.Project) (*models.ProjectTrend, error) {
	indicators, err := tx.ListIndicatorsForTrend(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	trend := &models.ProjectTrend{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		Indicators:  make([]models.IndicatorTrend, 0, len(indicators)),
	}
	for _, ind := range indicators {
		points, err := tx.TrendPoints(ctx, ind.ID)
		if err != nil {
			return nil, err
		}
		trend.Indicators = append(trend.Indicators, models.IndicatorTrend{
			IndicatorID:    ind.ID,
			IndicatorName:  ind.Name,
			Unit:           ind.Unit,
			ReferenceRange: ind.ReferenceRange,
			IsCore:         ind.IsCore,
			Points:         points,
		})
	}
	return trend, nil
}
