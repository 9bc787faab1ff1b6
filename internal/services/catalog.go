package services

import (
	"context"
	"strings"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/reconcile"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type ProjectService interface {
	List(ctx context.Context) ([]models.Project, error)
	Create(ctx context.Context, req *models.CreateProjectRequest) (*models.Project, error)
	Update(ctx context.Context, id string, req *models.UpdateProjectRequest) (*models.Project, error)
	Delete(ctx context.Context, id string) error
}

type IndicatorService interface {
	List(ctx context.Context, projectID string) ([]models.Indicator, error)
	Create(ctx context.Context, req *models.CreateIndicatorRequest) (*models.Indicator, error)
	// Ensure returns the indicator with this exact name, creating it when
	// missing and pulling matching historical readings into the series.
	Ensure(ctx context.Context, req *models.CreateIndicatorRequest) (*models.Indicator, error)
	Update(ctx context.Context, id string, req *models.UpdateIndicatorRequest) (*models.Indicator, error)
	Delete(ctx context.Context, id string) error
}

type projectService struct {
	*Deps
}

func NewProjectService(d *Deps) ProjectService {
	return &projectService{Deps: d}
}

func (s *projectService) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		projects, err = tx.ListProjects(ctx)
		return err
	})
	if err != nil {
		s.Logger.Error("Failed to list projects", "error", err)
		return nil, utils.NewInternalError("Failed to list projects")
	}
	return projects, nil
}

func (s *projectService) Create(ctx context.Context, req *models.CreateProjectRequest) (*models.Project, error) {
	p := &models.Project{
		ID:          utils.GenerateID(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsActive:    true,
	}
	if p.Name == "" {
		return nil, utils.NewBadRequestError("Project name is required")
	}
	if err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		return tx.CreateProject(ctx, p)
	}); err != nil {
		s.Logger.Error("Failed to create project", "error", err)
		return nil, utils.NewInternalError("Failed to create project")
	}
	s.Logger.Info("Project created", "project_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *projectService) Update(ctx context.Context, id string, req *models.UpdateProjectRequest) (*models.Project, error) {
	var p *models.Project
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if p, err = tx.GetProject(ctx, id); err != nil || p == nil {
			return err
		}
		if req.Name != nil {
			p.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.IsActive != nil {
			p.IsActive = *req.IsActive
		}
		if req.SortOrder != nil {
			p.SortOrder = *req.SortOrder
		}
		return tx.UpdateProject(ctx, p)
	})
	if err != nil {
		s.Logger.Error("Failed to update project", "project_id", id, "error", err)
		return nil, utils.NewInternalError("Failed to update project")
	}
	if p == nil {
		return nil, utils.NewNotFoundError("Project not found")
	}
	return p, nil
}

// Delete refuses while files still belong to the project.
func (s *projectService) Delete(ctx context.Context, id string) error {
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return utils.NewNotFoundError("Project not found")
		}
		n, err := tx.CountFilesForProject(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return utils.NewConflictError("Project still has uploaded files; delete them first")
		}
		return tx.DeleteProject(ctx, id)
	})
	return s.wrap(err, "Failed to delete project", "project_id", id)
}

// wrap passes AppErrors through and hides anything else behind message.
func (d *Deps) wrap(err error, message string, args ...any) error {
	if err == nil {
		return nil
	}
	if appErr, ok := utils.AsAppError(err); ok {
		return appErr
	}
	d.Logger.Error(message, append(args, "error", err)...)
	return utils.WrapInternal(message, err)
}

type indicatorService struct {
	*Deps
}

func NewIndicatorService(d *Deps) IndicatorService {
	return &indicatorService{Deps: d}
}

func (s *indicatorService) List(ctx context.Context, projectID string) ([]models.Indicator, error) {
	var indicators []models.Indicator
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p == nil {
			return utils.NewNotFoundError("Project not found")
		}
		indicators, err = tx.ListIndicators(ctx, projectID)
		return err
	})
	if err := s.wrap(err, "Failed to list indicators", "project_id", projectID); err != nil {
		return nil, err
	}
	return indicators, nil
}

func (s *indicatorService) Create(ctx context.Context, req *models.CreateIndicatorRequest) (*models.Indicator, error) {
	var ind *models.Indicator
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		ind, err = s.create(ctx, tx, req, false)
		return err
	})
	if err := s.wrap(err, "Failed to create indicator", "project_id", req.ProjectID); err != nil {
		return nil, err
	}
	return ind, nil
}

func (s *indicatorService) create(ctx context.Context, tx *repository.Tx, req *models.CreateIndicatorRequest, defaultCore bool) (*models.Indicator, error) {
	p, err := tx.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, utils.NewNotFoundError("Project not found")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, utils.NewBadRequestError("Indicator name is required")
	}

	ind := &models.Indicator{
		ID:             utils.GenerateID(),
		ProjectID:      req.ProjectID,
		Name:           name,
		Unit:           req.Unit,
		ReferenceRange: req.ReferenceRange,
		IsCore:         defaultCore,
	}
	if req.IsCore != nil {
		ind.IsCore = *req.IsCore
	}
	if err := tx.CreateIndicator(ctx, ind); err != nil {
		return nil, err
	}
	return ind, nil
}

func (s *indicatorService) Ensure(ctx context.Context, req *models.CreateIndicatorRequest) (*models.Indicator, error) {
	var (
		ind     *models.Indicator
		written int
	)
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		existing, err := tx.FindIndicator(ctx, req.ProjectID, strings.TrimSpace(req.Name))
		if err != nil {
			return err
		}
		if existing != nil {
			ind = existing
			return nil
		}

		// Create, then pull matching history into the series
		if ind, err = s.create(ctx, tx, req, true); err != nil {
			return err
		}
		written, err = backfill(ctx, tx, req.ProjectID)
		return err
	})
	if err := s.wrap(err, "Failed to ensure indicator", "project_id", req.ProjectID); err != nil {
		return nil, err
	}
	if written > 0 {
		s.Metrics.IndicatorValuesWritten.Add(float64(written))
		s.Logger.Info("Indicator backfilled", "indicator_id", ind.ID, "values", written)
	}
	return ind, nil
}

// backfill regenerates the value sets of every successful result in the
// project against the current catalog.
func backfill(ctx context.Context, tx *repository.Tx, projectID string) (int, error) {
	catalog, err := tx.ListIndicators(ctx, projectID)
	if err != nil {
		return 0, err
	}
	results, err := tx.ListProjectOcrResults(ctx, projectID)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, r := range results {
		values := reconcile.Reconcile(sourceOf(r), r.Items, catalog)
		if err := tx.ReplaceIndicatorValues(ctx, r.ID, values); err != nil {
			return written, err
		}
		written += len(values)
	}
	return written, nil
}

func sourceOf(r models.OcrResult) reconcile.Source {
	return reconcile.Source{
		OcrResultID: r.ID,
		RecordID:    r.RecordID,
		ProjectID:   r.ProjectID,
		CheckupDate: r.CheckupDate,
	}
}

func (s *indicatorService) Update(ctx context.Context, id string, req *models.UpdateIndicatorRequest) (*models.Indicator, error) {
	var ind *models.Indicator
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if ind, err = tx.GetIndicator(ctx, id); err != nil {
			return err
		}
		if ind == nil {
			return utils.NewNotFoundError("Indicator not found")
		}
		if req.Name != nil {
			ind.Name = strings.TrimSpace(*req.Name)
		}
		if req.Unit != nil {
			ind.Unit = *req.Unit
		}
		if req.ReferenceRange != nil {
			ind.ReferenceRange = *req.ReferenceRange
		}
		if req.IsCore != nil {
			ind.IsCore = *req.IsCore
		}
		if req.SortOrder != nil {
			ind.SortOrder = *req.SortOrder
		}
		return tx.UpdateIndicator(ctx, ind)
	})
	if err := s.wrap(err, "Failed to update indicator", "indicator_id", id); err != nil {
		return nil, err
	}
	return ind, nil
}

// Delete refuses while any value references the indicator.
func (s *indicatorService) Delete(ctx context.Context, id string) error {
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		ind, err := tx.GetIndicator(ctx, id)
		if err != nil {
			return err
		}
		if ind == nil {
			return utils.NewNotFoundError("Indicator not found")
		}
		n, err := tx.CountValuesForIndicator(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return utils.NewConflictError("Indicator has recorded values and cannot be deleted")
		}
		return tx.DeleteIndicator(ctx, id)
	})
	return s.wrap(err, "Failed to delete indicator", "indicator_id", id)
}
