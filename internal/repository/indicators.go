package repository

import (
	"context"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

const indicatorColumns = `id, project_id, name, unit, reference_range, sort_order, is_core, created_at`

// ListIndicators returns the project's catalog in matching order.
func (t *Tx) ListIndicators(ctx context.Context, projectID string) ([]models.Indicator, error) {
	indicators := []models.Indicator{}
	err := t.tx.SelectContext(ctx, &indicators, `
		SELECT `+indicatorColumns+` FROM indicators
		WHERE project_id = ? ORDER BY sort_order, created_at`, projectID)
	return indicators, err
}

// ListIndicatorsForTrend puts core indicators first.
func (t *Tx) ListIndicatorsForTrend(ctx context.Context, projectID string) ([]models.Indicator, error) {
	indicators := []models.Indicator{}
	err := t.tx.SelectContext(ctx, &indicators, `
		SELECT `+indicatorColumns+` FROM indicators
		WHERE project_id = ? ORDER BY is_core DESC, sort_order, name`, projectID)
	return indicators, err
}

func (t *Tx) GetIndicator(ctx context.Context, id string) (*models.Indicator, error) {
	var ind models.Indicator
	err := t.tx.GetContext(ctx, &ind, `SELECT `+indicatorColumns+` FROM indicators WHERE id = ?`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ind, nil
}

// FindIndicator looks up an exact (project, name) pair.
func (t *Tx) FindIndicator(ctx context.Context, projectID, name string) (*models.Indicator, error) {
	var ind models.Indicator
	err := t.tx.GetContext(ctx, &ind, `
		SELECT `+indicatorColumns+` FROM indicators
		WHERE project_id = ? AND name = ? ORDER BY created_at LIMIT 1`, projectID, name)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ind, nil
}

func (t *Tx) CreateIndicator(ctx context.Context, ind *models.Indicator) error {
	var next int
	if err := t.tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM indicators WHERE project_id = ?`, ind.ProjectID); err != nil {
		return err
	}
	ind.SortOrder = next
	ind.CreatedAt = t.now()

	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO indicators (`+indicatorColumns+`)
		VALUES (:id, :project_id, :name, :unit, :reference_range, :sort_order, :is_core, :created_at)`, ind)
	return err
}

func (t *Tx) UpdateIndicator(ctx context.Context, ind *models.Indicator) error {
	_, err := t.tx.NamedExecContext(ctx, `
		UPDATE indicators
		SET name = :name, unit = :unit, reference_range = :reference_range,
		    sort_order = :sort_order, is_core = :is_core
		WHERE id = :id`, ind)
	return err
}

func (t *Tx) CountValuesForIndicator(ctx context.Context, indicatorID string) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM indicator_values WHERE indicator_id = ?`, indicatorID)
	return n, err
}

func (t *Tx) DeleteIndicator(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM indicators WHERE id = ?`, id)
	return err
}
