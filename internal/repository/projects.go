package repository

import (
	"context"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

const projectColumns = `id, name, description, sort_order, is_active, created_at, updated_at`

func (t *Tx) ListProjects(ctx context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	err := t.tx.SelectContext(ctx, &projects,
		`SELECT `+projectColumns+` FROM checkup_projects ORDER BY sort_order, created_at`)
	return projects, err
}

func (t *Tx) ListActiveProjects(ctx context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	err := t.tx.SelectContext(ctx, &projects,
		`SELECT `+projectColumns+` FROM checkup_projects WHERE is_active = 1 ORDER BY sort_order, created_at`)
	return projects, err
}

// GetProject returns nil when the project does not exist.
func (t *Tx) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := t.tx.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM checkup_projects WHERE id = ?`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *Tx) CreateProject(ctx context.Context, p *models.Project) error {
	var next int
	if err := t.tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM checkup_projects`); err != nil {
		return err
	}
	p.SortOrder = next
	p.CreatedAt = t.now()
	p.UpdatedAt = p.CreatedAt

	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO checkup_projects (`+projectColumns+`)
		VALUES (:id, :name, :description, :sort_order, :is_active, :created_at, :updated_at)`, p)
	return err
}

func (t *Tx) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = t.now()
	_, err := t.tx.NamedExecContext(ctx, `
		UPDATE checkup_projects
		SET name = :name, description = :description, sort_order = :sort_order,
		    is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, p)
	return err
}

func (t *Tx) CountFilesForProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM checkup_files WHERE project_id = ?`, projectID)
	return n, err
}

// DeleteProject removes the project and its catalog. Callers check for
// referencing files first.
func (t *Tx) DeleteProject(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM indicator_values WHERE project_id = ?`, id); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM indicators WHERE project_id = ?`, id); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `DELETE FROM checkup_projects WHERE id = ?`, id)
	return err
}
