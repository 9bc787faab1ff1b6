package repository

import (
	"context"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/lifecycle"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

const recordColumns = `r.id, r.checkup_date, r.status, r.notes, r.created_at, r.updated_at`

// ListRecords returns every record, newest checkup first, with its file
// count and the distinct project names of its files.
func (t *Tx) ListRecords(ctx context.Context) ([]models.CheckupRecord, error) {
	records := []models.CheckupRecord{}
	if err := t.tx.SelectContext(ctx, &records, `
		SELECT `+recordColumns+`,
		       (SELECT COUNT(*) FROM checkup_files f WHERE f.record_id = r.id) AS file_count
		FROM checkup_records r
		ORDER BY r.checkup_date DESC, r.created_at DESC`); err != nil {
		return nil, err
	}

	var pairs []struct {
		RecordID string `db:"record_id"`
		Name     string `db:"name"`
	}
	if err := t.tx.SelectContext(ctx, &pairs, `
		SELECT DISTINCT f.record_id, p.name
		FROM checkup_files f JOIN checkup_projects p ON p.id = f.project_id
		ORDER BY p.name`); err != nil {
		return nil, err
	}

	names := make(map[string][]string)
	for _, p := range pairs {
		names[p.RecordID] = append(names[p.RecordID], p.Name)
	}
	for i := range records {
		records[i].ProjectNames = names[records[i].ID]
		if records[i].ProjectNames == nil {
			records[i].ProjectNames = []string{}
		}
	}
	return records, nil
}

func (t *Tx) GetRecord(ctx context.Context, id string) (*models.CheckupRecord, error) {
	var r models.CheckupRecord
	err := t.tx.GetContext(ctx, &r, `
		SELECT `+recordColumns+`,
		       (SELECT COUNT(*) FROM checkup_files f WHERE f.record_id = r.id) AS file_count
		FROM checkup_records r WHERE r.id = ?`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.ProjectNames = []string{}
	if err := t.tx.SelectContext(ctx, &r.ProjectNames, `
		SELECT DISTINCT p.name
		FROM checkup_files f JOIN checkup_projects p ON p.id = f.project_id
		WHERE f.record_id = ? ORDER BY p.name`, id); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *Tx) CreateRecord(ctx context.Context, r *models.CheckupRecord) error {
	r.CreatedAt = t.now()
	r.UpdatedAt = r.CreatedAt
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO checkup_records (id, checkup_date, status, notes, created_at, updated_at)
		VALUES (:id, :checkup_date, :status, :notes, :created_at, :updated_at)`, r)
	return err
}

func (t *Tx) UpdateRecord(ctx context.Context, r *models.CheckupRecord) error {
	r.UpdatedAt = t.now()
	_, err := t.tx.NamedExecContext(ctx, `
		UPDATE checkup_records
		SET checkup_date = :checkup_date, status = :status, notes = :notes, updated_at = :updated_at
		WHERE id = :id`, r)
	return err
}

func (t *Tx) SetRecordStatus(ctx context.Context, id string, status lifecycle.Status) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE checkup_records SET status = ?, updated_at = ? WHERE id = ?`, status, t.now(), id)
	return err
}

// RecentOtherRecords returns up to limit records other than excludeID,
// newest checkup first.
func (t *Tx) RecentOtherRecords(ctx context.Context, excludeID string, limit int) ([]models.CheckupRecord, error) {
	records := []models.CheckupRecord{}
	err := t.tx.SelectContext(ctx, &records, `
		SELECT `+recordColumns+` FROM checkup_records r
		WHERE r.id != ? ORDER BY r.checkup_date DESC, r.created_at DESC LIMIT ?`, excludeID, limit)
	return records, err
}

// DeleteRecord removes the record and everything hanging off it. It returns
// the stored paths of the removed files so the caller can delete the
// objects once the transaction has committed.
func (t *Tx) DeleteRecord(ctx context.Context, id string) ([]string, error) {
	var paths []string
	if err := t.tx.SelectContext(ctx, &paths,
		`SELECT stored_path FROM checkup_files WHERE record_id = ?`, id); err != nil {
		return nil, err
	}

	for _, stmt := range []string{
		`DELETE FROM indicator_values WHERE record_id = ?`,
		`DELETE FROM ocr_results WHERE record_id = ?`,
		`DELETE FROM ai_analyses WHERE record_id = ?`,
		`DELETE FROM checkup_files WHERE record_id = ?`,
		`DELETE FROM checkup_records WHERE id = ?`,
	} {
		if _, err := t.tx.ExecContext(ctx, stmt, id); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
