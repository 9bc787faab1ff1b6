package repository

import (
	"context"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

const fileSelect = `
	SELECT f.id, f.record_id, f.project_id, COALESCE(p.name, '') AS project_name,
	       f.original_filename, f.stored_path, f.file_size, f.mime_type, f.uploaded_at
	FROM checkup_files f LEFT JOIN checkup_projects p ON p.id = f.project_id`

func (t *Tx) CreateFile(ctx context.Context, f *models.CheckupFile) error {
	f.UploadedAt = t.now()
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO checkup_files (id, record_id, project_id, original_filename, stored_path, file_size, mime_type, uploaded_at)
		VALUES (:id, :record_id, :project_id, :original_filename, :stored_path, :file_size, :mime_type, :uploaded_at)`, f)
	return err
}

func (t *Tx) GetFile(ctx context.Context, id string) (*models.CheckupFile, error) {
	var f models.CheckupFile
	err := t.tx.GetContext(ctx, &f, fileSelect+` WHERE f.id = ?`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFiles returns a record's files in processing order: by project name,
// then upload time.
func (t *Tx) ListFiles(ctx context.Context, recordID string) ([]models.CheckupFile, error) {
	files := []models.CheckupFile{}
	err := t.tx.SelectContext(ctx, &files,
		fileSelect+` WHERE f.record_id = ? ORDER BY p.name ASC, f.uploaded_at ASC`, recordID)
	return files, err
}

// DeleteFile removes the file with its OCR results and their values.
func (t *Tx) DeleteFile(ctx context.Context, id string) error {
	for _, stmt := range []string{
		`DELETE FROM indicator_values WHERE ocr_result_id IN (SELECT id FROM ocr_results WHERE file_id = ?)`,
		`DELETE FROM ocr_results WHERE file_id = ?`,
		`DELETE FROM checkup_files WHERE id = ?`,
	} {
		if _, err := t.tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}
