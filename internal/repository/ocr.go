package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type ocrRow struct {
	ID           string    `db:"id"`
	FileID       string    `db:"file_id"`
	RecordID     string    `db:"record_id"`
	ProjectID    string    `db:"project_id"`
	CheckupDate  string    `db:"checkup_date"`
	RawJSON      string    `db:"raw_json"`
	ParsedItems  string    `db:"parsed_items"`
	Status       string    `db:"status"`
	ErrorMessage string    `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
}

const ocrColumns = `id, file_id, record_id, project_id, checkup_date, raw_json, parsed_items, status, error_message, created_at`

func toRow(r *models.OcrResult) (ocrRow, error) {
	items := r.Items
	if items == nil {
		items = []models.Reading{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return ocrRow{}, fmt.Errorf("failed to encode items: %w", err)
	}
	return ocrRow{
		ID: r.ID, FileID: r.FileID, RecordID: r.RecordID, ProjectID: r.ProjectID,
		CheckupDate: r.CheckupDate, RawJSON: r.RawText, ParsedItems: string(data),
		Status: r.Status, ErrorMessage: r.ErrorMessage, CreatedAt: r.CreatedAt,
	}, nil
}

func (row ocrRow) toModel() models.OcrResult {
	items := []models.Reading{}
	// Unreadable stored items degrade to an empty list.
	_ = json.Unmarshal([]byte(row.ParsedItems), &items)
	if items == nil {
		items = []models.Reading{}
	}
	return models.OcrResult{
		ID: row.ID, FileID: row.FileID, RecordID: row.RecordID, ProjectID: row.ProjectID,
		CheckupDate: row.CheckupDate, RawText: row.RawJSON, Items: items,
		Status: row.Status, ErrorMessage: row.ErrorMessage, CreatedAt: row.CreatedAt,
	}
}

func toModels(rows []ocrRow) []models.OcrResult {
	results := make([]models.OcrResult, len(rows))
	for i, row := range rows {
		results[i] = row.toModel()
	}
	return results
}

func (t *Tx) InsertOcrResult(ctx context.Context, r *models.OcrResult) error {
	r.CreatedAt = t.now()
	row, err := toRow(r)
	if err != nil {
		return err
	}
	_, err = t.tx.NamedExecContext(ctx, `
		INSERT INTO ocr_results (`+ocrColumns+`)
		VALUES (:id, :file_id, :record_id, :project_id, :checkup_date, :raw_json, :parsed_items, :status, :error_message, :created_at)`, row)
	return err
}

// UpdateOcrResult rewrites the outcome fields of an existing result.
func (t *Tx) UpdateOcrResult(ctx context.Context, r *models.OcrResult) error {
	row, err := toRow(r)
	if err != nil {
		return err
	}
	_, err = t.tx.NamedExecContext(ctx, `
		UPDATE ocr_results
		SET raw_json = :raw_json, parsed_items = :parsed_items, status = :status, error_message = :error_message
		WHERE id = :id`, row)
	return err
}

func (t *Tx) GetOcrResult(ctx context.Context, id string) (*models.OcrResult, error) {
	var row ocrRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+ocrColumns+` FROM ocr_results WHERE id = ?`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := row.toModel()
	return &r, nil
}

func (t *Tx) ListOcrResults(ctx context.Context, recordID string) ([]models.OcrResult, error) {
	var rows []ocrRow
	if err := t.tx.SelectContext(ctx, &rows, `
		SELECT o.id, o.file_id, o.record_id, o.project_id, o.checkup_date, o.raw_json,
		       o.parsed_items, o.status, o.error_message, o.created_at
		FROM ocr_results o
		JOIN checkup_files f ON f.id = o.file_id
		LEFT JOIN checkup_projects p ON p.id = o.project_id
		WHERE o.record_id = ?
		ORDER BY p.name ASC, f.uploaded_at ASC, o.created_at ASC`, recordID); err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// ListSuccessfulOcrResults returns a record's successful results together
// with the project name each belongs to, in project order.
func (t *Tx) ListSuccessfulOcrResults(ctx context.Context, recordID string) ([]models.OcrResult, []string, error) {
	var rows []struct {
		ocrRow
		ProjectName string `db:"project_name"`
	}
	if err := t.tx.SelectContext(ctx, &rows, `
		SELECT o.id, o.file_id, o.record_id, o.project_id, o.checkup_date, o.raw_json,
		       o.parsed_items, o.status, o.error_message, o.created_at,
		       COALESCE(p.name, '') AS project_name
		FROM ocr_results o LEFT JOIN checkup_projects p ON p.id = o.project_id
		WHERE o.record_id = ? AND o.status = ?
		ORDER BY p.sort_order, p.name, o.created_at`, recordID, models.StatusSuccess); err != nil {
		return nil, nil, err
	}
	results := make([]models.OcrResult, len(rows))
	names := make([]string, len(rows))
	for i, row := range rows {
		results[i] = row.ocrRow.toModel()
		names[i] = row.ProjectName
	}
	return results, names, nil
}

// ListProjectOcrResults returns every successful result of a project.
func (t *Tx) ListProjectOcrResults(ctx context.Context, projectID string) ([]models.OcrResult, error) {
	var rows []ocrRow
	if err := t.tx.SelectContext(ctx, &rows, `
		SELECT `+ocrColumns+` FROM ocr_results
		WHERE project_id = ? AND status = ? ORDER BY created_at`, projectID, models.StatusSuccess); err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// SupersedeOcrResults deletes every result of the file except keepID,
// together with the values they own.
func (t *Tx) SupersedeOcrResults(ctx context.Context, fileID, keepID string) error {
	if _, err := t.tx.ExecContext(ctx, `
		DELETE FROM indicator_values
		WHERE ocr_result_id IN (SELECT id FROM ocr_results WHERE file_id = ? AND id != ?)`, fileID, keepID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `DELETE FROM ocr_results WHERE file_id = ? AND id != ?`, fileID, keepID)
	return err
}

// ReplaceIndicatorValues swaps the whole value set owned by one OCR result.
// IDs and timestamps are assigned here.
func (t *Tx) ReplaceIndicatorValues(ctx context.Context, ocrResultID string, values []models.IndicatorValue) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM indicator_values WHERE ocr_result_id = ?`, ocrResultID); err != nil {
		return err
	}

	now := t.now()
	for i := range values {
		v := &values[i]
		v.ID = utils.GenerateID()
		v.OcrResultID = ocrResultID
		v.CreatedAt = now
		if _, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO indicator_values
				(id, ocr_result_id, record_id, project_id, indicator_id, checkup_date, value, value_text, is_abnormal, created_at)
			VALUES (:id, :ocr_result_id, :record_id, :project_id, :indicator_id, :checkup_date, :value, :value_text, :is_abnormal, :created_at)`, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) ListIndicatorValues(ctx context.Context, ocrResultID string) ([]models.IndicatorValue, error) {
	values := []models.IndicatorValue{}
	err := t.tx.SelectContext(ctx, &values, `
		SELECT id, ocr_result_id, record_id, project_id, indicator_id, checkup_date, value, value_text, is_abnormal, created_at
		FROM indicator_values WHERE ocr_result_id = ? ORDER BY rowid`, ocrResultID)
	return values, err
}

// OcrCounts reports file and result counters for a record.
func (t *Tx) OcrCounts(ctx context.Context, recordID string) (models.OcrStatus, error) {
	var s models.OcrStatus
	if err := t.tx.GetContext(ctx, &s.TotalFiles,
		`SELECT COUNT(*) FROM checkup_files WHERE record_id = ?`, recordID); err != nil {
		return s, err
	}
	err := t.tx.QueryRowxContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM ocr_results WHERE record_id = ?`,
		models.StatusSuccess, models.StatusFailed, recordID).Scan(&s.TotalOcr, &s.SuccessOcr, &s.FailedOcr)
	return s, err
}

func (t *Tx) TrendPoints(ctx context.Context, indicatorID string) ([]models.TrendPoint, error) {
	points := []models.TrendPoint{}
	err := t.tx.SelectContext(ctx, &points, `
		SELECT checkup_date, value, value_text, is_abnormal
		FROM indicator_values WHERE indicator_id = ?
		ORDER BY checkup_date ASC, created_at ASC`, indicatorID)
	return points, err
}
