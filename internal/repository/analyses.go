package repository

import (
	"context"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

const analysisColumns = `id, record_id, request_prompt, response_content, model_used, status, error_message, created_at`

func (t *Tx) InsertAnalysis(ctx context.Context, a *models.AiAnalysis) error {
	a.CreatedAt = t.now()
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO ai_analyses (`+analysisColumns+`)
		VALUES (:id, :record_id, :request_prompt, :response_content, :model_used, :status, :error_message, :created_at)`, a)
	return err
}

func (t *Tx) UpdateAnalysis(ctx context.Context, a *models.AiAnalysis) error {
	_, err := t.tx.NamedExecContext(ctx, `
		UPDATE ai_analyses
		SET response_content = :response_content, status = :status, error_message = :error_message
		WHERE id = :id`, a)
	return err
}

func (t *Tx) GetAnalysis(ctx context.Context, id string) (*models.AiAnalysis, error) {
	var a models.AiAnalysis
	err := t.tx.GetContext(ctx, &a, `SELECT `+analysisColumns+` FROM ai_analyses WHERE id = ?`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnalyses returns a record's analyses, newest first.
func (t *Tx) ListAnalyses(ctx context.Context, recordID string) ([]models.AiAnalysis, error) {
	analyses := []models.AiAnalysis{}
	err := t.tx.SelectContext(ctx, &analyses, `
		SELECT `+analysisColumns+` FROM ai_analyses
		WHERE record_id = ? ORDER BY created_at DESC`, recordID)
	return analyses, err
}

// PreviousAnalysis returns the successful analysis of the most recent other
// checkup, or nil.
func (t *Tx) PreviousAnalysis(ctx context.Context, recordID string) (*models.AiAnalysis, error) {
	var a models.AiAnalysis
	err := t.tx.GetContext(ctx, &a, `
		SELECT a.id, a.record_id, a.request_prompt, a.response_content, a.model_used,
		       a.status, a.error_message, a.created_at
		FROM ai_analyses a JOIN checkup_records r ON r.id = a.record_id
		WHERE a.record_id != ? AND a.status = ? AND TRIM(a.response_content) != ''
		ORDER BY r.checkup_date DESC, a.created_at DESC LIMIT 1`, recordID, models.StatusSuccess)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AnalysisHistory pages through successful analyses with their checkup date.
func (t *Tx) AnalysisHistory(ctx context.Context, limit, offset int) ([]models.AnalysisHistoryItem, int, error) {
	var total int
	if err := t.tx.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM ai_analyses WHERE status = ?`, models.StatusSuccess); err != nil {
		return nil, 0, err
	}

	items := []models.AnalysisHistoryItem{}
	err := t.tx.SelectContext(ctx, &items, `
		SELECT a.id, a.record_id, COALESCE(r.checkup_date, '') AS checkup_date, a.response_content, a.created_at
		FROM ai_analyses a LEFT JOIN checkup_records r ON r.id = a.record_id
		WHERE a.status = ?
		ORDER BY a.created_at DESC LIMIT ? OFFSET ?`, models.StatusSuccess, limit, offset)
	return items, total, err
}

func (t *Tx) UpdateAnalysisContent(ctx context.Context, id, content string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE ai_analyses SET response_content = ? WHERE id = ?`, content, id)
	return err
}
