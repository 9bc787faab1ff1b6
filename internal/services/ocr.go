package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/analyzer"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/extractor"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/lifecycle"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/reconcile"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/worker"
)

const (
	PhaseProcessing = "processing"
	PhaseDone       = "done"

	cancelledReason = "cancelled"
)

type OCRService interface {
	// Start queues extraction of every file of the record and returns once
	// the record is marked ocr_processing.
	Start(ctx context.Context, recordID string) (*models.AcceptedResponse, error)
	// Retry re-extracts the file behind one result. The returned ID is the
	// new result that supersedes it.
	Retry(ctx context.Context, ocrID string) (*models.AcceptedResponse, error)
	Status(ctx context.Context, recordID string) (*models.OcrStatus, error)
	Results(ctx context.Context, recordID string) ([]models.OcrResult, error)
	UpdateItem(ctx context.Context, ocrID string, index int, item models.Reading) (*models.OcrResult, error)
	Cancel(ctx context.Context, recordID string) error
}

type ocrService struct {
	*Deps
}

func NewOCRService(d *Deps) OCRService {
	return &ocrService{Deps: d}
}

func ocrJobKey(recordID string) string { return "ocr:" + recordID }

func retryJobKey(fileID string) string { return "retry:" + fileID }

// batch is everything an extraction job needs, read before it starts.
type batch struct {
	record    models.CheckupRecord
	files     []models.CheckupFile
	completer analyzer.Completer
	prompt    string
}

func (s *ocrService) Start(ctx context.Context, recordID string) (*models.AcceptedResponse, error) {
	if s.Queue.Running(ocrJobKey(recordID)) {
		return nil, utils.NewConflictError("Extraction is already running for this record")
	}

	// Load record, files and AI settings
	var (
		b   batch
		cfg aiConfig
	)
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		r, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if r == nil {
			return utils.NewNotFoundError("Record not found")
		}
		b.record = *r
		if b.files, err = tx.ListFiles(ctx, recordID); err != nil {
			return err
		}
		if len(b.files) == 0 {
			return utils.NewBadRequestError("Record has no files; upload report images first")
		}
		cfg, err = s.loadAIConfig(ctx, tx)
		return err
	})
	if err := s.wrap(err, "Failed to prepare extraction", "record_id", recordID); err != nil {
		return nil, err
	}

	if b.completer, err = s.newCompleter(cfg); err != nil {
		return nil, err
	}
	b.prompt = cfg.OCRPrompt

	// Mark processing, then queue
	if err := s.setStatus(ctx, recordID, lifecycle.StartOCR(b.record.Status)); err != nil {
		return nil, err
	}

	if err := s.Queue.Submit(ocrJobKey(recordID), func(jobCtx context.Context) error {
		return s.runBatch(jobCtx, b)
	}); err != nil {
		// Put the status back so the record does not look stuck.
		if revertErr := s.setStatus(background(ctx), recordID, b.record.Status); revertErr != nil {
			s.Logger.Error("Failed to revert record status", "record_id", recordID, "error", revertErr)
		}
		return nil, submitError(err)
	}

	s.Logger.Info("Extraction queued", "record_id", recordID, "files", len(b.files))
	return &models.AcceptedResponse{ID: recordID, Message: "Extraction started"}, nil
}

func submitError(err error) error {
	if errors.Is(err, worker.ErrDuplicate) {
		return utils.NewConflictError("A job for this item is already running")
	}
	return &utils.AppError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    "Job queue is unavailable, try again later",
		Err:        err,
	}
}

func (d *Deps) setStatus(ctx context.Context, recordID string, status lifecycle.Status) error {
	err := d.Store.WithTx(ctx, func(tx *repository.Tx) error {
		return tx.SetRecordStatus(ctx, recordID, status)
	})
	return d.wrap(err, "Failed to update record status", "record_id", recordID)
}

// runBatch extracts the files one by one in catalog order. A failing file
// is recorded and skipped; only cancellation ends the batch early.
func (s *ocrService) runBatch(ctx context.Context, b batch) error {
	outcome := models.BatchOutcome{
		RecordID: b.record.ID,
		Total:    len(b.files),
		Errors:   []string{},
	}

	var cancelled bool
	for i, f := range b.files {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		s.publish(ctx, events.OCRProgress, events.Progress{
			RecordID:    b.record.ID,
			Total:       len(b.files),
			Completed:   i,
			CurrentFile: f.OriginalFilename,
			Phase:       PhaseProcessing,
		})
		if i > 0 && !sleep(ctx, s.Config.OCRRequestDelay) {
			cancelled = true
			break
		}

		s.Logger.Info("Extracting file", "record_id", b.record.ID, "file", f.OriginalFilename,
			"position", i+1, "total", len(b.files))

		content, err := s.recognize(ctx, b.completer, b.prompt, f)
		if err != nil && ctx.Err() != nil {
			cancelled = true
			break
		}

		result := newResult(f, b.record.CheckupDate)
		if err != nil {
			result.Status = models.StatusFailed
			result.ErrorMessage = err.Error()
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", f.OriginalFilename, err))
		} else {
			result.Status = models.StatusSuccess
			result.RawText = content
			result.Items = extractor.ExtractReadings(content)
			outcome.Success++
		}
		s.saveResult(background(ctx), result, true)
	}

	if cancelled {
		outcome.Errors = append(outcome.Errors, cancelledReason)
		s.publish(background(ctx), events.OCRError, events.Failure{RecordID: b.record.ID, Error: cancelledReason})
	}

	s.finishBatch(background(ctx), outcome)
	if cancelled {
		return ctx.Err()
	}
	return nil
}

func (s *ocrService) finishBatch(ctx context.Context, outcome models.BatchOutcome) {
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		r, err := tx.GetRecord(ctx, outcome.RecordID)
		if err != nil || r == nil {
			return err
		}
		return tx.SetRecordStatus(ctx, r.ID, lifecycle.FinishOCR(r.Status, outcome.Success))
	})
	if err != nil {
		s.Logger.Error("Failed to finalize record status", "record_id", outcome.RecordID, "error", err)
	}

	s.publish(ctx, events.OCRProgress, events.Progress{
		RecordID:  outcome.RecordID,
		Total:     outcome.Total,
		Completed: outcome.Total,
		Phase:     PhaseDone,
	})
	s.publish(ctx, events.OCRComplete, outcome)
	s.Logger.Info("Extraction finished", "record_id", outcome.RecordID,
		"total", outcome.Total, "success", outcome.Success, "errors", len(outcome.Errors))
}

func newResult(f models.CheckupFile, checkupDate string) *models.OcrResult {
	return &models.OcrResult{
		ID:          utils.GenerateID(),
		FileID:      f.ID,
		RecordID:    f.RecordID,
		ProjectID:   f.ProjectID,
		CheckupDate: checkupDate,
		Items:       []models.Reading{},
	}
}

// recognize sends one stored file to the model: images as a data URI,
// PDF and text reports as their text layer.
func (s *ocrService) recognize(ctx context.Context, c analyzer.Completer, prompt string, f models.CheckupFile) (string, error) {
	data, err := s.Storage.Download(ctx, f.StoredPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var att analyzer.Attachment
	if extractor.IsTextReport(f.MimeType) {
		text, err := extractor.ReportText(f.OriginalFilename, f.MimeType, data)
		if err != nil {
			return "", fmt.Errorf("failed to read report text: %w", err)
		}
		att.Text = text
	} else {
		att.DataURI = dataURI(f.MimeType, data)
	}

	content, err := c.Recognize(ctx, prompt, att)
	if err != nil {
		return "", err
	}
	s.Logger.Debug("Model reply", "file", f.OriginalFilename, "content", content)
	return content, nil
}

// saveResult writes r and regenerates its indicator values. A new row
// supersedes every other result of the same file. Write failures are
// logged and dropped so the rest of the batch still lands.
func (s *ocrService) saveResult(ctx context.Context, r *models.OcrResult, insert bool) {
	var written int
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		if insert {
			if err := tx.InsertOcrResult(ctx, r); err != nil {
				return err
			}
			if err := tx.SupersedeOcrResults(ctx, r.FileID, r.ID); err != nil {
				return err
			}
		} else if err := tx.UpdateOcrResult(ctx, r); err != nil {
			return err
		}

		var err error
		written, err = regenerate(ctx, tx, r)
		return err
	})
	if err != nil {
		s.Logger.Error("Failed to save extraction result", "file_id", r.FileID, "status", r.Status, "error", err)
		return
	}
	s.Metrics.OCRFiles.WithLabelValues(r.Status).Inc()
	s.Metrics.IndicatorValuesWritten.Add(float64(written))
}

// regenerate replaces the value set of r from its items and the current
// catalog of its project.
func regenerate(ctx context.Context, tx *repository.Tx, r *models.OcrResult) (int, error) {
	var values []models.IndicatorValue
	if r.Status == models.StatusSuccess {
		catalog, err := tx.ListIndicators(ctx, r.ProjectID)
		if err != nil {
			return 0, err
		}
		values = reconcile.Reconcile(sourceOf(*r), r.Items, catalog)
	}
	if err := tx.ReplaceIndicatorValues(ctx, r.ID, values); err != nil {
		return 0, err
	}
	return len(values), nil
}

func (s *ocrService) Retry(ctx context.Context, ocrID string) (*models.AcceptedResponse, error) {
	var (
		file   *models.CheckupFile
		record *models.CheckupRecord
		cfg    aiConfig
	)
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		old, err := tx.GetOcrResult(ctx, ocrID)
		if err != nil {
			return err
		}
		if old == nil {
			return utils.NewNotFoundError("Extraction result not found")
		}
		if file, err = tx.GetFile(ctx, old.FileID); err != nil {
			return err
		}
		if file == nil {
			return utils.NewNotFoundError("File not found")
		}
		if record, err = tx.GetRecord(ctx, old.RecordID); err != nil {
			return err
		}
		if record == nil {
			return utils.NewNotFoundError("Record not found")
		}
		cfg, err = s.loadAIConfig(ctx, tx)
		return err
	})
	if err := s.wrap(err, "Failed to prepare retry", "ocr_id", ocrID); err != nil {
		return nil, err
	}

	completer, err := s.newCompleter(cfg)
	if err != nil {
		return nil, err
	}
	if s.Queue.Running(retryJobKey(file.ID)) {
		return nil, utils.NewConflictError("A retry for this file is already running")
	}

	// Placeholder replaces older results of the file
	placeholder := newResult(*file, record.CheckupDate)
	placeholder.Status = models.StatusProcessing
	err = s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		if err := tx.InsertOcrResult(ctx, placeholder); err != nil {
			return err
		}
		return tx.SupersedeOcrResults(ctx, file.ID, placeholder.ID)
	})
	if err := s.wrap(err, "Failed to create extraction placeholder", "file_id", file.ID); err != nil {
		return nil, err
	}

	s.publish(ctx, events.OCRProgress, events.Progress{
		RecordID:    record.ID,
		Total:       1,
		CurrentFile: file.OriginalFilename,
		Phase:       PhaseProcessing,
	})

	f, id := *file, placeholder.ID
	if err := s.Queue.Submit(retryJobKey(file.ID), func(jobCtx context.Context) error {
		return s.runRetry(jobCtx, completer, cfg.OCRPrompt, f, placeholder)
	}); err != nil {
		placeholder.Status = models.StatusFailed
		placeholder.ErrorMessage = err.Error()
		s.saveResult(background(ctx), placeholder, false)
		return nil, submitError(err)
	}

	return &models.AcceptedResponse{ID: id, Message: "Retry started"}, nil
}

func (s *ocrService) runRetry(ctx context.Context, c analyzer.Completer, prompt string, f models.CheckupFile, r *models.OcrResult) error {
	outcome := models.BatchOutcome{RecordID: r.RecordID, Total: 1, Errors: []string{}}

	content, err := s.recognize(ctx, c, prompt, f)
	if err != nil {
		r.Status = models.StatusFailed
		r.ErrorMessage = err.Error()
		if ctx.Err() != nil {
			r.ErrorMessage = cancelledReason
		}
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %s", f.OriginalFilename, r.ErrorMessage))
	} else {
		r.Status = models.StatusSuccess
		r.RawText = content
		r.Items = extractor.ExtractReadings(content)
		outcome.Success = 1
	}

	// Persist even when the job was cancelled
	bg := background(ctx)
	s.saveResult(bg, r, false)

	if err := s.Store.WithTx(bg, func(tx *repository.Tx) error {
		rec, err := tx.GetRecord(bg, r.RecordID)
		if err != nil || rec == nil {
			return err
		}
		next := lifecycle.AfterRetry(rec.Status, outcome.Success > 0)
		if next == rec.Status {
			return nil
		}
		return tx.SetRecordStatus(bg, rec.ID, next)
	}); err != nil {
		s.Logger.Error("Failed to update record status after retry", "record_id", r.RecordID, "error", err)
	}

	if r.Status == models.StatusFailed {
		s.publish(bg, events.OCRError, events.Failure{RecordID: r.RecordID, ID: r.ID, Error: r.ErrorMessage})
	}
	s.publish(bg, events.OCRComplete, outcome)
	return err
}

func (s *ocrService) Status(ctx context.Context, recordID string) (*models.OcrStatus, error) {
	var st models.OcrStatus
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		r, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if r == nil {
			return utils.NewNotFoundError("Record not found")
		}
		if st, err = tx.OcrCounts(ctx, recordID); err != nil {
			return err
		}
		st.RecordStatus = r.Status.String()
		return nil
	})
	if err := s.wrap(err, "Failed to get extraction status", "record_id", recordID); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *ocrService) Results(ctx context.Context, recordID string) ([]models.OcrResult, error) {
	var results []models.OcrResult
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		r, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if r == nil {
			return utils.NewNotFoundError("Record not found")
		}
		results, err = tx.ListOcrResults(ctx, recordID)
		return err
	})
	if err := s.wrap(err, "Failed to list extraction results", "record_id", recordID); err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateItem replaces one extracted reading and regenerates the result's
// indicator values.
func (s *ocrService) UpdateItem(ctx context.Context, ocrID string, index int, item models.Reading) (*models.OcrResult, error) {
	var (
		r       *models.OcrResult
		written int
	)
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if r, err = tx.GetOcrResult(ctx, ocrID); err != nil {
			return err
		}
		if r == nil {
			return utils.NewNotFoundError("Extraction result not found")
		}
		if index < 0 || index >= len(r.Items) {
			return utils.NewBadRequestError(fmt.Sprintf("Item index %d out of range", index))
		}
		r.Items[index] = item
		if err := tx.UpdateOcrResult(ctx, r); err != nil {
			return err
		}
		written, err = regenerate(ctx, tx, r)
		return err
	})
	if err := s.wrap(err, "Failed to update extracted item", "ocr_id", ocrID); err != nil {
		return nil, err
	}
	s.Metrics.IndicatorValuesWritten.Add(float64(written))
	return r, nil
}

func (s *ocrService) Cancel(_ context.Context, recordID string) error {
	if !s.Queue.Cancel(ocrJobKey(recordID)) {
		return utils.NewNotFoundError("No extraction is running for this record")
	}
	s.Logger.Info("Extraction cancelled", "record_id", recordID)
	return nil
}
